package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/trendora/trendora-backend/api/responses"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
	pkgredis "github.com/trendora/trendora-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"

	replayTTL = 24 * time.Hour
	// Checkout and cancellation replays stay guarded for a week; a
	// duplicate there moves stock and money, not just rows.
	moneyReplayTTL = 7 * 24 * time.Hour
)

// replayGuardedRoutes maps "METHOD <chi route pattern>" to the TTL of
// its stored response. Requests outside this table pass through.
var replayGuardedRoutes = map[string]time.Duration{
	"POST /api/v1/cart/items":                     replayTTL,
	"POST /api/v1/addresses":                      replayTTL,
	"POST /api/admin/v1/products":                 replayTTL,
	"POST /api/admin/v1/coupons":                  replayTTL,
	"PATCH /api/admin/v1/orders/{orderId}/status": replayTTL,
	"POST /api/v1/checkout":                       moneyReplayTTL,
	"POST /api/v1/orders/{orderId}/cancel":        moneyReplayTTL,
}

// storedReply is the cached outcome of the first delivery.
type storedReply struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the recorded response when a guarded route sees
// the same Idempotency-Key twice. A reused key with a different body is
// rejected instead of replayed.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := guardTTL(r)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if key == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			requestHash := base64.StdEncoding.EncodeToString(sum[:])
			scope := strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
			storeKey := store.IdempotencyKey(scope, key)

			prior, getErr := store.Get(r.Context(), storeKey)
			if getErr != nil && !errors.Is(getErr, redis.Nil) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "check idempotency"))
				return
			}
			if prior != "" {
				var reply storedReply
				if err := json.Unmarshal([]byte(prior), &reply); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if reply.RequestHash != requestHash {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				replayStored(w, reply)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			reply := storedReply{
				Status:      capture.statusOrOK(),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				ContentType: capture.Header().Get("Content-Type"),
				RequestHash: requestHash,
			}
			payload, marshalErr := json.Marshal(reply)
			if marshalErr != nil {
				logSilently(r.Context(), logg, "marshal idempotency record", marshalErr)
				return
			}
			if _, setErr := store.SetNX(r.Context(), storeKey, string(payload), ttl); setErr != nil {
				logSilently(r.Context(), logg, "persist idempotency record", setErr)
			}
		})
	}
}

func guardTTL(r *http.Request) (time.Duration, bool) {
	if r == nil {
		return 0, false
	}
	pattern := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			pattern = p
		}
	}
	ttl, ok := replayGuardedRoutes[r.Method+" "+pattern]
	return ttl, ok
}

func replayStored(w http.ResponseWriter, reply storedReply) {
	if reply.ContentType != "" {
		w.Header().Set("Content-Type", reply.ContentType)
	}
	w.WriteHeader(reply.Status)
	if decoded, err := base64.StdEncoding.DecodeString(reply.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logSilently(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
