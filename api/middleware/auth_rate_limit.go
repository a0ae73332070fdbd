package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/trendora/trendora-backend/api/responses"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy defines the throttling parameters for one auth
// surface. A zero window or all-zero limits disables the middleware.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:       name,
		window:     window,
		ipLimit:    ipLimit,
		emailLimit: emailLimit,
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// AuthRateLimit throttles login and registration attempts per source IP
// and per submitted email. Only the sha256 of the email ever reaches
// Redis or the logs.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		limiter := authLimiter{policy: policy, store: store, logg: logg}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if blocked := limiter.checkIP(ctx, w, r); blocked {
				return
			}
			if blocked := limiter.checkEmail(ctx, w, r); blocked {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type authLimiter struct {
	policy AuthRateLimitPolicy
	store  rateLimiterStore
	logg   *logger.Logger
}

// checkIP reports true when it wrote a response and the request must
// not continue.
func (l authLimiter) checkIP(ctx context.Context, w http.ResponseWriter, r *http.Request) bool {
	if l.policy.ipLimit <= 0 {
		return false
	}
	ip := clientIP(r)
	if ip == "" {
		return false
	}
	scope := fmt.Sprintf("%s:ip:%s", l.policy.name, ip)
	return l.enforce(ctx, w, scope, l.policy.ipLimit, map[string]any{"ip": ip})
}

// checkEmail buffers the body so the handler downstream can still
// decode it.
func (l authLimiter) checkEmail(ctx context.Context, w http.ResponseWriter, r *http.Request) bool {
	if l.policy.emailLimit <= 0 {
		return false
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
		return true
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	email := strings.ToLower(strings.TrimSpace(extractEmail(body)))
	if email == "" {
		return false
	}
	hash := hashValue(email)
	scope := fmt.Sprintf("%s:email:%s", l.policy.name, hash)
	return l.enforce(ctx, w, scope, l.policy.emailLimit, map[string]any{"email_hash": hash})
}

func (l authLimiter) enforce(ctx context.Context, w http.ResponseWriter, scope string, limit int, logFields map[string]any) bool {
	allowed, count, err := l.store.FixedWindowAllow(ctx, scope, int64(limit), l.policy.window)
	if err != nil {
		responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return true
	}
	if allowed {
		return false
	}

	if l.logg != nil {
		fields := map[string]any{
			"policy":         l.policy.name,
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(l.policy.window.Seconds()),
		}
		for k, v := range logFields {
			fields[k] = v
		}
		l.logg.Warn(l.logg.WithFields(ctx, fields), "auth.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
	return true
}

// clientIP trusts proxy headers first since the service runs behind a
// load balancer.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Email
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
