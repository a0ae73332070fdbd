package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every request with an ID for log correlation. An
// inbound X-Request-Id from the load balancer is honored; otherwise one
// is minted. The ID is echoed on the response either way.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := requestID(r)
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(requestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}
