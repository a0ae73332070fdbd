package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubLimiter struct {
	counts map[string]int64
	err    error
}

func (s *stubLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if s.err != nil {
		return false, 0, s.err
	}
	if s.counts == nil {
		s.counts = map[string]int64{}
	}
	s.counts[scope]++
	return s.counts[scope] <= limit, s.counts[scope], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRateLimitBlocksIPAfterLimit(t *testing.T) {
	t.Parallel()

	store := &stubLimiter{}
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 0)
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.9:4242"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.9:4242"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}
}

func TestAuthRateLimitCountsEmailsSeparately(t *testing.T) {
	t.Parallel()

	store := &stubLimiter{}
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 1)
	handler := AuthRateLimit(policy, store, nil)(okHandler())

	send := func(email string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"`+email+`"}`))
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("a@example.com"); code != http.StatusOK {
		t.Fatalf("first attempt for a@: expected 200, got %d", code)
	}
	if code := send("b@example.com"); code != http.StatusOK {
		t.Fatalf("first attempt for b@: expected 200, got %d", code)
	}
	if code := send("a@example.com"); code != http.StatusTooManyRequests {
		t.Fatalf("second attempt for a@: expected 429, got %d", code)
	}
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	t.Parallel()

	policy := NewAuthRateLimitPolicy("login", 0, 0, 0)
	handler := AuthRateLimit(policy, &stubLimiter{}, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}
