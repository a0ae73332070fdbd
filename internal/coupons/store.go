package coupons

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	rediswrap "github.com/trendora/trendora-backend/pkg/redis"
)

// AppliedStore keeps each shopper's applied coupon slot in Redis. The
// slot holds only the code; validity is re-checked on every read.
type AppliedStore struct {
	client *rediswrap.Client
	ttl    time.Duration
}

// NewAppliedStore builds the store with the configured slot TTL.
func NewAppliedStore(client *rediswrap.Client, ttl time.Duration) *AppliedStore {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &AppliedStore{client: client, ttl: ttl}
}

// Put records the applied code for a user, replacing any previous one.
func (s *AppliedStore) Put(ctx context.Context, userID, code string) error {
	return s.client.Set(ctx, s.client.AppliedCouponKey(userID), code, s.ttl)
}

// Get returns the applied code, or "" when the slot is empty.
func (s *AppliedStore) Get(ctx context.Context, userID string) (string, error) {
	code, err := s.client.Get(ctx, s.client.AppliedCouponKey(userID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", err
	}
	return code, nil
}

// Clear empties the slot.
func (s *AppliedStore) Clear(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.client.AppliedCouponKey(userID))
}
