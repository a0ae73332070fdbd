package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type fakeBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: map[string]string{}}
}

func (f *fakeBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	return nil
}

func (f *fakeBackend) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (f *fakeBackend) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeBackend) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func newTestManager() (*Manager, *fakeBackend) {
	backend := newFakeBackend()
	return &Manager{backend: backend, ttl: time.Hour}, backend
}

func TestGenerateStoresToken(t *testing.T) {
	t.Parallel()

	manager, backend := newTestManager()
	token, err := manager.Generate(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if backend.data["sess:access-1"] != token {
		t.Fatalf("token not stored under session key")
	}

	if _, err := manager.Generate(context.Background(), "  "); err == nil {
		t.Fatal("blank access id should be rejected")
	}
}

func TestRotateReplacesSession(t *testing.T) {
	t.Parallel()

	manager, backend := newTestManager()
	ctx := context.Background()
	token, err := manager.Generate(ctx, "access-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	newID, newToken, err := manager.Rotate(ctx, "access-1", token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, ok := backend.data["sess:access-1"]; ok {
		t.Fatal("old session survived rotation")
	}
	if backend.data["sess:"+newID] != newToken {
		t.Fatal("new session missing after rotation")
	}
}

func TestRotateRejectsBadToken(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager()
	ctx := context.Background()
	if _, err := manager.Generate(ctx, "access-1"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, _, err := manager.Rotate(ctx, "access-1", "forged"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if _, _, err := manager.Rotate(ctx, "unknown", "whatever"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for unknown session, got %v", err)
	}
}

func TestRevokeAndHasSession(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager()
	ctx := context.Background()
	if _, err := manager.Generate(ctx, "access-1"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	alive, err := manager.HasSession(ctx, "access-1")
	if err != nil || !alive {
		t.Fatalf("expected live session, got alive=%v err=%v", alive, err)
	}

	if err := manager.Revoke(ctx, "access-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	alive, err = manager.HasSession(ctx, "access-1")
	if err != nil || alive {
		t.Fatalf("expected revoked session, got alive=%v err=%v", alive, err)
	}
}
