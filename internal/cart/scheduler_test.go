package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type settleRecorder struct {
	mu    sync.Mutex
	calls []settleCall
	done  chan struct{}
}

type settleCall struct {
	lineID   uuid.UUID
	quantity int
}

func newSettleRecorder() *settleRecorder {
	return &settleRecorder{done: make(chan struct{}, 16)}
}

func (r *settleRecorder) settle(_ context.Context, lineID uuid.UUID, quantity int) {
	r.mu.Lock()
	r.calls = append(r.calls, settleCall{lineID: lineID, quantity: quantity})
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *settleRecorder) snapshot() []settleCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]settleCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *settleRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for settle")
	}
}

func TestSchedulerCoalescesRapidEdits(t *testing.T) {
	t.Parallel()

	recorder := newSettleRecorder()
	scheduler := NewScheduler(20*time.Millisecond, time.Second, recorder.settle)
	lineID := uuid.New()

	scheduler.Schedule(lineID, 2)
	scheduler.Schedule(lineID, 5)
	scheduler.Schedule(lineID, 3)

	recorder.wait(t)
	// Give a stale timer a chance to misfire before asserting.
	time.Sleep(50 * time.Millisecond)

	calls := recorder.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one settle, got %d", len(calls))
	}
	if calls[0].quantity != 3 {
		t.Fatalf("expected last quantity 3 to settle, got %d", calls[0].quantity)
	}
	if scheduler.Pending(lineID) {
		t.Fatal("expected no pending mutation after settle")
	}
}

func TestSchedulerCancelDropsPendingMutation(t *testing.T) {
	t.Parallel()

	recorder := newSettleRecorder()
	scheduler := NewScheduler(20*time.Millisecond, time.Second, recorder.settle)
	lineID := uuid.New()

	scheduler.Schedule(lineID, 4)
	scheduler.Cancel(lineID)

	time.Sleep(60 * time.Millisecond)

	if calls := recorder.snapshot(); len(calls) != 0 {
		t.Fatalf("expected no settles after cancel, got %d", len(calls))
	}
	if scheduler.Pending(lineID) {
		t.Fatal("expected no pending mutation after cancel")
	}
}

func TestSchedulerTracksLinesIndependently(t *testing.T) {
	t.Parallel()

	recorder := newSettleRecorder()
	scheduler := NewScheduler(20*time.Millisecond, time.Second, recorder.settle)
	first := uuid.New()
	second := uuid.New()

	scheduler.Schedule(first, 1)
	scheduler.Schedule(second, 7)
	scheduler.Schedule(first, 2)

	recorder.wait(t)
	recorder.wait(t)

	quantities := map[uuid.UUID]int{}
	for _, call := range recorder.snapshot() {
		quantities[call.lineID] = call.quantity
	}
	if quantities[first] != 2 {
		t.Fatalf("expected first line to settle at 2, got %d", quantities[first])
	}
	if quantities[second] != 7 {
		t.Fatalf("expected second line to settle at 7, got %d", quantities[second])
	}
}

func TestSchedulerFlushSettlesImmediately(t *testing.T) {
	t.Parallel()

	recorder := newSettleRecorder()
	scheduler := NewScheduler(time.Hour, time.Second, recorder.settle)
	lineID := uuid.New()

	scheduler.Schedule(lineID, 6)
	scheduler.Flush()

	calls := recorder.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected one settle on flush, got %d", len(calls))
	}
	if calls[0].quantity != 6 {
		t.Fatalf("expected quantity 6, got %d", calls[0].quantity)
	}
	if scheduler.Pending(lineID) {
		t.Fatal("expected no pending mutation after flush")
	}
}
