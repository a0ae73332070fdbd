package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SettleFunc commits a debounced quantity mutation for one cart line.
type SettleFunc func(ctx context.Context, lineID uuid.UUID, quantity int)

// Scheduler coalesces rapid quantity edits per cart line. Each edit
// cancels the line's pending mutation and restarts the quiet window,
// so only the last requested quantity is ever committed.
type Scheduler struct {
	mu            sync.Mutex
	window        time.Duration
	settleTimeout time.Duration
	settle        SettleFunc
	pending       map[uuid.UUID]*pendingMutation
}

type pendingMutation struct {
	timer    *time.Timer
	quantity int
}

// NewScheduler builds a scheduler with the given quiet window.
func NewScheduler(window, settleTimeout time.Duration, settle SettleFunc) *Scheduler {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	if settleTimeout <= 0 {
		settleTimeout = 10 * time.Second
	}
	return &Scheduler{
		window:        window,
		settleTimeout: settleTimeout,
		settle:        settle,
		pending:       make(map[uuid.UUID]*pendingMutation),
	}
}

// Schedule registers the desired quantity for a line, replacing any
// pending mutation for the same line.
func (s *Scheduler) Schedule(lineID uuid.UUID, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[lineID]; ok {
		existing.timer.Stop()
	}

	mutation := &pendingMutation{quantity: quantity}
	mutation.timer = time.AfterFunc(s.window, func() {
		s.fire(lineID, mutation)
	})
	s.pending[lineID] = mutation
}

// Cancel drops the pending mutation for a line, if any. Used when the
// line is removed mid-window.
func (s *Scheduler) Cancel(lineID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[lineID]; ok {
		existing.timer.Stop()
		delete(s.pending, lineID)
	}
}

// Pending reports whether the line has an unsettled mutation.
func (s *Scheduler) Pending(lineID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[lineID]
	return ok
}

// Flush settles every pending mutation immediately. Used on shutdown.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	mutations := make(map[uuid.UUID]*pendingMutation, len(s.pending))
	for id, m := range s.pending {
		if m.timer.Stop() {
			mutations[id] = m
		}
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for id, m := range mutations {
		s.run(id, m.quantity)
	}
}

func (s *Scheduler) fire(lineID uuid.UUID, mutation *pendingMutation) {
	s.mu.Lock()
	// A newer edit may have replaced this mutation between the timer
	// firing and the lock being acquired.
	if current, ok := s.pending[lineID]; !ok || current != mutation {
		s.mu.Unlock()
		return
	}
	delete(s.pending, lineID)
	s.mu.Unlock()

	s.run(lineID, mutation.quantity)
}

func (s *Scheduler) run(lineID uuid.UUID, quantity int) {
	if s.settle == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.settleTimeout)
	defer cancel()
	s.settle(ctx, lineID, quantity)
}
