package sandbox

import (
	"context"
	"sync"
	"time"
)

// Slots bounds the number of simultaneous runs
type Slots struct {
	tokens chan struct{}
	size   int
	wait   time.Duration
	mu     sync.RWMutex
	closed bool
}

// NewSlots creates a limiter with size slots; Acquire gives up after wait
func NewSlots(size int, wait time.Duration) *Slots {
	if size <= 0 {
		size = 4
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}

	s := &Slots{
		tokens: make(chan struct{}, size),
		size:   size,
		wait:   wait,
	}
	for i := 0; i < size; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

// Acquire takes a slot and returns the func that gives it back
func (s *Slots) Acquire(ctx context.Context) (func(), error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	timer := time.NewTimer(s.wait)
	defer timer.Stop()

	select {
	case <-s.tokens:
		var once sync.Once
		return func() {
			once.Do(func() { s.tokens <- struct{}{} })
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrBusy
	}
}

// Close refuses further acquisitions. Runs in flight finish normally.
func (s *Slots) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Stats returns slot statistics
func (s *Slots) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"size":      s.size,
		"available": len(s.tokens),
		"in_use":    s.size - len(s.tokens),
		"closed":    s.closed,
	}
}

// InUse returns the number of slots currently taken
func (s *Slots) InUse() int {
	return s.size - len(s.tokens)
}
