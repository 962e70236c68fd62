package core

import (
	"fmt"
	"sync"
)

// HopLimiter enforces a maximum number of routing hops per submission.
type HopLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewHopLimiter creates a limiter allowing max hops. max < 1 is treated as 1.
func NewHopLimiter(max int) *HopLimiter {
	if max < 1 {
		max = 1
	}
	return &HopLimiter{max: max}
}

// Increment records a hop and returns an error wrapping ErrMaxHopsExceeded
// once the limit is passed.
func (hl *HopLimiter) Increment() error {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	hl.count++
	if hl.count > hl.max {
		return fmt.Errorf("%w: limit %d", ErrMaxHopsExceeded, hl.max)
	}

	return nil
}

// Count returns the number of hops recorded so far.
func (hl *HopLimiter) Count() int {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	return hl.count
}

// Remaining returns how many hops are left.
func (hl *HopLimiter) Remaining() int {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	return hl.max - hl.count
}
