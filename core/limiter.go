package core

import (
	"fmt"
	"sync"
)

// Limiter enforces a maximum number of counted occurrences (model calls,
// step retries, iterations). A negative max disables the limit; zero allows
// nothing.
type Limiter struct {
	name  string
	max   int
	count int
	mu    sync.Mutex
}

// NewLimiter creates a new limiter with a max number of occurrences.
func NewLimiter(name string, max int) *Limiter {
	return &Limiter{name: name, max: max}
}

// Increment increases the counter and returns an error if the limit is exceeded.
func (l *Limiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.max >= 0 && l.count > l.max {
		return fmt.Errorf("exceeded max %s: %d", l.name, l.max)
	}

	return nil
}

// Count returns the current number of occurrences.
func (l *Limiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many occurrences are left before hitting the limit.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max < 0 {
		return -1 // unlimited
	}

	if l.count >= l.max {
		return 0
	}

	return l.max - l.count
}

// Reset sets the counter back to zero.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count = 0
}
