// Package ratelimit provides fixed window rate limiting over keyed counters.
package ratelimit

import (
	"sync"
	"time"

	"github.com/sprucehealth/payflow/libs/clock"
)

// KeyedRateLimiter checks and consumes rate limit capacity for a key.
type KeyedRateLimiter interface {
	// Check returns false when the key has exceeded its limit for the
	// current window. The cost is consumed atomically against the window
	// counter before the limit comparison is made.
	Check(key string, cost int) (bool, error)
}

// NullKeyedRateLimiter is a rate limiter that never limits. Useful when
// rate limiting is disabled by configuration.
type NullKeyedRateLimiter struct{}

// Check implements KeyedRateLimiter
func (NullKeyedRateLimiter) Check(key string, cost int) (bool, error) {
	return true, nil
}

// Memory implements a fixed window rate limiter entirely in process memory.
// It serializes counter updates with a mutex so concurrent requests for the
// same key cannot exceed the cap. Windows are pruned lazily as they expire.
type Memory struct {
	max int
	sec int
	clk clock.Clock

	mu     sync.Mutex
	counts map[string]int
	window int64
}

// NewMemory returns an in-memory fixed window rate limiter allowing max
// requests every sec seconds.
func NewMemory(clk clock.Clock, max, sec int) *Memory {
	if clk == nil {
		clk = clock.New()
	}
	return &Memory{
		max:    max,
		sec:    sec,
		clk:    clk,
		counts: make(map[string]int),
	}
}

// Check implements KeyedRateLimiter
func (m *Memory) Check(key string, cost int) (bool, error) {
	if cost > m.max {
		return false, nil
	}
	iv := m.clk.Now().Unix() / int64(m.sec)
	m.mu.Lock()
	defer m.mu.Unlock()
	if iv != m.window {
		// A new window invalidates every prior counter
		m.window = iv
		m.counts = make(map[string]int)
	}
	m.counts[key] += cost
	return m.counts[key] <= m.max, nil
}

var _ KeyedRateLimiter = (*Memory)(nil)

// windowKey produces the storage key for the current fixed window.
func windowKey(prefix string, now time.Time, sec int) string {
	iv := now.Unix() / int64(sec)
	const digits = "0123456789abcdef"
	var b [16]byte
	i := len(b)
	v := uint64(iv)
	for {
		i--
		b[i] = digits[v&0xf]
		v >>= 4
		if v == 0 {
			break
		}
	}
	return prefix + ":" + string(b[i:])
}
