package expiration

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Policy decides whether an entry has passed its freshness deadline.
type Policy interface {
	// IsStale reports whether an entry whose freshness ends at freshExpiresAt is stale at now.
	IsStale(now, freshExpiresAt time.Time) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(now, freshExpiresAt time.Time) bool

// IsStale calls f.
func (f PolicyFunc) IsStale(now, freshExpiresAt time.Time) bool {
	return f(now, freshExpiresAt)
}

// GeneralPolicy marks an entry stale once now is strictly after its freshness deadline.
type GeneralPolicy struct{}

var _ Policy = GeneralPolicy{}

// IsStale returns now > freshExpiresAt.
func (GeneralPolicy) IsStale(now, freshExpiresAt time.Time) bool {
	return now.After(freshExpiresAt)
}

// NeverPolicy never reports an entry as stale.
// Entries are then served as fresh until their retention window ends.
type NeverPolicy struct{}

var _ Policy = NeverPolicy{}

// IsStale always returns false.
func (NeverPolicy) IsStale(time.Time, time.Time) bool {
	return false
}

// EarlyPolicy reports some entries stale up to Duration before their deadline, so that
// callers sharing a hot key spread their refreshes instead of refreshing together.
type EarlyPolicy struct {
	// Duration is how much earlier an entry can become stale.
	Duration time.Duration

	// Percentage is the chance (between 0 and 1) that a check uses the early deadline.
	Percentage float64

	// Random decides early staleness. The package-level generator is used if nil.
	Random *rand.Rand

	mu sync.Mutex
}

var _ Policy = (*EarlyPolicy)(nil)

// IsStale behaves like GeneralPolicy with probability 1-Percentage, and otherwise checks
// now+Duration against the deadline.
func (p *EarlyPolicy) IsStale(now, freshExpiresAt time.Time) bool {
	if p.randFloat64() >= p.Percentage {
		return now.After(freshExpiresAt)
	}
	return now.Add(p.Duration).After(freshExpiresAt)
}

func (p *EarlyPolicy) randFloat64() float64 {
	if p.Random == nil {
		return rand.Float64()
	}

	// rand.Rand is not safe for concurrent use.
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Random.Float64()
}
