package taskguard

import (
	"time"
)

// CacheEntry is an immutable cached value with its freshness and retention windows.
//
// An entry is stale once FreshExpiresAt has passed: its value is still served but
// should be refreshed. It is defunct once RetainExpiresAt has passed and may be removed.
// Methods never modify the receiver; Refresh and WithValue return new entries.
type CacheEntry[V any] struct {
	Key             string        `json:"key"`
	Value           V             `json:"value"`
	FreshnessWindow time.Duration `json:"freshnessWindow"`
	RetentionWindow time.Duration `json:"retentionWindow"`
	FreshExpiresAt  time.Time     `json:"freshExpiresAt"`
	RetainExpiresAt time.Time     `json:"retainExpiresAt"`
}

// NewCacheEntry creates an entry timed from now.
// A zero freshness window makes the entry stale the instant it is created.
func NewCacheEntry[V any](key string, value V, freshness, retention time.Duration, now time.Time) *CacheEntry[V] {
	e := &CacheEntry[V]{
		Key:             key,
		Value:           value,
		FreshnessWindow: freshness,
		RetentionWindow: retention,
	}
	e.retime(now)
	return e
}

func (e *CacheEntry[V]) retime(now time.Time) {
	if e.FreshnessWindow == 0 {
		e.FreshExpiresAt = now.Add(-time.Millisecond)
	} else {
		e.FreshExpiresAt = now.Add(e.FreshnessWindow)
	}
	e.RetainExpiresAt = now.Add(e.RetentionWindow)
}

// IsStale reports whether the freshness window has elapsed at now.
func (e *CacheEntry[V]) IsStale(now time.Time) bool {
	return now.After(e.FreshExpiresAt)
}

// ShouldDelete reports whether the retention window has elapsed at now.
func (e *CacheEntry[V]) ShouldDelete(now time.Time) bool {
	return now.After(e.RetainExpiresAt)
}

// Refresh returns a copy of the entry re-timed from now.
func (e *CacheEntry[V]) Refresh(now time.Time) *CacheEntry[V] {
	c := *e
	c.retime(now)
	return &c
}

// WithValue returns a copy of the entry holding v, keeping the timing metadata.
func (e *CacheEntry[V]) WithValue(v V) *CacheEntry[V] {
	c := *e
	c.Value = v
	return &c
}

// Result is the outcome of a cache read. A nil *Result means nothing was found.
type Result[V any] struct {
	Value   V
	IsStale bool
}
