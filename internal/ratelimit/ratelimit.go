// Package ratelimit implements a fixed-window counter shared by the HTTP
// surface and the AI call quota.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// Rule describes one namespace: how long a window lasts and how many
// calls it admits.
type Rule struct {
	Window time.Duration
	Max    int
}

type window struct {
	start time.Time
	count int
}

// WindowStore tracks per-key counters. Increment advances the counter for
// key inside the current window and reports the resulting count together
// with the window start.
type WindowStore interface {
	Increment(key string, windowLen time.Duration, now time.Time) (count int, start time.Time)
}

// MemoryStore keeps windows in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

// NewMemoryStore returns an empty in-memory window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

// Increment implements WindowStore. A counter whose window has elapsed is
// reset before counting.
func (s *MemoryStore) Increment(key string, windowLen time.Duration, now time.Time) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= windowLen {
		w = &window{start: now}
		s.windows[key] = w
	}

	w.count++
	return w.count, w.start
}

var _ WindowStore = (*MemoryStore)(nil)

// Limiter evaluates calls against named fixed-window rules.
type Limiter struct {
	store     WindowStore
	rules     map[string]Rule
	allowList map[string]struct{}
	now       func() time.Time
}

// NewLimiter builds a limiter over store with the given per-namespace rules.
// Keys listed in allowList bypass every rule.
func NewLimiter(store WindowStore, rules map[string]Rule, allowList []string) *Limiter {
	bypass := make(map[string]struct{}, len(allowList))
	for _, k := range allowList {
		bypass[k] = struct{}{}
	}

	return &Limiter{
		store:     store,
		rules:     rules,
		allowList: bypass,
		now:       time.Now,
	}
}

// Allow checks whether key may make one more call under namespace. An
// unknown namespace is allowed; an exhausted window is refused with the
// time until it resets.
func (l *Limiter) Allow(namespace, key string) Decision {
	if _, ok := l.allowList[key]; ok {
		return Decision{Allowed: true, Reason: "allow-list"}
	}

	rule, ok := l.rules[namespace]
	if !ok || rule.Max <= 0 {
		return Decision{Allowed: true}
	}

	now := l.now()
	count, start := l.store.Increment(namespace+":"+key, rule.Window, now)
	if count <= rule.Max {
		return Decision{Allowed: true}
	}

	retryAfter := rule.Window - now.Sub(start)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return Decision{
		Allowed:    false,
		Reason:     "window limit reached",
		RetryAfter: retryAfter,
	}
}
