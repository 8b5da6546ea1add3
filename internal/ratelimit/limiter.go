package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Throttled actions. Registration writes get a stricter quota than reads.
const (
	ActionRegister = "register"
	ActionRead     = "read"
)

// Rule is a fixed-window quota for one action.
type Rule struct {
	Window time.Duration
	Max    int
}

// Result reports one throttle decision.
type Result struct {
	Allowed       bool
	Limit         int
	Remaining     int
	ResetAt       time.Time
	RetryAfterSec int // seconds until the window resets; 0 when allowed
}

// Store counts requests per key within fixed windows. The in-memory
// implementation is process-local; a shared counter store (e.g. Redis) can be
// swapped in behind this interface for multi-instance deployments.
type Store interface {
	// Incr records one request for key and returns the count within the
	// current window and the window's reset time. A new window starts when
	// the previous one has elapsed.
	Incr(key string, window time.Duration, now time.Time) (count int, resetAt time.Time)
	// Sweep drops records whose window ended before now.
	Sweep(now time.Time)
}

type record struct {
	resetAt time.Time
	count   int
}

// MemoryStore is the process-local Store backed by a mutex-guarded map.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*record)}
}

func (s *MemoryStore) Incr(key string, window time.Duration, now time.Time) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok || !now.Before(rec.resetAt) {
		rec = &record{resetAt: now.Add(window), count: 1}
		s.records[key] = rec
		return rec.count, rec.resetAt
	}
	rec.count++
	return rec.count, rec.resetAt
}

// Sweep drops records whose own window has ended. Window lengths vary per
// action, so each record carries its reset time; a live window is never
// evicted no matter how long it is configured.
func (s *MemoryStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.records {
		if !now.Before(rec.resetAt) {
			delete(s.records, key)
		}
	}
}

// Limiter applies per-action fixed-window rules keyed by caller identity.
type Limiter struct {
	store  Store
	rules  map[string]Rule
	logger *zap.Logger
	now    func() time.Time
}

// NewLimiter creates a limiter with per-action rules. Actions without a rule
// are never throttled.
func NewLimiter(store Store, rules map[string]Rule, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{store: store, rules: rules, logger: logger, now: time.Now}
}

// Check records one request for (caller, action) and decides whether it is
// within quota.
func (l *Limiter) Check(action, caller string) Result {
	rule, ok := l.rules[action]
	if !ok || rule.Max <= 0 {
		return Result{Allowed: true}
	}
	now := l.now()
	count, resetAt := l.store.Incr(caller+":"+action, rule.Window, now)

	remaining := rule.Max - count
	if remaining < 0 {
		remaining = 0
	}
	if count > rule.Max {
		retryAfter := int((resetAt.Sub(now) + time.Second - 1) / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		l.logger.Warn("rate limit exceeded",
			zap.String("action", action),
			zap.String("caller", caller),
			zap.Time("reset_at", resetAt),
		)
		return Result{Allowed: false, Limit: rule.Max, Remaining: 0, ResetAt: resetAt, RetryAfterSec: retryAfter}
	}
	return Result{Allowed: true, Limit: rule.Max, Remaining: remaining, ResetAt: resetAt}
}

// RunSweep periodically evicts expired windows until ctx is done. Runs as an
// independent background goroutine; request handling never blocks on it.
func (l *Limiter) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.store.Sweep(l.now())
		}
	}
}
