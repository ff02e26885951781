// Package ratelimit implements the sliding-window session limiter and the
// decaying chaos-score abuse detector.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Info is the rate-limit triple exposed through response headers.
type Info struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Classification of a single request, used to drive the chaos score.
type Classification string

const (
	ClassNormal Classification = "normal"
	ClassSpam   Classification = "spam"
	ClassAbuse  Classification = "abuse"
)

// Verdict is the admission decision for a session.
type Verdict struct {
	Info     Info
	Limited  bool // window counter exhausted
	Spamming bool // chaos score or violations over threshold
}

// SessionLimiter is the admission contract. Implementations must keep
// per-key operations atomic while letting different keys proceed in parallel.
type SessionLimiter interface {
	// Check prunes the window and reports the current verdict without
	// recording a request.
	Check(ctx context.Context, key string) (Verdict, error)
	// Record registers an accepted (or rejected-as-spam) request and updates
	// the chaos score per the classification.
	Record(ctx context.Context, key string, class Classification) (Info, error)
}

// Config carries the limiter constants. Zero values fall back to defaults.
type Config struct {
	Capacity       int
	Window         time.Duration
	ChaosThreshold int
	MaxViolations  int
	SpamPenalty    int
	AbusePenalty   int
	DecayPerMinute int
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 60
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.ChaosThreshold <= 0 {
		c.ChaosThreshold = 50
	}
	if c.MaxViolations <= 0 {
		c.MaxViolations = 5
	}
	if c.SpamPenalty <= 0 {
		c.SpamPenalty = 10
	}
	if c.AbusePenalty <= 0 {
		c.AbusePenalty = 25
	}
	if c.DecayPerMinute <= 0 {
		c.DecayPerMinute = 5
	}
	return c
}

type sessionState struct {
	mu         sync.Mutex
	timestamps []time.Time
	chaos      int
	violations int
	decayedAt  time.Time
	lastSeen   time.Time
}

// Limiter is the in-memory SessionLimiter. Sessions live in a sync.Map with
// per-session mutexes so concurrent requests for different keys never contend.
type Limiter struct {
	cfg      Config
	sessions sync.Map // string -> *sessionState
	now      func() time.Time
}

func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg.withDefaults(), now: time.Now}
}

func (l *Limiter) session(key string) *sessionState {
	if v, ok := l.sessions.Load(key); ok {
		return v.(*sessionState)
	}
	s := &sessionState{decayedAt: l.now()}
	actual, _ := l.sessions.LoadOrStore(key, s)
	return actual.(*sessionState)
}

// decay applies elapsed-time decay to chaos score and violations.
// Caller holds s.mu.
func (l *Limiter) decay(s *sessionState, now time.Time) {
	minutes := int(now.Sub(s.decayedAt) / time.Minute)
	if minutes <= 0 {
		return
	}
	s.chaos -= minutes * l.cfg.DecayPerMinute
	if s.chaos < 0 {
		s.chaos = 0
	}
	s.violations -= minutes
	if s.violations < 0 {
		s.violations = 0
	}
	s.decayedAt = s.decayedAt.Add(time.Duration(minutes) * time.Minute)
}

// prune drops timestamps older than the window. Caller holds s.mu.
func (l *Limiter) prune(s *sessionState, now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for ; i < len(s.timestamps); i++ {
		if s.timestamps[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		s.timestamps = append(s.timestamps[:0], s.timestamps[i:]...)
	}
}

func (l *Limiter) info(s *sessionState, now time.Time) Info {
	remaining := l.cfg.Capacity - len(s.timestamps)
	if remaining < 0 {
		remaining = 0
	}
	resetAt := now.Add(l.cfg.Window)
	if len(s.timestamps) > 0 {
		resetAt = s.timestamps[0].Add(l.cfg.Window)
	}
	return Info{Limit: l.cfg.Capacity, Remaining: remaining, ResetAt: resetAt}
}

func (l *Limiter) Check(_ context.Context, key string) (Verdict, error) {
	s := l.session(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	l.decay(s, now)
	l.prune(s, now)

	info := l.info(s, now)
	return Verdict{
		Info:     info,
		Limited:  info.Remaining == 0,
		Spamming: s.chaos >= l.cfg.ChaosThreshold || s.violations > l.cfg.MaxViolations,
	}, nil
}

func (l *Limiter) Record(_ context.Context, key string, class Classification) (Info, error) {
	s := l.session(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	l.decay(s, now)
	l.prune(s, now)

	s.timestamps = append(s.timestamps, now)
	s.lastSeen = now

	switch class {
	case ClassSpam:
		s.chaos += l.cfg.SpamPenalty
		s.violations++
	case ClassAbuse:
		s.chaos += l.cfg.AbusePenalty
		s.violations++
	default:
		if s.chaos > 0 {
			s.chaos--
		}
	}

	return l.info(s, now), nil
}

// ChaosScore reports the current decayed score, for tests and vibe analysis.
func (l *Limiter) ChaosScore(key string) int {
	s := l.session(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	l.decay(s, l.now())
	return s.chaos
}

// Sweep removes sessions whose window has fully expired and whose chaos score
// has decayed to zero. Returns the number of sessions removed.
func (l *Limiter) Sweep() int {
	removed := 0
	now := l.now()
	l.sessions.Range(func(k, v any) bool {
		s := v.(*sessionState)
		s.mu.Lock()
		l.decay(s, now)
		l.prune(s, now)
		dead := len(s.timestamps) == 0 && s.chaos == 0 && s.violations == 0
		s.mu.Unlock()
		if dead {
			l.sessions.Delete(k)
			removed++
		}
		return true
	})
	return removed
}

// RunSweeper sweeps on the given interval until ctx is cancelled.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
