package client

import (
	"context"
	"sync"
	"time"

	"portalrecruit/ingestion/internal/metrics"

	"golang.org/x/time/rate"
)

// ThrottleConfig tunes the adaptive request spacing.
type ThrottleConfig struct {
	Base          time.Duration
	Floor         time.Duration
	Ceiling       time.Duration
	Penalty       time.Duration
	Decay         float64
	Cooldown      time.Duration
	CooldownEvery int
}

// DefaultThrottleConfig returns the spacing used against the production API.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		Base:          1500 * time.Millisecond,
		Floor:         800 * time.Millisecond,
		Ceiling:       8 * time.Second,
		Penalty:       750 * time.Millisecond,
		Decay:         0.95,
		Cooldown:      3 * time.Second,
		CooldownEvery: 25,
	}
}

// Throttle spaces outgoing requests. The interval grows on every 429 and
// relaxes slowly on success, always within [Floor, Ceiling]. A single
// Throttle is shared by everything that talks to the same API key.
type Throttle struct {
	mu       sync.Mutex
	cfg      ThrottleConfig
	interval time.Duration
	requests int
	limiter  *rate.Limiter
}

// NewThrottle creates a throttle starting at cfg.Base.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.Decay <= 0 || cfg.Decay > 1 {
		cfg.Decay = 0.95
	}
	t := &Throttle{
		cfg:      cfg,
		interval: cfg.Base,
		limiter:  rate.NewLimiter(rate.Every(cfg.Base), 1),
	}
	metrics.SetThrottleInterval(cfg.Base.Seconds())
	return t
}

// Wait blocks until the next request may be sent. Every CooldownEvery-th
// request also owes the periodic cooldown, which is returned for the caller
// to sleep with its own sleeper.
func (t *Throttle) Wait(ctx context.Context) (time.Duration, error) {
	t.mu.Lock()
	t.requests++
	cooldown := t.cfg.CooldownEvery > 0 && t.requests%t.cfg.CooldownEvery == 0
	t.mu.Unlock()

	if err := t.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	if cooldown && t.cfg.Cooldown > 0 {
		return t.cfg.Cooldown, nil
	}
	return 0, nil
}

// Penalize widens the interval after a rate-limit response.
func (t *Throttle) Penalize() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.interval = min(t.cfg.Ceiling, t.interval+t.cfg.Penalty)
	t.apply()
	return t.interval
}

// Relax narrows the interval after a successful response.
func (t *Throttle) Relax() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.interval = max(t.cfg.Floor, time.Duration(float64(t.interval)*t.cfg.Decay))
	t.apply()
	return t.interval
}

// Interval returns the current spacing between requests.
func (t *Throttle) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// Requests returns how many requests have been admitted so far.
func (t *Throttle) Requests() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests
}

// apply pushes the interval into the limiter; mu must be held.
func (t *Throttle) apply() {
	t.limiter.SetLimit(rate.Every(t.interval))
	metrics.SetThrottleInterval(t.interval.Seconds())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
