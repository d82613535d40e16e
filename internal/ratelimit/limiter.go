// Package ratelimit enforces the enrichment source's per-minute, per-hour and
// per-day call budgets with sliding windows.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrDailyLimit is returned when the day window is at capacity. Callers must
// stop the run rather than wait: the remaining window can be most of a day.
var ErrDailyLimit = eris.New("daily enrichment API limit reached")

// Config sets the window capacities. Zero values fall back to the defaults
// matching the enrichment source's published plan limits.
type Config struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// Usage is a point-in-time snapshot of window occupancy, exposed by /stats.
type Usage struct {
	TotalCalls  int64 `json:"total_calls"`
	MinuteUsed  int   `json:"minute_usage"`
	HourUsed    int   `json:"hour_usage"`
	DayUsed     int   `json:"day_usage"`
	MinuteLimit int   `json:"per_minute"`
	HourLimit   int   `json:"per_hour"`
	DayLimit    int   `json:"per_day"`
}

// window is a bounded queue of call timestamps within a trailing period.
type window struct {
	period   time.Duration
	capacity int
	stamps   []time.Time
}

// purge drops timestamps older than the trailing period.
func (w *window) purge(now time.Time) {
	cutoff := now.Add(-w.period)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

func (w *window) full() bool {
	return len(w.stamps) >= w.capacity
}

// waitUntilFree returns how long until the oldest timestamp leaves the window.
func (w *window) waitUntilFree(now time.Time) time.Duration {
	if len(w.stamps) == 0 {
		return 0
	}
	return w.stamps[0].Add(w.period).Sub(now)
}

// Limiter admits calls against three sliding windows under one lock. The
// capacity check and the timestamp append of a successful admit happen in the
// same critical section, so two racing callers can never both take the last
// free slot.
type Limiter struct {
	mu         sync.Mutex
	minute     *window
	hour       *window
	day        *window
	totalCalls int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter with the given budgets.
func New(cfg Config) *Limiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 200
	}
	if cfg.PerHour <= 0 {
		cfg.PerHour = 400
	}
	if cfg.PerDay <= 0 {
		cfg.PerDay = 2000
	}
	return &Limiter{
		minute: &window{period: time.Minute, capacity: cfg.PerMinute},
		hour:   &window{period: time.Hour, capacity: cfg.PerHour},
		day:    &window{period: 24 * time.Hour, capacity: cfg.PerDay},
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Admit blocks until a call slot is free in the minute and hour windows, then
// records the call in all three windows. If the day window is at capacity it
// fails immediately with ErrDailyLimit. Cancellation of ctx aborts any wait.
func (l *Limiter) Admit(ctx context.Context) error {
	for {
		wait, err := l.tryAdmit()
		if err != nil {
			return err
		}
		if wait == 0 {
			return nil
		}

		zap.L().Warn("rate limit window full, waiting",
			zap.Duration("wait", wait),
		)
		if err := l.sleep(ctx, wait); err != nil {
			return eris.Wrap(err, "ratelimit: wait cancelled")
		}
	}
}

// tryAdmit performs one atomic check-and-admit pass. It returns a non-zero
// wait when a blocking window is full, and appends the call timestamp only
// when admission succeeds within this same critical section.
func (l *Limiter) tryAdmit() (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute.purge(now)
	l.hour.purge(now)
	l.day.purge(now)

	if l.day.full() {
		return 0, ErrDailyLimit
	}

	var wait time.Duration
	if l.minute.full() {
		wait = l.minute.waitUntilFree(now)
	}
	if l.hour.full() {
		if w := l.hour.waitUntilFree(now); w > wait {
			wait = w
		}
	}
	if wait > 0 {
		return wait, nil
	}

	l.minute.stamps = append(l.minute.stamps, now)
	l.hour.stamps = append(l.hour.stamps, now)
	l.day.stamps = append(l.day.stamps, now)
	l.totalCalls++
	return 0, nil
}

// Usage returns a snapshot of current window occupancy.
func (l *Limiter) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.minute.purge(now)
	l.hour.purge(now)
	l.day.purge(now)

	return Usage{
		TotalCalls:  l.totalCalls,
		MinuteUsed:  len(l.minute.stamps),
		HourUsed:    len(l.hour.stamps),
		DayUsed:     len(l.day.stamps),
		MinuteLimit: l.minute.capacity,
		HourLimit:   l.hour.capacity,
		DayLimit:    l.day.capacity,
	}
}
