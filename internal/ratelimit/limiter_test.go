package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// testClock lets tests advance time manually and capture sleeps.
type testClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newTestLimiter(cfg Config) (*Limiter, *testClock) {
	clk := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := New(cfg)
	l.now = func() time.Time { return clk.now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		clk.sleeps = append(clk.sleeps, d)
		clk.now = clk.now.Add(d)
		return nil
	}
	return l, clk
}

func TestAdmitUnderLimit(t *testing.T) {
	l, clk := newTestLimiter(Config{PerMinute: 5, PerHour: 10, PerDay: 20})

	for i := 0; i < 5; i++ {
		if err := l.Admit(context.Background()); err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
	}
	if len(clk.sleeps) != 0 {
		t.Fatalf("expected no waits, got %v", clk.sleeps)
	}

	u := l.Usage()
	if u.MinuteUsed != 5 || u.HourUsed != 5 || u.DayUsed != 5 {
		t.Fatalf("unexpected usage: %+v", u)
	}
	if u.TotalCalls != 5 {
		t.Fatalf("expected 5 total calls, got %d", u.TotalCalls)
	}
}

func TestAdmitBlocksOnMinuteWindow(t *testing.T) {
	l, clk := newTestLimiter(Config{PerMinute: 2, PerHour: 100, PerDay: 100})

	if err := l.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}
	clk.now = clk.now.Add(10 * time.Second)
	if err := l.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Third call must wait until the first timestamp leaves the window.
	if err := l.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(clk.sleeps) != 1 {
		t.Fatalf("expected one wait, got %v", clk.sleeps)
	}
	if clk.sleeps[0] != 50*time.Second {
		t.Fatalf("expected 50s wait, got %v", clk.sleeps[0])
	}
}

func TestAdmitBlocksOnLongestWindow(t *testing.T) {
	l, clk := newTestLimiter(Config{PerMinute: 100, PerHour: 2, PerDay: 100})

	for i := 0; i < 2; i++ {
		if err := l.Admit(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(clk.sleeps) != 1 || clk.sleeps[0] != time.Hour {
		t.Fatalf("expected 1h wait, got %v", clk.sleeps)
	}
}

func TestAdmitDailyLimitFailsFast(t *testing.T) {
	l, clk := newTestLimiter(Config{PerMinute: 100, PerHour: 100, PerDay: 3})

	for i := 0; i < 3; i++ {
		if err := l.Admit(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	err := l.Admit(context.Background())
	if !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("expected ErrDailyLimit, got %v", err)
	}
	// Must not have slept waiting for the day window.
	if len(clk.sleeps) != 0 {
		t.Fatalf("expected no waits, got %v", clk.sleeps)
	}
}

func TestWindowExpiryFreesSlots(t *testing.T) {
	l, clk := newTestLimiter(Config{PerMinute: 2, PerHour: 100, PerDay: 100})

	for i := 0; i < 2; i++ {
		if err := l.Admit(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	clk.now = clk.now.Add(61 * time.Second)

	if err := l.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(clk.sleeps) != 0 {
		t.Fatalf("expected no waits after expiry, got %v", clk.sleeps)
	}

	u := l.Usage()
	if u.MinuteUsed != 1 {
		t.Fatalf("expected 1 in minute window, got %d", u.MinuteUsed)
	}
	if u.DayUsed != 3 {
		t.Fatalf("expected 3 in day window, got %d", u.DayUsed)
	}
}

func TestAdmitContextCancelledDuringWait(t *testing.T) {
	l, clk := newTestLimiter(Config{PerMinute: 1, PerHour: 100, PerDay: 100})
	l.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	if err := l.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := l.Admit(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	_ = clk
}

func TestDefaults(t *testing.T) {
	l := New(Config{})
	u := l.Usage()
	if u.MinuteLimit != 200 || u.HourLimit != 400 || u.DayLimit != 2000 {
		t.Fatalf("unexpected defaults: %+v", u)
	}
}

func TestConcurrentAdmits(t *testing.T) {
	l := New(Config{PerMinute: 50, PerHour: 50, PerDay: 50})

	done := make(chan error, 50)
	for i := 0; i < 50; i++ {
		go func() {
			done <- l.Admit(context.Background())
		}()
	}
	for i := 0; i < 50; i++ {
		if err := <-done; err != nil {
			t.Fatalf("admit: %v", err)
		}
	}

	u := l.Usage()
	if u.DayUsed != 50 {
		t.Fatalf("expected 50 admitted, got %d", u.DayUsed)
	}
	if !errors.Is(l.Admit(context.Background()), ErrDailyLimit) {
		t.Fatal("expected ErrDailyLimit on 51st call")
	}
}
