package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	if now.Before(before) || now.After(time.Now()) {
		t.Errorf("Now() = %v, expected current time", now)
	}

	if d := clock.Since(time.Now().Add(-time.Second)); d < time.Second {
		t.Errorf("Since() = %v, expected >= 1s", d)
	}

	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}
	clock.Advance(90 * time.Second)
	if got := clock.Since(start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}
	later := start.Add(time.Hour)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", clock.Now(), later)
	}
}

func TestMockClockSleep(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	clock.Sleep(10 * time.Millisecond)
	clock.Sleep(20 * time.Millisecond)

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 10*time.Millisecond || sleeps[1] != 20*time.Millisecond {
		t.Errorf("Sleeps() = %v", sleeps)
	}
	if got := clock.Since(time.Unix(0, 0)); got != 30*time.Millisecond {
		t.Errorf("Expected sleeps to advance the clock by 30ms, got %v", got)
	}
}

func TestMockTicker(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)

	testCases := []struct {
		advance  time.Duration
		expected time.Time // zero means no tick
	}{
		{500 * time.Millisecond, time.Time{}},
		{500 * time.Millisecond, time.Unix(1, 0)},
		{200 * time.Millisecond, time.Time{}},
		// Skipping two ticks delivers only the later one.
		{2500 * time.Millisecond, time.Unix(3, 0)},
		{time.Second, time.Unix(4, 0)},
	}

	for i, tc := range testCases {
		clock.Advance(tc.advance)
		select {
		case tick := <-ticker.C():
			if tc.expected.IsZero() {
				t.Fatalf("step %d: unexpected tick at %v", i, tick)
			}
			if !tick.Equal(tc.expected) {
				t.Errorf("step %d: tick at %v, want %v", i, tick, tc.expected)
			}
		default:
			if !tc.expected.IsZero() {
				t.Fatalf("step %d: ticker did not fire", i)
			}
		}
	}

	if clock.Tickers() != 1 {
		t.Errorf("Tickers() = %d, want 1", clock.Tickers())
	}
	ticker.Stop()
	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
	if clock.Tickers() != 0 {
		t.Errorf("Tickers() after Stop = %d, want 0", clock.Tickers())
	}
}
