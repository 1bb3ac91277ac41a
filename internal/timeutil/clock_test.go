package timeutil

import (
	"testing"
	"time"
)

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Advance(1500 * time.Millisecond)
	if got := c.Since(start); got != 1500*time.Millisecond {
		t.Errorf("Since(start) = %v, want 1.5s", got)
	}

	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v after Set, want %v", c.Now(), start)
	}
}

func TestMockClockSleepAdvances(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Sleep(33 * time.Millisecond)
	c.Sleep(33 * time.Millisecond)

	if got := c.Since(start); got != 66*time.Millisecond {
		t.Errorf("Since(start) = %v, want 66ms", got)
	}
	if got := len(c.Sleeps()); got != 2 {
		t.Errorf("len(Sleeps()) = %d, want 2", got)
	}
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	c.Advance(5 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	c.Advance(5 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire at its interval")
	}

	ticker.Stop()
	c.Advance(time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	now := c.Now()
	if now.Before(before) {
		t.Errorf("RealClock.Now() = %v, before %v", now, before)
	}
	ticker := c.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}
