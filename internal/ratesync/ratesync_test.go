package ratesync

import (
	"testing"
	"time"
)

func TestSyncPacesToRate(t *testing.T) {
	s := New(1000) // 1000 Hz -> 1ms per frame
	start := time.Now()
	s.Sync(100, start) // should block ~100ms
	elapsed := time.Since(start)
	if elapsed < 80*time.Millisecond {
		t.Fatalf("expected pacing to block roughly 100ms, took %v", elapsed)
	}
}

func TestSyncDoesNotCompensateBackwards(t *testing.T) {
	s := New(1000)
	time.Sleep(50 * time.Millisecond) // fall behind by more than one period
	start := time.Now()
	s.Sync(1, start) // one frame (~1ms ideal), already way past deadline
	elapsed := time.Since(start)
	if elapsed > 20*time.Millisecond {
		t.Fatalf("expected no compensation sleep, took %v", elapsed)
	}
}

func TestGetBusyMicrosReflectsEncodeDuration(t *testing.T) {
	s := New(8000)
	encodeStart := time.Now()
	time.Sleep(15 * time.Millisecond) // stand in for real encode work
	s.Sync(0, encodeStart)
	if got := s.GetBusyMicros(); got < 10*1000 {
		t.Fatalf("expected busy micros to reflect ~15ms of encode work, got %dus", got)
	}
}
