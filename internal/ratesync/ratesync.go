// Package ratesync paces the producing side of a PCM stream to a nominal
// sample rate and reports how much of the last slice was spent doing real
// work, which the I/O engine uses to estimate encoding delay.
package ratesync

import (
	"sync/atomic"
	"time"
)

// Synchroniser anchors a start time and a cumulative frame count at a fixed
// sample rate, sleeping between batches so the producer advances no faster
// than real time.
type Synchroniser struct {
	rate      int
	start     time.Time
	frames    int64
	busyNanos atomic.Int64
}

// New creates a Synchroniser for the given sample rate (Hz) and anchors it
// to now, as Init does.
func New(rateHz int) *Synchroniser {
	s := &Synchroniser{rate: rateHz}
	s.Init(rateHz)
	return s
}

// Init (re)anchors the synchroniser: start = now, cumulative frames = 0.
// Called on construction and again on PCM_OPEN/PCM_RESUME per spec.md §4.8.
func (s *Synchroniser) Init(rateHz int) {
	s.rate = rateHz
	s.start = time.Now()
	s.frames = 0
	s.busyNanos.Store(0)
}

// Sync is called after each encode batch with the number of frames just
// produced and the wall-clock time the batch's encode work began
// (captured by the caller before it touched the encoder). It records how
// busy the caller was since encodeStart, then sleeps until the ideal
// wall-clock time for the new cumulative frame count.
//
// Per spec.md §4.2, if the deadline has already passed by more than one
// period, sleeping is skipped entirely and the shortfall is not
// compensated for on subsequent calls — the anchor never moves backwards
// nor accumulates a deficit.
func (s *Synchroniser) Sync(frames int, encodeStart time.Time) {
	now := time.Now()
	busy := now.Sub(encodeStart)
	s.busyNanos.Store(int64(busy))

	s.frames += int64(frames)
	period := time.Second / time.Duration(max(s.rate, 1))
	ideal := s.start.Add(time.Duration(s.frames) * time.Second / time.Duration(max(s.rate, 1)))

	if now.Before(ideal) {
		time.Sleep(ideal.Sub(now))
	} else if now.Sub(ideal) <= period {
		// Within one period late: nothing to do, don't oversleep to catch up.
	} else {
		// More than one period late: a clock jump or a stalled producer. Skip
		// sleeping and move the anchor forward so the shortfall is dropped
		// rather than made up on later calls.
		s.start = now.Add(-time.Duration(s.frames) * time.Second / time.Duration(max(s.rate, 1)))
	}
}

// GetBusyMicros returns the most recently recorded busy interval, in
// microseconds, suitable for feeding straight into an encoding-delay
// estimate (spec.md §4.8: delay = busy_usec / 100).
func (s *Synchroniser) GetBusyMicros() int64 {
	return s.busyNanos.Load() / int64(time.Microsecond)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
