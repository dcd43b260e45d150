package progress

import (
	"sync"
	"time"
)

// SpeedWindow computes instantaneous throughput over a short rolling
// window of samples.
type SpeedWindow struct {
	mu      sync.Mutex
	window  time.Duration
	samples []sample
	total   int64
}

type sample struct {
	at    time.Time
	bytes int64
}

// NewSpeedWindow creates a window over the given duration.
// A zero duration defaults to 3 seconds.
func NewSpeedWindow(window time.Duration) *SpeedWindow {
	if window <= 0 {
		window = 3 * time.Second
	}
	return &SpeedWindow{window: window}
}

// Add records n freshly transferred bytes.
func (w *SpeedWindow) Add(n int64) {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, sample{at: now, bytes: n})
	w.total += n
	w.pruneLocked(now)
}

// Rate returns the current throughput in bytes per second.
func (w *SpeedWindow) Rate() int64 {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)

	if len(w.samples) == 0 {
		return 0
	}
	elapsed := now.Sub(w.samples[0].at).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	return int64(float64(w.total) / elapsed)
}

func (w *SpeedWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for ; i < len(w.samples); i++ {
		if w.samples[i].at.After(cutoff) {
			break
		}
		w.total -= w.samples[i].bytes
	}
	w.samples = w.samples[i:]
}

// Throttle limits how often progress is reported. At most one call to
// Allow returns true per interval.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewThrottle creates a Throttle. A zero interval allows every call.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Allow reports whether a progress event should be emitted now.
func (t *Throttle) Allow() bool {
	if t.interval <= 0 {
		return true
	}
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
