// Package bandwidth tracks a sliding-window history of download throughput
// so the CLI host and any other subscriber can show an aggregate rate.
package bandwidth

import (
	"sync"
	"time"
)

// Sample is one second-bucketed throughput reading.
type Sample struct {
	Timestamp time.Time
	BytesDelta int64
}

// Monitor is a mutex-guarded rolling window of byte-delta samples. Writers
// (worker goroutines reporting progress) and readers (a polling UI) may call
// concurrently.
type Monitor struct {
	mu            sync.Mutex
	window        time.Duration
	samples       []Sample
	nowFunc       func() time.Time
}

// NewMonitor creates a monitor with the given window. windowSeconds <= 0
// defaults to 60.
func NewMonitor(windowSeconds int) *Monitor {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return &Monitor{
		window:  time.Duration(windowSeconds) * time.Second,
		nowFunc: time.Now,
	}
}

// AddDataPoint records a byte delta against the current time, summing into
// the same second's bucket if one already exists.
func (m *Monitor) AddDataPoint(bytesDelta int64) {
	if bytesDelta == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc().Truncate(time.Second)
	if n := len(m.samples); n > 0 && m.samples[n-1].Timestamp.Equal(now) {
		m.samples[n-1].BytesDelta += bytesDelta
		return
	}
	m.samples = append(m.samples, Sample{Timestamp: now, BytesDelta: bytesDelta})
}

// GetBandwidthHistory returns samples newer than now-window, evicting older
// ones from the underlying slice as a side effect of the read.
func (m *Monitor) GetBandwidthHistory() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()

	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// CurrentRate returns the sum of in-window byte deltas divided by the window
// length, in bytes/second.
func (m *Monitor) CurrentRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()

	if len(m.samples) == 0 {
		return 0
	}
	var total int64
	for _, s := range m.samples {
		total += s.BytesDelta
	}
	return float64(total) / m.window.Seconds()
}

// Reset empties the window.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
}

func (m *Monitor) evictLocked() {
	cutoff := m.nowFunc().Add(-m.window)
	i := 0
	for i < len(m.samples) && m.samples[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		m.samples = m.samples[i:]
	}
}
