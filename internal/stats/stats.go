// Package stats tracks which data source served each air-quality lookup over
// a sliding window. The /stats endpoint and the health report read it to show
// how often the service is running on fallback estimates.
package stats

import (
	"sync"
	"time"

	"github.com/lgaudin/air-quality-service/internal/models"
)

// maxAge bounds how long timestamps are retained regardless of query window.
const maxAge = time.Hour

var defaultTracker Tracker

// Record notes that a snapshot from the given source was served.
func Record(source models.Source) {
	defaultTracker.Record(source)
}

// Counts returns per-source serve counts within the window.
func Counts(window time.Duration) map[models.Source]int {
	return defaultTracker.Counts(window)
}

// Total returns the number of snapshots served within the window.
func Total(window time.Duration) int {
	return defaultTracker.Total(window)
}

// FallbackRate returns the share of snapshots served from the synthetic
// fallback within the window, 0 when nothing was served.
func FallbackRate(window time.Duration) float64 {
	return defaultTracker.FallbackRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of serve timestamps per data source.
type Tracker struct {
	mu    sync.Mutex
	times map[models.Source][]time.Time
}

// Record appends the current timestamp for the source and prunes old entries.
func (t *Tracker) Record(source models.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.times == nil {
		t.times = make(map[models.Source][]time.Time)
	}
	now := time.Now()
	t.times[source] = append(t.times[source], now)
	t.pruneLocked(now)
}

// Counts returns per-source serve counts within the window. Sources with no
// serves in the window are omitted.
func (t *Tracker) Counts(window time.Duration) map[models.Source]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	out := make(map[models.Source]int, len(t.times))
	for source, times := range t.times {
		if n := countInWindow(times, cutoff); n > 0 {
			out[source] = n
		}
	}
	return out
}

// Total returns the number of snapshots served within the window.
func (t *Tracker) Total(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	total := 0
	for _, times := range t.times {
		total += countInWindow(times, cutoff)
	}
	return total
}

// FallbackRate returns fallback serves / total serves within the window.
func (t *Tracker) FallbackRate(window time.Duration) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	total := 0
	fallback := 0
	for source, times := range t.times {
		n := countInWindow(times, cutoff)
		total += n
		if source == models.SourceIntelligentFallback {
			fallback += n
		}
	}
	if total == 0 {
		return 0
	}
	return float64(fallback) / float64(total)
}

// Reset clears all recorded outcomes from the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = nil
}

func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked removes timestamps older than maxAge. Must be called with the
// mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	for source, times := range t.times {
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[source] = append(times[:0], times[i:]...)
		}
	}
}
