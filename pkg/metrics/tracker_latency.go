// Package metrics keeps in-process latency windows for the readiness report.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// DefaultWindow is the number of samples kept per operation.
const DefaultWindow = 1000

// Window keeps the most recent latency samples in a ring.
type Window struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	total   int64
}

func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Window{samples: make([]time.Duration, size)}
}

// Record adds a sample, overwriting the oldest once the ring is full.
func (w *Window) Record(d time.Duration) {
	w.mu.Lock()
	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
	w.total++
	w.mu.Unlock()
}

// Stats summarizes the samples currently in the window.
func (w *Window) Stats() Stats {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	sorted := make([]time.Duration, n)
	copy(sorted, w.samples[:n])
	total := w.total
	w.mu.Unlock()

	if n == 0 {
		return Stats{}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	at := func(p float64) time.Duration {
		return sorted[int(float64(n-1)*p)]
	}
	return Stats{
		Count:   total,
		Samples: n,
		Max:     sorted[n-1],
		Avg:     sum / time.Duration(n),
		P50:     at(0.50),
		P95:     at(0.95),
		P99:     at(0.99),
	}
}

// Stats is a latency summary.
type Stats struct {
	Count   int64
	Samples int
	Max     time.Duration
	Avg     time.Duration
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// ToMap renders the summary in milliseconds.
func (s Stats) ToMap() map[string]any {
	return map[string]any{
		"count":       s.Count,
		"sample_size": s.Samples,
		"max_ms":      ms(s.Max),
		"avg_ms":      ms(s.Avg),
		"p50_ms":      ms(s.P50),
		"p95_ms":      ms(s.P95),
		"p99_ms":      ms(s.P99),
	}
}

// =============================================================================
// Registry
// =============================================================================

// Registry holds one window per named operation.
type Registry struct {
	mu      sync.RWMutex
	windows map[string]*Window
	size    int
}

func NewRegistry(windowSize int) *Registry {
	return &Registry{windows: make(map[string]*Window), size: windowSize}
}

// Record adds a sample for op. A nil registry ignores it.
func (r *Registry) Record(op string, d time.Duration) {
	if r == nil {
		return
	}
	r.mu.RLock()
	w, ok := r.windows[op]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if w, ok = r.windows[op]; !ok {
			w = NewWindow(r.size)
			r.windows[op] = w
		}
		r.mu.Unlock()
	}
	w.Record(d)
}

// Since records the time elapsed since start.
func (r *Registry) Since(op string, start time.Time) {
	r.Record(op, time.Since(start))
}

// Snapshot returns the summaries of all operations.
func (r *Registry) Snapshot() map[string]Stats {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.windows))
	for op, w := range r.windows {
		out[op] = w.Stats()
	}
	return out
}
