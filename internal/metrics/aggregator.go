package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rohmanhakim/connector-etl/internal/queue"
)

/*
Responsibilities

- Decode completed queue items from the metrics tap and aggregate
  per-phase totals: document count, time sum, time max
- Count per-phase document errors and remember the most recent error
  items for the mail report
- Expose the same figures as Prometheus series on a private registry

Aggregation is observational only and never feeds back into scheduling.
*/

// PhaseStats is the per-phase aggregate the run summary reports.
type PhaseStats struct {
	Count       int
	TotalMillis int64
	MaxMillis   int64
	Errors      int
}

// errorItemKeep bounds how many error queue items are retained for the
// mail body's listing.
const errorItemKeep = 10

// Aggregator is the C6 consumer. One value per run; safe for the metrics
// tap goroutine and the run controller to share.
type Aggregator struct {
	mu         sync.Mutex
	phases     map[string]*PhaseStats
	errorItems []string

	registry    *prometheus.Registry
	docsTotal   *prometheus.CounterVec
	durationMs  *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
}

// NewAggregator builds an empty Aggregator with its own Prometheus
// registry.
func NewAggregator() *Aggregator {
	registry := prometheus.NewRegistry()

	docsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_phase_documents_total",
		Help: "Documents that completed each pipeline phase.",
	}, []string{"phase"})
	durationMs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connector_phase_duration_ms",
		Help:    "Per-document phase time in milliseconds.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"phase"})
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_phase_errors_total",
		Help: "Documents that failed in each pipeline phase.",
	}, []string{"phase"})

	registry.MustRegister(docsTotal, durationMs, errorsTotal)

	return &Aggregator{
		phases:      make(map[string]*PhaseStats),
		registry:    registry,
		docsTotal:   docsTotal,
		durationMs:  durationMs,
		errorsTotal: errorsTotal,
	}
}

// ObserveItem decodes one completed queue item and folds its phase-time
// segments into the aggregates. Sentinels are ignored.
func (a *Aggregator) ObserveItem(item string) {
	if queue.IsSentinel(item) {
		return
	}
	_, phases := queue.Decode(item)

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, pt := range phases {
		stats := a.phase(pt.Phase)
		stats.Count++
		stats.TotalMillis += pt.Millis
		if pt.Millis > stats.MaxMillis {
			stats.MaxMillis = pt.Millis
		}
		a.docsTotal.WithLabelValues(pt.Phase).Inc()
		a.durationMs.WithLabelValues(pt.Phase).Observe(float64(pt.Millis))
	}
}

// ObserveError counts one per-document phase failure. The encoded item is
// retained (newest first, capped) for the mail report's error listing.
func (a *Aggregator) ObserveError(phase, item string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.phase(phase).Errors++
	a.errorsTotal.WithLabelValues(phase).Inc()

	a.errorItems = append([]string{item}, a.errorItems...)
	if len(a.errorItems) > errorItemKeep {
		a.errorItems = a.errorItems[:errorItemKeep]
	}
}

// Snapshot copies the per-phase aggregates.
func (a *Aggregator) Snapshot() map[string]PhaseStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]PhaseStats, len(a.phases))
	for name, stats := range a.phases {
		out[name] = *stats
	}
	return out
}

// ErrorItems returns the retained error queue items, newest first.
func (a *Aggregator) ErrorItems() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.errorItems...)
}

// Registry exposes the private Prometheus registry for the admin HTTP
// /metrics endpoint.
func (a *Aggregator) Registry() *prometheus.Registry {
	return a.registry
}

// WriteSummary renders the human-readable per-phase summary written at
// run end.
func (a *Aggregator) WriteSummary(w io.Writer) error {
	snapshot := a.Snapshot()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stats := snapshot[name]
		avg := int64(0)
		if stats.Count > 0 {
			avg = stats.TotalMillis / int64(stats.Count)
		}
		_, err := fmt.Fprintf(w, "%-10s docs=%-8d errors=%-6d total_ms=%-10d avg_ms=%-8d max_ms=%d\n",
			name, stats.Count, stats.Errors, stats.TotalMillis, avg, stats.MaxMillis)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) phase(name string) *PhaseStats {
	stats, ok := a.phases[name]
	if !ok {
		stats = &PhaseStats{}
		a.phases[name] = stats
	}
	return stats
}
