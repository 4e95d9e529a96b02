// Package telemetry exports scan metrics to Prometheus. Metrics are
// registered on an explicit registerer so tests and embedders own the
// registry.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kittclouds/taxomine/pkg/sheaf"
)

const namespace = "taxomine"

// Metrics holds the scan counters. A nil *Metrics records nothing.
type Metrics struct {
	Runs         prometheus.Counter
	Windows      prometheus.Counter
	Unresolved   prometheus.Counter
	Sections     prometheus.Counter
	Cuts         prometheus.Counter
	PartialLifts *prometheus.CounterVec
	Excluded     *prometheus.CounterVec
	ScanDuration prometheus.Histogram
}

// New creates the metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help: "Completed pipeline runs.",
		}),
		Windows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "windows_total",
			Help: "Windows solved.",
		}),
		Unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "unresolved_windows_total",
			Help: "Windows where no prime found structure.",
		}),
		Sections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sections_total",
			Help: "Global sections glued.",
		}),
		Cuts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "logic_cuts_total",
			Help: "Overlaps that failed verification.",
		}),
		PartialLifts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "partial_lifts_total",
			Help: "Entities frozen below the target precision, by prime.",
		}, []string{"prime"}),
		Excluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "excluded_entities_total",
			Help: "Entities left out of the adelic merge, by reason.",
		}, []string{"reason"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "scan_duration_seconds",
			Help:    "Wall time of a full sheaf scan.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	reg.MustRegister(m.Runs, m.Windows, m.Unresolved, m.Sections, m.Cuts,
		m.PartialLifts, m.Excluded, m.ScanDuration)
	return m
}

// ObserveScan records one scan result.
func (m *Metrics) ObserveScan(res *sheaf.Result, elapsed time.Duration) {
	if m == nil || res == nil {
		return
	}
	m.Runs.Inc()
	m.Windows.Add(float64(res.Windows))
	m.Unresolved.Add(float64(len(res.Unresolved)))
	m.Sections.Add(float64(len(res.Sections)))
	m.Cuts.Add(float64(len(res.Cuts)))
	m.ScanDuration.Observe(elapsed.Seconds())

	for _, sec := range res.Sections {
		for _, ex := range sec.Excluded {
			m.Excluded.WithLabelValues(string(ex.Reason)).Inc()
		}
		for _, w := range sec.Windows {
			for p, frozen := range w.Partial {
				m.PartialLifts.WithLabelValues(strconv.FormatUint(p, 10)).Add(float64(len(frozen)))
			}
		}
	}
}
