// Package metrics exposes Prometheus collectors for the atom managers and the
// term generators. A nil *Recorder is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "psl"

// Recorder holds the collectors registered for one process.
type Recorder struct {
	snapshotAtoms  prometheus.Gauge
	accessDenied   prometheus.Counter
	termsGenerated *prometheus.CounterVec
	weightUpdates  prometheus.Counter
	staleTerms     prometheus.Counter
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer, namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Recorder{
		snapshotAtoms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_atoms",
			Help:      "Random-variable atoms in the most recent persisted snapshot",
		}),
		accessDenied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "atom_access_denied_total",
			Help:      "Lookups of random-variable atoms outside the persisted snapshot",
		}),
		termsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terms_generated_total",
			Help:      "Optimization terms appended to term stores",
		}, []string{"kind"}),
		weightUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_updates_total",
			Help:      "Term weight coefficients rewritten by weight update passes",
		}),
		staleTerms: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_term_references_total",
			Help:      "Weight update passes aborted by a term whose ground rule is gone",
		}),
	}
}

func (r *Recorder) SetSnapshotSize(n int) {
	if r == nil {
		return
	}
	r.snapshotAtoms.Set(float64(n))
}

func (r *Recorder) AccessDenied() {
	if r == nil {
		return
	}
	r.accessDenied.Inc()
}

func (r *Recorder) TermsGenerated(kind string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.termsGenerated.WithLabelValues(kind).Add(float64(n))
}

func (r *Recorder) WeightsUpdated(n int) {
	if r == nil || n == 0 {
		return
	}
	r.weightUpdates.Add(float64(n))
}

func (r *Recorder) StaleTermReference() {
	if r == nil {
		return
	}
	r.staleTerms.Inc()
}
