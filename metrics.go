package actionkit

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation results recorded by Metrics.
const (
	ResultResolved   = "resolved"
	ResultUnresolved = "unresolved"
	ResultOK         = "ok"
	ResultError      = "error"
)

// Resolution miss kinds recorded by Metrics.
const (
	MissNoEvaluator = "no_evaluator"
	MissNoRole      = "no_role"
	MissNoAuthority = "no_authority"
)

// Metrics holds the Prometheus collectors of the engine. A nil *Metrics
// records nothing.
type Metrics struct {
	Evaluations       *prometheus.CounterVec
	ResolutionMisses  *prometheus.CounterVec
	FilteredActions   prometheus.Histogram
	DefinitionReloads *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, or with the
// default registerer when reg is nil. Collectors already registered under the
// same name are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionkit",
			Name:      "evaluations_total",
			Help:      "Number of role evaluations by resolving evaluator and result.",
		}, []string{"evaluator", "result"}),
		ResolutionMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionkit",
			Name:      "resolution_misses_total",
			Help:      "Number of evaluations that resolved no role, by cause.",
		}, []string{"kind"}),
		FilteredActions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "actionkit",
			Name:      "filtered_actions",
			Help:      "Number of actions surviving state filtering.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		DefinitionReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionkit",
			Name:      "definition_reloads_total",
			Help:      "Number of definition registry reloads by result.",
		}, []string{"result"}),
	}

	if err := register(reg, &m.Evaluations); err != nil {
		return nil, err
	}
	if err := register(reg, &m.ResolutionMisses); err != nil {
		return nil, err
	}
	if err := register(reg, &m.FilteredActions); err != nil {
		return nil, err
	}
	if err := register(reg, &m.DefinitionReloads); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers *c, replacing it with the existing collector when one is
// already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return err
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return fmt.Errorf("actionkit metrics: unexpected collector type %T", already.ExistingCollector)
	}
	*c = existing
	return nil
}

// ObserveEvaluation counts an evaluation.
func (m *Metrics) ObserveEvaluation(evaluator, result string) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(evaluator, result).Inc()
}

// ObserveMiss counts a resolution miss.
func (m *Metrics) ObserveMiss(kind string) {
	if m == nil {
		return
	}
	m.ResolutionMisses.WithLabelValues(kind).Inc()
}

// ObserveFiltered records the size of a filtered action set.
func (m *Metrics) ObserveFiltered(n int) {
	if m == nil {
		return
	}
	m.FilteredActions.Observe(float64(n))
}

// ObserveReload counts a definitions reload.
func (m *Metrics) ObserveReload(result string) {
	if m == nil {
		return
	}
	m.DefinitionReloads.WithLabelValues(result).Inc()
}
