package simulator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
)

// Metrics holds the Prometheus collectors of the simulation loop.
// A nil *Metrics records nothing.
type Metrics struct {
	steps      prometheus.Counter
	actions    *prometheus.CounterVec
	ruleErrors *prometheus.CounterVec
	warnings   *prometheus.CounterVec
	state      *prometheus.GaugeVec
}

// NewMetrics registers the simulator collectors on reg. A nil reg yields nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "water",
			Subsystem: "simulator",
			Name:      "steps_total",
			Help:      "Simulation steps completed",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "water",
			Subsystem: "simulator",
			Name:      "actions_total",
			Help:      "Actions logged, by action type",
		}, []string{"action"}),
		ruleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "water",
			Subsystem: "simulator",
			Name:      "rule_errors_total",
			Help:      "Rule conditions that failed to compile or evaluate",
		}, []string{"rule"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "water",
			Subsystem: "simulator",
			Name:      "unmapped_actions_total",
			Help:      "Selected actions without an effect",
		}, []string{"action"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "water",
			Subsystem: "simulator",
			Name:      "state",
			Help:      "Current value of each measurement field",
		}, []string{"field"}),
	}
	reg.MustRegister(m.steps, m.actions, m.ruleErrors, m.warnings, m.state)
	return m
}

func (m *Metrics) stepDone() {
	if m == nil {
		return
	}
	m.steps.Inc()
}

func (m *Metrics) action(typ string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(typ).Inc()
}

func (m *Metrics) ruleError(rule string) {
	if m == nil {
		return
	}
	m.ruleErrors.WithLabelValues(rule).Inc()
}

func (m *Metrics) unmapped(typ string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(typ).Inc()
}

func (m *Metrics) observe(s entities.Measurement) {
	if m == nil {
		return
	}
	for _, f := range entities.Fields() {
		v, _ := s.Value(f)
		m.state.WithLabelValues(f).Set(v)
	}
}
