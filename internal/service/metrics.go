package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts lifecycle transitions and compensations. A nil *Metrics records nothing.
type Metrics struct {
	transitions   *prometheus.CounterVec
	compensations *prometheus.CounterVec
}

// NewMetrics registers the lifecycle counters with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "file_transitions_total",
				Help: "Lifecycle transitions by operation and result.",
			},
			[]string{"op", "result"},
		),
		compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "file_compensations_total",
				Help: "Compensating blob actions after failed metadata writes.",
			},
			[]string{"op", "outcome"},
		),
	}
	if err := reg.Register(m.transitions); err != nil {
		return nil, err
	}
	if err := reg.Register(m.compensations); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		var se *Error
		if errors.As(err, &se) {
			result = string(se.Kind)
		}
	}
	m.transitions.WithLabelValues(op, result).Inc()
}

func (m *Metrics) compensated(op string, c Compensation) {
	if m == nil {
		return
	}
	outcome := "impossible"
	if c.Attempted {
		outcome = "failed"
		if c.Succeeded {
			outcome = "succeeded"
		}
	}
	m.compensations.WithLabelValues(op, outcome).Inc()
}
