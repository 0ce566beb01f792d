// Package metrics exposes conversation metrics to Prometheus through the
// engine lifecycle hooks.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

const namespace = "pizzabot"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	Transitions  *prometheus.CounterVec
	Outcomes     *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
}

// New creates the collectors on a private registry, together with the
// process and Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Persisted state transitions.",
			},
			[]string{"from", "to"},
		),
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outcomes_total",
				Help:      "Handled events by outcome kind.",
			},
			[]string{"kind"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Time spent handling one event, collaborator calls included.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"state"},
		),
	}
	m.registry.MustRegister(
		m.Transitions,
		m.Outcomes,
		m.StepDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks records every outcome reported by the engine.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	observe := func(_ context.Context, e *domain.TransitionEvent) {
		m.Outcomes.WithLabelValues(string(e.Kind)).Inc()
		m.StepDuration.WithLabelValues(string(e.From)).Observe(e.Duration.Seconds())
	}
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			observe(ctx, e)
			m.Transitions.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
		OnRetry: observe,
		OnFatal: observe,
	}
}
