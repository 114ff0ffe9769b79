// Package metrics exports Prometheus metrics about spawned units and task handles.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/casualjim/taskrt"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "taskrt"

var _ taskrt.Observer = (*Metrics)(nil)

// Metrics counts spawns and handle transitions, tracks running units and
// times them. Attach it with Options.
type Metrics struct {
	spawned     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	running     *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg means
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		spawned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_spawned_total",
				Help:      "Units accepted by an executor",
			},
			[]string{"executor", "kind"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_transitions_total",
				Help:      "Terminal task states by executor and kind",
			},
			[]string{"executor", "kind", "state"},
		),
		running: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "units_running",
				Help:      "Units currently executing",
			},
			[]string{"executor"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_duration_seconds",
				Help:      "Time spent running a unit, by how it stopped",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"executor", "kind", "outcome"},
		),
	}

	for _, c := range []prometheus.Collector{m.spawned, m.transitions, m.running, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Options attaches the middleware and the observer to an executor.
func (m *Metrics) Options() []taskrt.Option {
	return []taskrt.Option{taskrt.Use(m.Middleware()), taskrt.Observe(m)}
}

func (m *Metrics) OnSpawn(info taskrt.Info) {
	m.spawned.WithLabelValues(info.Executor, info.Kind.String()).Inc()
}

func (m *Metrics) OnTransition(info taskrt.Info, state taskrt.State, err error) {
	label := state.String()
	if err != nil {
		label = "failed"
	}
	m.transitions.WithLabelValues(info.Executor, info.Kind.String(), label).Inc()
}

// Middleware times each unit. The outcome label is one of ok, error,
// aborted or panic.
func (m *Metrics) Middleware() taskrt.Middleware {
	return func(info taskrt.Info, next taskrt.Future) taskrt.Future {
		return func(ctx context.Context) (v any, err error) {
			running := m.running.WithLabelValues(info.Executor)
			running.Inc()
			start := time.Now()

			outcome := "panic"
			defer func() {
				running.Dec()
				m.duration.WithLabelValues(info.Executor, info.Kind.String(), outcome).Observe(time.Since(start).Seconds())
			}()

			v, err = next(ctx)
			outcome = classify(ctx, err)
			return v, err
		}
	}
}

func classify(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "ok"
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return "aborted"
	default:
		return "error"
	}
}
