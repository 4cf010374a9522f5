// Package metrics exposes Prometheus instrumentation for snapshot cycles.
//
// snapcycle is a short-lived process (typically run from cron), so instead
// of serving /metrics the collected values are pushed to a Pushgateway at
// the end of a run when one is configured.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "snapcycle"
	jobName   = "snapcycle"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the collectors for a single process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	actionsTotal     *prometheus.CounterVec
	actionDuration   *prometheus.HistogramVec
	pollsTotal       *prometheus.CounterVec
	snapshotsDeleted *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec
	lastRun          *prometheus.GaugeVec
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of droplet actions by type and outcome",
			},
			[]string{"provider", "action", "outcome"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Wall-clock time from action submission to resolution",
				Buckets:   []float64{10, 20, 30, 60, 120, 180, 300, 450, 600},
			},
			[]string{"provider", "action"},
		),
		pollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_polls_total",
				Help:      "Total number of operation status queries",
			},
			[]string{"provider"},
		),
		snapshotsDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_deleted_total",
				Help:      "Total number of expired snapshots deleted",
			},
			[]string{"provider"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of lifecycle runs by outcome",
			},
			[]string{"provider", "outcome"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last finished lifecycle run",
			},
			[]string{"provider", "outcome"},
		),
	}

	m.registry.MustRegister(
		m.actionsTotal,
		m.actionDuration,
		m.pollsTotal,
		m.snapshotsDeleted,
		m.runsTotal,
		m.lastRun,
	)

	return m
}

// Registry returns the underlying registry, or nil for a nil Metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordAction records the outcome and duration of one action.
func (m *Metrics) RecordAction(provider, action string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(provider, action, outcome(success)).Inc()
	m.actionDuration.WithLabelValues(provider, action).Observe(duration.Seconds())
}

// RecordPoll counts one operation status query.
func (m *Metrics) RecordPoll(provider string) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(provider).Inc()
}

// RecordSnapshotDeleted counts one deleted snapshot.
func (m *Metrics) RecordSnapshotDeleted(provider string) {
	if m == nil {
		return
	}
	m.snapshotsDeleted.WithLabelValues(provider).Inc()
}

// RecordRun records the outcome of a whole lifecycle run.
func (m *Metrics) RecordRun(provider string, success bool, finishedAt time.Time) {
	if m == nil {
		return
	}
	o := outcome(success)
	m.runsTotal.WithLabelValues(provider, o).Inc()
	m.lastRun.WithLabelValues(provider, o).Set(float64(finishedAt.Unix()))
}

// Push sends every collected metric to the Pushgateway at url, grouped by
// the droplet name. It is a no-op when url is empty.
func (m *Metrics) Push(ctx context.Context, url, droplet string) error {
	if m == nil || url == "" {
		return nil
	}

	pusher := push.New(url, jobName).Gatherer(m.registry)
	if droplet != "" {
		pusher = pusher.Grouping("droplet", droplet)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s failed: %w", url, err)
	}
	return nil
}

func outcome(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeError
}
