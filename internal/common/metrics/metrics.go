package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	OutcomeLabel = "outcome"
	ResultLabel  = "result"
)

// RunMetrics holds the counters for a single process run. A short-lived CLI
// cannot be scraped, so the registry is pushed to a Pushgateway on exit.
type RunMetrics struct {
	registry *prometheus.Registry

	RunsTotal         *prometheus.CounterVec
	IssueLookupsTotal *prometheus.CounterVec
	SubmitDuration    prometheus.Histogram
	DescriptionLength prometheus.Gauge
	RiskFactors       prometheus.Gauge
}

func NewRunMetrics() *RunMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &RunMetrics{
		registry: registry,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "change_creator_runs_total",
				Help: "Total number of runs by outcome",
			},
			[]string{OutcomeLabel},
		),
		IssueLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "change_creator_issue_lookups_total",
				Help: "Issue tracker lookups by result",
			},
			[]string{ResultLabel},
		),
		SubmitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "change_creator_submit_duration_seconds",
				Help:    "Duration of the change ticket submission",
				Buckets: prometheus.DefBuckets,
			},
		),
		DescriptionLength: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "change_creator_description_length_chars",
				Help: "Length of the submitted change description",
			},
		),
		RiskFactors: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "change_creator_risk_factors",
				Help: "Number of risk factors identified for the change",
			},
		),
	}
}

// Registry is shared with the OpenTelemetry exporter.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// The Record and Observe methods are no-ops on a nil receiver.
func (m *RunMetrics) RecordRun(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

func (m *RunMetrics) RecordIssueLookup(result string) {
	if m == nil {
		return
	}
	m.IssueLookupsTotal.WithLabelValues(result).Inc()
}

func (m *RunMetrics) ObserveSubmit(d time.Duration) {
	if m == nil {
		return
	}
	m.SubmitDuration.Observe(d.Seconds())
}

func (m *RunMetrics) ObserveChange(descriptionLength, riskFactors int) {
	if m == nil {
		return
	}
	m.DescriptionLength.Set(float64(descriptionLength))
	m.RiskFactors.Set(float64(riskFactors))
}

// Push sends the registry to the Pushgateway under job, grouped by instance.
// An empty url is a no-op.
func (m *RunMetrics) Push(ctx context.Context, url, job, instance string) error {
	if m == nil || url == "" {
		return nil
	}
	pusher := push.New(url, job).Gatherer(m.registry)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	return pusher.PushContext(ctx)
}
