// Package telemetry exports application measurements to Prometheus.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Metrics = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements driven.Metrics.
type PrometheusMetrics struct {
	reconcileTicks      *prometheus.CounterVec
	providerErrors      *prometheus.CounterVec
	aggregationDuration prometheus.Histogram
	aggregationAccounts prometheus.Gauge
	aggregationFailed   prometheus.Gauge
	building            prometheus.Gauge
}

// NewPrometheusMetrics registers the collectors on registerer, or on the
// default registerer when nil.
func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		reconcileTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deploybar_reconcile_ticks_total",
				Help: "Reconciler ticks by outcome",
			},
			[]string{"outcome"},
		),
		providerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deploybar_provider_errors_total",
				Help: "Failed provider calls by provider and operation",
			},
			[]string{"provider", "operation"},
		),
		aggregationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deploybar_aggregation_duration_seconds",
				Help:    "Duration of cross-account deployment aggregation",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
			},
		),
		aggregationAccounts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "deploybar_aggregation_accounts",
				Help: "Accounts queried by the last aggregation",
			},
		),
		aggregationFailed: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "deploybar_aggregation_failed_accounts",
				Help: "Accounts that failed in the last aggregation",
			},
		),
		building: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "deploybar_building",
				Help: "1 while the tray shows a deployment in progress",
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveReconcileTick(outcome string) {
	p.reconcileTicks.WithLabelValues(outcome).Inc()
}

func (p *PrometheusMetrics) ObserveProviderError(provider model.Provider, operation string) {
	p.providerErrors.WithLabelValues(string(provider), operation).Inc()
}

func (p *PrometheusMetrics) ObserveAggregation(accounts int, failed int, duration time.Duration) {
	p.aggregationAccounts.Set(float64(accounts))
	p.aggregationFailed.Set(float64(failed))
	p.aggregationDuration.Observe(duration.Seconds())
}

func (p *PrometheusMetrics) SetBuilding(building bool) {
	if building {
		p.building.Set(1)
		return
	}
	p.building.Set(0)
}
