package driven

import (
	"time"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
)

// Reconcile tick outcomes reported to Metrics.
const (
	ReconcileOutcomeIdle     = "idle"
	ReconcileOutcomeBuilding = "building"
	ReconcileOutcomeCleared  = "cleared"
)

// Metrics receives operational measurements from the application services.
type Metrics interface {
	ObserveReconcileTick(outcome string)
	ObserveProviderError(provider model.Provider, operation string)
	ObserveAggregation(accounts int, failed int, duration time.Duration)
	SetBuilding(building bool)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) ObserveReconcileTick(string) {}
func (NopMetrics) ObserveProviderError(model.Provider, string) {}
func (NopMetrics) ObserveAggregation(int, int, time.Duration) {}
func (NopMetrics) SetBuilding(bool) {}
