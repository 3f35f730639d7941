package driven

// UI event names emitted through Emitter.
const (
	EventDeploymentLog          = "deployment-log"
	EventDeploymentLogError     = "deployment-log-error"
	EventDeploymentLogComplete  = "deployment-log-complete"
	EventTrayStateChanged       = "tray-state-changed"
	EventDeploymentsError       = "deployments-error"
	EventDeploymentNotification = "deployment-notification"
)

// Emitter delivers named events to the UI layer. Implementations must not
// block the caller for long; slow consumers may drop events.
type Emitter interface {
	Emit(event string, payload any)
}

// NopEmitter discards all events.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(string, any) {}
