package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// Tray titles and tooltips shown by the UI shell.
const (
	TrayTitleBuilding   = "Deploying..."
	TrayTooltipBuilding = "Deploying"
	TrayTooltipNormal   = "Deployments"
)

// Notification is the payload of a deployment-notification event.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// TrayService owns the indicator state and publishes its changes.
type TrayService struct {
	flag    *BuildingFlag
	emitter driven.Emitter
	metrics driven.Metrics

	mu    sync.RWMutex
	state model.TrayState
}

// NewTrayService creates a TrayService in the normal state.
func NewTrayService(flag *BuildingFlag, emitter driven.Emitter, metrics driven.Metrics) *TrayService {
	if emitter == nil {
		emitter = driven.NopEmitter{}
	}
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &TrayService{
		flag:    flag,
		emitter: emitter,
		metrics: metrics,
		state:   normalTrayState(),
	}
}

// SetBuilding switches the indicator. Passing true raises the building flag
// so the reconciler starts polling; passing false only changes what is shown,
// the flag itself is lowered by the reconciler.
func (s *TrayService) SetBuilding(_ context.Context, building bool, project string) {
	if building {
		tooltip := TrayTooltipBuilding
		if project != "" {
			tooltip += " " + project
		}
		s.metrics.SetBuilding(true)
		s.publish(model.TrayState{
			Building: true,
			Title:    TrayTitleBuilding,
			Tooltip:  tooltip,
			Project:  project,
		})
		// Raised after publishing so the reconciler's normal state always
		// lands after this one.
		s.flag.Set()
		slog.Info("tray set to building", "project", project)
		return
	}
	s.publish(normalTrayState())
}

// Notify forwards a user-facing notification to the UI shell.
func (s *TrayService) Notify(title, body string) {
	s.emitter.Emit(driven.EventDeploymentNotification, Notification{Title: title, Body: body})
}

// State returns the current indicator state.
func (s *TrayService) State() model.TrayState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// buildsFinished is called by the reconciler after it lowered the flag.
func (s *TrayService) buildsFinished() {
	s.metrics.SetBuilding(false)
	s.publish(normalTrayState())
}

func (s *TrayService) publish(state model.TrayState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.emitter.Emit(driven.EventTrayStateChanged, state)
}

func normalTrayState() model.TrayState {
	return model.TrayState{Tooltip: TrayTooltipNormal}
}
