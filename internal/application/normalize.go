package application

import (
	"strings"
	"time"

	"github.com/ericfisherdev/deploybar/internal/domain/model"
)

// vercelStatuses maps Vercel deployment states to unified statuses.
var vercelStatuses = map[string]model.DeploymentStatus{
	"INITIALIZING": model.StatusInitializing,
	"QUEUED":       model.StatusQueued,
	"BUILDING":     model.StatusBuilding,
	"READY":        model.StatusReady,
	"ERROR":        model.StatusError,
	"CANCELED":     model.StatusCanceled,
}

// railwayStatuses maps Railway deployment statuses to unified statuses.
var railwayStatuses = map[string]model.DeploymentStatus{
	"INITIALIZING": model.StatusInitializing,
	"QUEUED":       model.StatusQueued,
	"WAITING":      model.StatusQueued,
	"BUILDING":     model.StatusBuilding,
	"DEPLOYING":    model.StatusBuilding,
	"SUCCESS":      model.StatusReady,
	"SLEEPING":     model.StatusReady,
	"FAILED":       model.StatusError,
	"CRASHED":      model.StatusError,
	"REMOVED":      model.StatusCanceled,
	"REMOVING":     model.StatusCanceled,
	"SKIPPED":      model.StatusCanceled,
}

// Native states that mean a build is still running. These are checked on the
// provider's own vocabulary: Railway QUEUED/WAITING do not count.
var (
	vercelInProgress  = map[string]bool{"BUILDING": true, "QUEUED": true, "INITIALIZING": true}
	railwayInProgress = map[string]bool{"BUILDING": true, "DEPLOYING": true, "INITIALIZING": true}
)

const railwayDefaultName = "Railway deployment"

// canonicalState is the lookup key for every native status table.
func canonicalState(native string) string {
	return strings.ToUpper(strings.TrimSpace(native))
}

// VercelStatus maps a native Vercel state to a unified status. Unknown values
// map to StatusUnknown.
func VercelStatus(native string) model.DeploymentStatus {
	if s, ok := vercelStatuses[canonicalState(native)]; ok {
		return s
	}
	return model.StatusUnknown
}

// RailwayStatus maps a native Railway status to a unified status. Unknown
// values map to StatusUnknown.
func RailwayStatus(native string) model.DeploymentStatus {
	if s, ok := railwayStatuses[canonicalState(native)]; ok {
		return s
	}
	return model.StatusUnknown
}

// Normalize converts a provider record into the unified schema. It never
// fails: unknown statuses become UNKNOWN and unparsable timestamps are dropped.
func Normalize(native model.NativeDeployment, ac model.AccountContext) model.UnifiedDeployment {
	switch d := native.(type) {
	case model.VercelDeployment:
		return normalizeVercel(d, ac)
	case *model.VercelDeployment:
		return normalizeVercel(*d, ac)
	case model.RailwayDeployment:
		return normalizeRailway(d, ac)
	case *model.RailwayDeployment:
		return normalizeRailway(*d, ac)
	default:
		return model.UnifiedDeployment{
			AccountID: ac.AccountID,
			Provider:  ac.Provider,
			Status:    model.StatusUnknown,
			TeamSlug:  ac.TeamSlug,
		}
	}
}

// IsInProgress reports whether the native record is in a state that keeps
// the building indicator on.
func IsInProgress(native model.NativeDeployment) bool {
	switch d := native.(type) {
	case model.VercelDeployment:
		return vercelInProgress[canonicalState(d.NativeState())]
	case *model.VercelDeployment:
		return vercelInProgress[canonicalState(d.NativeState())]
	case model.RailwayDeployment:
		return railwayInProgress[canonicalState(d.Status)]
	case *model.RailwayDeployment:
		return railwayInProgress[canonicalState(d.Status)]
	default:
		return false
	}
}

func normalizeVercel(d model.VercelDeployment, ac model.AccountContext) model.UnifiedDeployment {
	return model.UnifiedDeployment{
		ID:              d.UID,
		AccountID:       ac.AccountID,
		Provider:        model.ProviderVercel,
		Name:            d.Name,
		URL:             withScheme(d.URL),
		Status:          VercelStatus(d.NativeState()),
		CreatedAtMillis: positiveMillis(d.CreatedAt),
		CommitMessage:   d.CommitMessage,
		Branch:          d.Branch,
		ProjectID:       d.ProjectID,
		GitAuthorLogin:  d.GitAuthorLogin,
		TeamSlug:        ac.TeamSlug,
	}
}

func normalizeRailway(d model.RailwayDeployment, ac model.AccountContext) model.UnifiedDeployment {
	name := d.ServiceName
	if name == "" {
		name = railwayDefaultName
	}
	return model.UnifiedDeployment{
		ID:              d.ID,
		AccountID:       ac.AccountID,
		Provider:        model.ProviderRailway,
		Name:            name,
		URL:             withScheme(d.StaticURL),
		Status:          RailwayStatus(d.Status),
		CreatedAtMillis: ParseTimestampMillis(d.CreatedAt),
		CommitMessage:   d.CommitMessage,
		Branch:          d.Branch,
		ProjectID:       d.ProjectID,
		ServiceID:       d.ServiceID,
		TeamSlug:        ac.TeamSlug,
	}
}

// ParseTimestampMillis parses RFC 3339 date-time text into epoch
// milliseconds. Empty or unparsable input yields nil.
func ParseTimestampMillis(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func positiveMillis(ms *int64) *int64 {
	if ms == nil || *ms <= 0 {
		return nil
	}
	v := *ms
	return &v
}

func withScheme(url string) string {
	if url == "" || strings.Contains(url, "://") {
		return url
	}
	return "https://" + url
}
