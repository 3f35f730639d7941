package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/deploybar/internal/application"
	"github.com/ericfisherdev/deploybar/internal/domain/model"
)

func TestVercelStatus(t *testing.T) {
	tests := []struct {
		native string
		want   model.DeploymentStatus
	}{
		{"INITIALIZING", model.StatusInitializing},
		{"QUEUED", model.StatusQueued},
		{"BUILDING", model.StatusBuilding},
		{"READY", model.StatusReady},
		{"ERROR", model.StatusError},
		{"CANCELED", model.StatusCanceled},
		{"ready", model.StatusReady},
		{"", model.StatusUnknown},
		{"DELETED", model.StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			assert.Equal(t, tt.want, application.VercelStatus(tt.native))
		})
	}
}

func TestRailwayStatus(t *testing.T) {
	tests := []struct {
		native string
		want   model.DeploymentStatus
	}{
		{"INITIALIZING", model.StatusInitializing},
		{"QUEUED", model.StatusQueued},
		{"WAITING", model.StatusQueued},
		{"BUILDING", model.StatusBuilding},
		{"DEPLOYING", model.StatusBuilding},
		{"SUCCESS", model.StatusReady},
		{"SLEEPING", model.StatusReady},
		{"FAILED", model.StatusError},
		{"CRASHED", model.StatusError},
		{"REMOVED", model.StatusCanceled},
		{"REMOVING", model.StatusCanceled},
		{"SKIPPED", model.StatusCanceled},
		{"deploying", model.StatusBuilding},
		{"NEEDS_APPROVAL", model.StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			assert.Equal(t, tt.want, application.RailwayStatus(tt.native))
		})
	}
}

func TestNormalize_Vercel(t *testing.T) {
	created := int64(1_700_000_000_000)
	native := model.VercelDeployment{
		UID:            "dpl_1",
		Name:           "web",
		URL:            "web-abc.vercel.app",
		ReadyState:     "BUILDING",
		CreatedAt:      &created,
		ProjectID:      "prj_1",
		CommitMessage:  "fix: header",
		Branch:         "main",
		GitAuthorLogin: "octo",
	}
	ac := model.AccountContext{AccountID: "u1", Provider: model.ProviderVercel, TeamSlug: "acme"}

	got := application.Normalize(native, ac)

	assert.Equal(t, "dpl_1", got.ID)
	assert.Equal(t, "u1", got.AccountID)
	assert.Equal(t, model.ProviderVercel, got.Provider)
	assert.Equal(t, "https://web-abc.vercel.app", got.URL)
	assert.Equal(t, model.StatusBuilding, got.Status)
	require.NotNil(t, got.CreatedAtMillis)
	assert.Equal(t, created, *got.CreatedAtMillis)
	assert.Equal(t, "acme", got.TeamSlug)
	assert.Equal(t, "octo", got.GitAuthorLogin)
}

func TestNormalize_VercelStatePreferredOverReadyState(t *testing.T) {
	native := model.VercelDeployment{UID: "d", State: "READY", ReadyState: "BUILDING"}
	got := application.Normalize(native, model.AccountContext{})
	assert.Equal(t, model.StatusReady, got.Status)
}

func TestNormalize_Railway(t *testing.T) {
	native := model.RailwayDeployment{
		ID:            "rw_1",
		StaticURL:     "api-production.up.railway.app",
		Status:        "SUCCESS",
		CreatedAt:     "2024-01-15T10:30:00.123Z",
		CommitMessage: "deploy",
		Branch:        "main",
		ProjectID:     "p1",
		ServiceID:     "s1",
		ServiceName:   "api",
	}
	ac := model.AccountContext{AccountID: "railway_ws_abcd1234", Provider: model.ProviderRailway}

	got := application.Normalize(native, ac)

	assert.Equal(t, "api", got.Name)
	assert.Equal(t, "https://api-production.up.railway.app", got.URL)
	assert.Equal(t, model.StatusReady, got.Status)
	require.NotNil(t, got.CreatedAtMillis)
	assert.Equal(t, int64(1705314600123), *got.CreatedAtMillis)
	assert.Equal(t, "s1", got.ServiceID)
	assert.Empty(t, got.TeamSlug)
}

func TestNormalize_RailwayDefaultsAndBadTimestamp(t *testing.T) {
	native := model.RailwayDeployment{ID: "rw_2", Status: "MYSTERY", CreatedAt: "yesterday"}

	got := application.Normalize(native, model.AccountContext{AccountID: "a"})

	assert.Equal(t, "Railway deployment", got.Name)
	assert.Equal(t, model.StatusUnknown, got.Status)
	assert.Nil(t, got.CreatedAtMillis)
	assert.Empty(t, got.URL)
}

func TestNormalize_KeepsExistingScheme(t *testing.T) {
	native := model.VercelDeployment{UID: "d", URL: "http://localhost:3000"}
	got := application.Normalize(native, model.AccountContext{})
	assert.Equal(t, "http://localhost:3000", got.URL)
}

func TestParseTimestampMillis(t *testing.T) {
	got := application.ParseTimestampMillis("2024-01-15T10:30:00Z")
	require.NotNil(t, got)
	assert.Equal(t, int64(1705314600000), *got)

	got = application.ParseTimestampMillis("2024-01-15T12:30:00+02:00")
	require.NotNil(t, got)
	assert.Equal(t, int64(1705314600000), *got)

	assert.Nil(t, application.ParseTimestampMillis(""))
	assert.Nil(t, application.ParseTimestampMillis("2024-01-15"))
}

func TestIsInProgress(t *testing.T) {
	tests := []struct {
		name   string
		native model.NativeDeployment
		want   bool
	}{
		{"vercel building", model.VercelDeployment{State: "BUILDING"}, true},
		{"vercel queued", model.VercelDeployment{State: "QUEUED"}, true},
		{"vercel initializing via readyState", model.VercelDeployment{ReadyState: "INITIALIZING"}, true},
		{"vercel ready", model.VercelDeployment{State: "READY"}, false},
		{"railway deploying", model.RailwayDeployment{Status: "DEPLOYING"}, true},
		{"railway building", model.RailwayDeployment{Status: "BUILDING"}, true},
		{"railway initializing", model.RailwayDeployment{Status: "INITIALIZING"}, true},
		{"railway queued is not in progress", model.RailwayDeployment{Status: "QUEUED"}, false},
		{"railway waiting is not in progress", model.RailwayDeployment{Status: "WAITING"}, false},
		{"railway success", model.RailwayDeployment{Status: "SUCCESS"}, false},
		{"vercel padded lowercase building", model.VercelDeployment{State: " building\n"}, true},
		{"railway padded deploying", model.RailwayDeployment{Status: "  Deploying "}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, application.IsInProgress(tt.native))
		})
	}
}
