package application_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/deploybar/internal/application"
	"github.com/ericfisherdev/deploybar/internal/domain/model"
	"github.com/ericfisherdev/deploybar/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockBlobStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	getErr   error
	setErr   error
	getDelay time.Duration
	gets     atomic.Int32
	sets     atomic.Int32
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{data: make(map[string][]byte)}
}

func (m *mockBlobStore) Get(_ context.Context, service, key string) ([]byte, error) {
	m.gets.Add(1)
	if m.getDelay > 0 {
		time.Sleep(m.getDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.data[service+"/"+key]
	if !ok {
		return nil, driven.ErrBlobNotFound
	}
	return data, nil
}

func (m *mockBlobStore) Set(_ context.Context, service, key string, data []byte) error {
	m.sets.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[service+"/"+key] = append([]byte(nil), data...)
	return nil
}

func (m *mockBlobStore) seed(t *testing.T, snapshot model.Snapshot) {
	t.Helper()
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	m.seedRaw(data)
}

func (m *mockBlobStore) seedRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[application.SnapshotService+"/"+application.SnapshotKey] = data
}

func (m *mockBlobStore) stored(t *testing.T) model.Snapshot {
	t.Helper()
	m.mu.Lock()
	data, ok := m.data[application.SnapshotService+"/"+application.SnapshotKey]
	m.mu.Unlock()
	require.True(t, ok, "snapshot was never written")

	var snapshot model.Snapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))
	return snapshot
}

type mockVercelClient struct {
	fetchProfile   func(ctx context.Context, cred model.Credential) (model.Profile, error)
	fetchTokenInfo func(ctx context.Context, cred model.Credential) (model.TokenInfo, error)
	fetchTeam      func(ctx context.Context, cred model.Credential, teamID string) (model.Team, error)
	listDeploys    func(ctx context.Context, cred model.Credential, filter model.DeploymentFilter, limit int) ([]model.NativeDeployment, error)
	streamLogs     func(ctx context.Context, cred model.Credential, deploymentID string, follow bool, fn func(model.LogLine)) error
	listProjects   func(ctx context.Context, cred model.Credential) ([]model.Project, error)
	getDeployment  func(ctx context.Context, cred model.Credential, id string) (model.VercelDeployment, error)
	listCalls      atomic.Int32

	mu     sync.Mutex
	forgot []string
}

func (m *mockVercelClient) FetchProfile(ctx context.Context, cred model.Credential) (model.Profile, error) {
	if m.fetchProfile == nil {
		return model.Profile{}, nil
	}
	return m.fetchProfile(ctx, cred)
}

func (m *mockVercelClient) ListDeployments(ctx context.Context, cred model.Credential, filter model.DeploymentFilter, limit int) ([]model.NativeDeployment, error) {
	m.listCalls.Add(1)
	if m.listDeploys == nil {
		return nil, nil
	}
	return m.listDeploys(ctx, cred, filter, limit)
}

func (m *mockVercelClient) FetchTokenInfo(ctx context.Context, cred model.Credential) (model.TokenInfo, error) {
	if m.fetchTokenInfo == nil {
		return model.TokenInfo{}, nil
	}
	return m.fetchTokenInfo(ctx, cred)
}

func (m *mockVercelClient) FetchTeam(ctx context.Context, cred model.Credential, teamID string) (model.Team, error) {
	if m.fetchTeam == nil {
		return model.Team{}, nil
	}
	return m.fetchTeam(ctx, cred, teamID)
}

func (m *mockVercelClient) ListProjects(ctx context.Context, cred model.Credential) ([]model.Project, error) {
	if m.listProjects == nil {
		return nil, nil
	}
	return m.listProjects(ctx, cred)
}

func (m *mockVercelClient) GetDeployment(ctx context.Context, cred model.Credential, id string) (model.VercelDeployment, error) {
	if m.getDeployment == nil {
		return model.VercelDeployment{UID: id}, nil
	}
	return m.getDeployment(ctx, cred, id)
}

func (m *mockVercelClient) Forget(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgot = append(m.forgot, token)
}

func (m *mockVercelClient) forgotten() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.forgot...)
}

func (m *mockVercelClient) StreamLogs(ctx context.Context, cred model.Credential, deploymentID string, follow bool, fn func(model.LogLine)) error {
	if m.streamLogs == nil {
		return nil
	}
	return m.streamLogs(ctx, cred, deploymentID, follow, fn)
}

type mockRailwayClient struct {
	listProjects   func(ctx context.Context, cred model.Credential, limit int) ([]model.Project, error)
	listWorkspaces func(ctx context.Context, cred model.Credential) ([]model.Workspace, error)
	listDeploys    func(ctx context.Context, cred model.Credential, filter model.DeploymentFilter, limit int) ([]model.NativeDeployment, error)
	getDeployment  func(ctx context.Context, cred model.Credential, id string) (model.RailwayDeployment, error)
	listCalls      atomic.Int32
}

func (m *mockRailwayClient) FetchProfile(_ context.Context, _ model.Credential) (model.Profile, error) {
	return model.Profile{}, nil
}

func (m *mockRailwayClient) ListDeployments(ctx context.Context, cred model.Credential, filter model.DeploymentFilter, limit int) ([]model.NativeDeployment, error) {
	m.listCalls.Add(1)
	if m.listDeploys == nil {
		return nil, nil
	}
	return m.listDeploys(ctx, cred, filter, limit)
}

func (m *mockRailwayClient) ListProjects(ctx context.Context, cred model.Credential, limit int) ([]model.Project, error) {
	if m.listProjects == nil {
		return nil, nil
	}
	return m.listProjects(ctx, cred, limit)
}

func (m *mockRailwayClient) ListWorkspaces(ctx context.Context, cred model.Credential) ([]model.Workspace, error) {
	if m.listWorkspaces == nil {
		return nil, nil
	}
	return m.listWorkspaces(ctx, cred)
}

func (m *mockRailwayClient) GetDeployment(ctx context.Context, cred model.Credential, id string) (model.RailwayDeployment, error) {
	if m.getDeployment == nil {
		return model.RailwayDeployment{ID: id}, nil
	}
	return m.getDeployment(ctx, cred, id)
}

type emitted struct {
	Event   string
	Payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) Emit(event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{Event: event, Payload: payload})
}

func (e *recordingEmitter) named(event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

type recordingMetrics struct {
	mu             sync.Mutex
	ticks          map[string]int
	providerErrors int
	aggregations   int
	lastFailed     int
	building       bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{ticks: make(map[string]int)}
}

func (m *recordingMetrics) ObserveReconcileTick(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[outcome]++
}

func (m *recordingMetrics) ObserveProviderError(model.Provider, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providerErrors++
}

func (m *recordingMetrics) ObserveAggregation(_ int, failed int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregations++
	m.lastFailed = failed
}

func (m *recordingMetrics) SetBuilding(b bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.building = b
}

// --- Fixtures ---

func ptr[T any](v T) *T { return &v }

func vercelAccount(id string) model.StoredAccount {
	return model.StoredAccount{
		ID:        id,
		Username:  id + "-user",
		Email:     id + "@example.com",
		ScopeType: model.ScopeUser,
		Provider:  model.ProviderVercel,
		Token:     "tok-" + id,
	}
}

func railwayAccount(id string) model.StoredAccount {
	return model.StoredAccount{
		ID:        id,
		Username:  id,
		Email:     "workspace@railway.app",
		ScopeType: model.ScopeWorkspace,
		Provider:  model.ProviderRailway,
		Token:     "tok-" + id,
	}
}

// newSeededCache returns an initialized cache over a store seeded with accounts.
func newSeededCache(t *testing.T, active string, accounts ...model.StoredAccount) (*application.CredentialCache, *mockBlobStore) {
	t.Helper()
	store := newMockBlobStore()
	snapshot := model.Snapshot{Version: model.SnapshotVersion, Accounts: accounts}
	if active != "" {
		snapshot.ActiveAccountID = ptr(active)
	}
	store.seed(t, snapshot)

	cache := application.NewCredentialCache(store)
	require.NoError(t, cache.Initialize(context.Background()))
	return cache, store
}
