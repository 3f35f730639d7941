package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/deploybar/internal/application"
	"github.com/ericfisherdev/deploybar/internal/domain/model"
)

func vercelWithProfile(id string) *mockVercelClient {
	return &mockVercelClient{
		fetchProfile: func(_ context.Context, cred model.Credential) (model.Profile, error) {
			if cred.Token == "bad" {
				return model.Profile{}, fmt.Errorf("GET /v2/user: %w", model.ErrProviderRejected)
			}
			return model.Profile{ID: id, Username: "alice", Email: "alice@example.com", Name: "Alice"}, nil
		},
	}
}

func TestAccountService_AddVercelAccountUserScope(t *testing.T) {
	cache, store := newSeededCache(t, "")
	svc := application.NewAccountService(cache, application.NewClientRegistry(vercelWithProfile("u1"), nil))

	acct, err := svc.AddVercelAccount(context.Background(), "good")
	require.NoError(t, err)

	assert.Equal(t, "u1", acct.ID)
	assert.Equal(t, model.ScopeUser, acct.ScopeKind)
	assert.Equal(t, model.ProviderVercel, acct.Provider)
	assert.Empty(t, acct.Token)

	snapshot := store.stored(t)
	require.Len(t, snapshot.Accounts, 1)
	assert.Equal(t, "good", snapshot.Accounts[0].Token)
}

func TestAccountService_AddVercelAccountTeamScope(t *testing.T) {
	cache, _ := newSeededCache(t, "")
	client := vercelWithProfile("u1")
	client.fetchTokenInfo = func(context.Context, model.Credential) (model.TokenInfo, error) {
		return model.TokenInfo{ID: "tok", TeamID: "team_1"}, nil
	}
	client.fetchTeam = func(_ context.Context, _ model.Credential, teamID string) (model.Team, error) {
		assert.Equal(t, "team_1", teamID)
		return model.Team{ID: teamID, Name: "Acme", Slug: "acme"}, nil
	}
	svc := application.NewAccountService(cache, application.NewClientRegistry(client, nil))

	acct, err := svc.AddVercelAccount(context.Background(), "good")
	require.NoError(t, err)

	assert.Equal(t, model.ScopeTeam, acct.ScopeKind)
	assert.Equal(t, "Acme", acct.TeamName)
	assert.Equal(t, "acme", acct.TeamSlug)
}

func TestAccountService_AddVercelAccountTokenInfoFailureDegrades(t *testing.T) {
	cache, _ := newSeededCache(t, "")
	client := vercelWithProfile("u1")
	client.fetchTokenInfo = func(context.Context, model.Credential) (model.TokenInfo, error) {
		return model.TokenInfo{}, model.ErrProviderUnreachable
	}
	svc := application.NewAccountService(cache, application.NewClientRegistry(client, nil))

	acct, err := svc.AddVercelAccount(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, model.ScopeUser, acct.ScopeKind)
}

func TestAccountService_AddVercelAccountRejected(t *testing.T) {
	cache, store := newSeededCache(t, "")
	svc := application.NewAccountService(cache, application.NewClientRegistry(vercelWithProfile("u1"), nil))

	_, err := svc.AddVercelAccount(context.Background(), "bad")
	require.ErrorIs(t, err, model.ErrProviderRejected)
	assert.Empty(t, cache.ListAccounts())
	assert.Equal(t, int32(0), store.sets.Load())
}

func TestAccountService_AddRailwayWorkspaceAccount(t *testing.T) {
	cache, _ := newSeededCache(t, "")
	railway := &mockRailwayClient{
		listProjects: func(_ context.Context, cred model.Credential, limit int) ([]model.Project, error) {
			assert.Equal(t, model.ScopeWorkspace, cred.Scope)
			assert.Equal(t, 1, limit)
			return []model.Project{{ID: "p1", Name: "shop"}}, nil
		},
		listWorkspaces: func(context.Context, model.Credential) ([]model.Workspace, error) {
			return []model.Workspace{{ID: "w1", Name: "Acme Workspace"}}, nil
		},
	}
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, railway))

	acct, err := svc.AddRailwayAccount(context.Background(), "railway-token", application.RailwayTokenWorkspace)
	require.NoError(t, err)

	// md5("railway-token") begins with these 8 hex characters.
	assert.Regexp(t, `^railway_ws_[0-9a-f]{8}$`, acct.ID)
	assert.Equal(t, "workspace@railway.app", acct.Email)
	assert.Equal(t, "Acme Workspace", acct.Name)
	assert.Equal(t, "Acme Workspace", acct.TeamName)
	assert.Equal(t, model.ScopeWorkspace, acct.ScopeKind)
	assert.Equal(t, model.ProviderRailway, acct.Provider)

	again, err := svc.AddRailwayAccount(context.Background(), "railway-token", application.RailwayTokenWorkspace)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, again.ID, "the same token maps to the same account")
	assert.Len(t, cache.ListAccounts(), 1)
}

func TestAccountService_AddRailwayProjectAccount(t *testing.T) {
	cache, _ := newSeededCache(t, "")
	railway := &mockRailwayClient{
		listProjects: func(_ context.Context, cred model.Credential, _ int) ([]model.Project, error) {
			assert.Equal(t, model.ScopeProject, cred.Scope)
			return []model.Project{{ID: "p1", Name: "shop"}}, nil
		},
	}
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, railway))

	acct, err := svc.AddRailwayAccount(context.Background(), "proj-token", application.RailwayTokenProject)
	require.NoError(t, err)

	assert.Regexp(t, `^railway_proj_[0-9a-f]{8}$`, acct.ID)
	assert.Equal(t, "project@railway.app", acct.Email)
	assert.Equal(t, "shop", acct.Name)
	assert.Equal(t, model.ScopeProject, acct.ScopeKind)
}

func TestAccountService_AddRailwayAccountRejected(t *testing.T) {
	cache, _ := newSeededCache(t, "")
	railway := &mockRailwayClient{
		listProjects: func(context.Context, model.Credential, int) ([]model.Project, error) {
			return nil, model.ErrProviderRejected
		},
	}
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, railway))

	_, err := svc.AddRailwayAccount(context.Background(), "x", application.RailwayTokenWorkspace)
	require.ErrorIs(t, err, model.ErrProviderRejected)
}

func TestAccountService_SetActiveUnknownIsNotFound(t *testing.T) {
	cache, _ := newSeededCache(t, "", vercelAccount("a"))
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, nil))

	err := svc.SetActive(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, svc.SetActive(context.Background(), "a"))
	active, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", active)
}

func TestAccountService_RemoveAccountClearsActivePointer(t *testing.T) {
	cache, store := newSeededCache(t, "a", vercelAccount("a"), vercelAccount("b"))
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, nil))

	require.NoError(t, svc.RemoveAccount(context.Background(), "a"))

	_, ok := cache.GetActive()
	assert.False(t, ok)
	snapshot := store.stored(t)
	assert.Nil(t, snapshot.ActiveAccountID)
	require.Len(t, snapshot.Accounts, 1)
	assert.Equal(t, "b", snapshot.Accounts[0].ID)

	require.NoError(t, svc.RemoveAccount(context.Background(), "missing"))
}

func TestAccountService_RemoveAccountForgetsClientToken(t *testing.T) {
	cache, _ := newSeededCache(t, "a", vercelAccount("a"), railwayAccount("r"))
	vercel := &mockVercelClient{}
	svc := application.NewAccountService(cache, application.NewClientRegistry(vercel, &mockRailwayClient{}))

	require.NoError(t, svc.RemoveAccount(context.Background(), "a"))
	require.NoError(t, svc.RemoveAccount(context.Background(), "r"))
	require.NoError(t, svc.RemoveAccount(context.Background(), "missing"))

	assert.Equal(t, []string{"tok-a"}, vercel.forgotten())
}

func TestAccountService_AddAccountDispatchesByProvider(t *testing.T) {
	t.Run("vercel", func(t *testing.T) {
		cache, _ := newSeededCache(t, "")
		svc := application.NewAccountService(cache, application.NewClientRegistry(vercelWithProfile("user_1"), nil))

		acct, err := svc.AddAccount(context.Background(), model.ProviderVercel, "tok", "")
		require.NoError(t, err)
		assert.Equal(t, "user_1", acct.ID)
	})

	t.Run("railway defaults to workspace token", func(t *testing.T) {
		cache, _ := newSeededCache(t, "")
		svc := application.NewAccountService(cache, application.NewClientRegistry(nil, &mockRailwayClient{}))

		acct, err := svc.AddAccount(context.Background(), model.ProviderRailway, "tok", "")
		require.NoError(t, err)
		assert.Equal(t, model.ScopeWorkspace, acct.ScopeKind)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cache, _ := newSeededCache(t, "")
		svc := application.NewAccountService(cache, application.NewClientRegistry(&mockVercelClient{}, &mockRailwayClient{}))

		_, err := svc.AddAccount(context.Background(), model.Provider("heroku"), "tok", "")
		require.ErrorIs(t, err, model.ErrUnsupportedProvider)
	})

	t.Run("bad railway token type", func(t *testing.T) {
		cache, _ := newSeededCache(t, "")
		svc := application.NewAccountService(cache, application.NewClientRegistry(nil, &mockRailwayClient{}))

		_, err := svc.AddAccount(context.Background(), model.ProviderRailway, "tok", "team")
		require.ErrorIs(t, err, model.ErrInvalidInput)
		assert.Empty(t, cache.ListAccounts())
	})
}

func TestAccountService_RemoveOtherAccountKeepsActivePointer(t *testing.T) {
	cache, _ := newSeededCache(t, "a", vercelAccount("a"), vercelAccount("b"))
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, nil))

	require.NoError(t, svc.RemoveAccount(context.Background(), "b"))

	active, ok := cache.GetActive()
	assert.True(t, ok)
	assert.Equal(t, "a", active)
}

func TestAccountService_RenameAccountPersists(t *testing.T) {
	cache, store := newSeededCache(t, "", vercelAccount("a"))
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, nil))

	require.NoError(t, svc.RenameAccount(context.Background(), "a", "Work"))

	snapshot := store.stored(t)
	require.Len(t, snapshot.Accounts, 1)
	require.NotNil(t, snapshot.Accounts[0].Name)
	assert.Equal(t, "Work", *snapshot.Accounts[0].Name)
	assert.Equal(t, "Work", snapshot.Accounts[0].Username)
}

func TestAccountService_SaveTokenMakesAccountActive(t *testing.T) {
	cache, _ := newSeededCache(t, "")
	svc := application.NewAccountService(cache, application.NewClientRegistry(vercelWithProfile("u9"), nil))

	acct, err := svc.SaveToken(context.Background(), "good")
	require.NoError(t, err)

	current, ok, err := svc.CurrentAccount(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, acct.ID, current.ID)

	token, err := svc.ActiveToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "good", token)
}

func TestAccountService_ActiveTokenUnauthenticated(t *testing.T) {
	cache, _ := newSeededCache(t, "")
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, nil))

	_, err := svc.ActiveToken(context.Background())
	require.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestAccountService_GetAccountToken(t *testing.T) {
	cache, _ := newSeededCache(t, "", vercelAccount("a"))
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, nil))

	token, err := svc.GetAccountToken(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "tok-a", token)

	_, err = svc.GetAccountToken(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestAccountService_ValidateStored(t *testing.T) {
	t.Run("valid token returns profile", func(t *testing.T) {
		cache, _ := newSeededCache(t, "a", vercelAccount("a"))
		svc := application.NewAccountService(cache, application.NewClientRegistry(vercelWithProfile("a"), nil))

		profile, err := svc.ValidateStored(context.Background())
		require.NoError(t, err)
		require.NotNil(t, profile)
		assert.Equal(t, "alice", profile.Username)
	})

	t.Run("rejected token removes account", func(t *testing.T) {
		stored := vercelAccount("a")
		stored.Token = "bad"
		cache, _ := newSeededCache(t, "a", stored)
		vercel := vercelWithProfile("a")
		svc := application.NewAccountService(cache, application.NewClientRegistry(vercel, nil))

		profile, err := svc.ValidateStored(context.Background())
		require.NoError(t, err)
		assert.Nil(t, profile)
		assert.Empty(t, cache.ListAccounts())
		assert.Equal(t, []string{"bad"}, vercel.forgotten())
		_, ok := cache.GetActive()
		assert.False(t, ok)
	})

	t.Run("unreachable provider keeps account", func(t *testing.T) {
		cache, _ := newSeededCache(t, "a", vercelAccount("a"))
		client := &mockVercelClient{
			fetchProfile: func(context.Context, model.Credential) (model.Profile, error) {
				return model.Profile{}, errors.Join(model.ErrProviderUnreachable, errors.New("dial tcp"))
			},
		}
		svc := application.NewAccountService(cache, application.NewClientRegistry(client, nil))

		_, err := svc.ValidateStored(context.Background())
		require.ErrorIs(t, err, model.ErrProviderUnreachable)
		assert.Len(t, cache.ListAccounts(), 1)
	})

	t.Run("railway token verified by listing projects", func(t *testing.T) {
		stored := railwayAccount("r")
		cache, _ := newSeededCache(t, "r", stored)
		railway := &mockRailwayClient{
			listProjects: func(_ context.Context, cred model.Credential, limit int) ([]model.Project, error) {
				assert.Equal(t, 1, limit)
				assert.Equal(t, stored.Token, cred.Token)
				return nil, nil
			},
		}
		svc := application.NewAccountService(cache, application.NewClientRegistry(nil, railway))

		profile, err := svc.ValidateStored(context.Background())
		require.NoError(t, err)
		require.NotNil(t, profile)
		assert.Equal(t, "r", profile.ID)
	})

	t.Run("no active account", func(t *testing.T) {
		cache, _ := newSeededCache(t, "")
		svc := application.NewAccountService(cache, application.NewClientRegistry(nil, nil))

		profile, err := svc.ValidateStored(context.Background())
		require.NoError(t, err)
		assert.Nil(t, profile)
	})
}

func TestAccountService_DeleteActive(t *testing.T) {
	cache, _ := newSeededCache(t, "a", vercelAccount("a"), vercelAccount("b"))
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, nil))

	require.NoError(t, svc.DeleteActive(context.Background()))
	accounts, err := svc.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "b", accounts[0].ID)

	// Nothing active any more: a no-op.
	require.NoError(t, svc.DeleteActive(context.Background()))
	assert.Len(t, cache.ListAccounts(), 1)
}

func TestAccountService_PersistFailureSurfaces(t *testing.T) {
	cache, store := newSeededCache(t, "", vercelAccount("a"))
	store.setErr = errors.New("keychain locked")
	svc := application.NewAccountService(cache, application.NewClientRegistry(nil, nil))

	err := svc.RenameAccount(context.Background(), "a", "x")
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
}
