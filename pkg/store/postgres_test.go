//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bimhub/bimhub/pkg/models"
)

// TestPostgresStore runs a smoke test of the store against a real
// PostgreSQL instance. It needs a working Docker daemon and is skipped
// in short mode.
func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("bimhub"),
		tcpostgres.WithUsername("bimhub"),
		tcpostgres.WithPassword("bimhub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	st, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "bimhub",
			User:     "bimhub",
			Password: "bimhub",
			SSLMode:  "disable",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	user, err := st.EnsureUser(ctx, "pg-smoke-user", "pg@example.com", "PG Smoke")
	require.NoError(t, err)

	ws := &models.Workspace{Name: "Postgres Workspace"}
	wsID, err := st.CreateWorkspace(ctx, ws, user.ID)
	require.NoError(t, err)

	got, err := st.GetWorkspace(ctx, wsID)
	require.NoError(t, err)
	require.Equal(t, "Postgres Workspace", got.Name)

	role, err := st.GetWorkspaceMembership(ctx, wsID, user.ID)
	require.NoError(t, err)
	require.Equal(t, models.WorkspaceRoleOwner, role.Role)

	// Client id collisions must surface through the PostgreSQL error
	// path, not just the SQLite one.
	app := &models.OAuthApp{
		WorkspaceID:   wsID,
		Name:          "Viewer",
		ClientID:      "pg-client-1",
		ClientType:    models.ClientTypePublic,
		RedirectURIs:  models.StringSlice{"https://viewer.example.com/callback"},
		AllowedScopes: models.StringSlice{models.ScopeModelsRead},
	}
	_, err = st.CreateOAuthApp(ctx, app)
	require.NoError(t, err)

	dup := &models.OAuthApp{
		WorkspaceID:   wsID,
		Name:          "Viewer Again",
		ClientID:      "pg-client-1",
		ClientType:    models.ClientTypePublic,
		RedirectURIs:  models.StringSlice{"https://viewer.example.com/callback"},
		AllowedScopes: models.StringSlice{models.ScopeModelsRead},
	}
	_, err = st.CreateOAuthApp(ctx, dup)
	require.ErrorIs(t, err, models.ErrDuplicateOAuthApp)

	_, err = st.GetWorkspace(ctx, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, models.ErrWorkspaceNotFound)
}
