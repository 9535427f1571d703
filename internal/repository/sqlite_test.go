package repository

import (
	"context"
	"path/filepath"
	"testing"

	"portalrecruit/ingestion/internal/config"
	"portalrecruit/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSQLite(t *testing.T) (*SQLite, context.Context) {
	t.Helper()
	ctx := context.Background()

	store, err := NewSQLite(ctx, "sqlite://"+filepath.Join(t.TempDir(), "skout.db"))
	require.NoError(t, err, "Failed to open test sqlite store")
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(store.Close)

	return store, ctx
}

func TestSQLiteStoreContract(t *testing.T) {
	store, ctx := setupTestSQLite(t)
	runStoreContract(t, ctx, store)
}

func TestSQLiteHealth(t *testing.T) {
	store, ctx := setupTestSQLite(t)
	assert.NoError(t, store.Health(ctx))
}

func TestSQLitePoolStats(t *testing.T) {
	store, _ := setupTestSQLite(t)

	stats := store.PoolStats()
	assert.Equal(t, int64(1), stats["max_conns"])
	assert.Contains(t, stats, "idle_conns")
}

func TestSQLiteReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "nested", "skout.db")

	first, err := NewSQLite(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, first.EnsureSchema(ctx))
	_, err = first.UpsertGames(ctx, []*models.Game{testGame("G1", "final")})
	require.NoError(t, err)
	first.Close()

	second, err := NewSQLite(ctx, dsn)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.EnsureSchema(ctx))

	games, err := second.SeasonGames(ctx, "2024")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"G1": "final"}, games)
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{
		StoreDriver: config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "skout.db"),
	}
	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &SQLite{}, store)

	_, err = Open(ctx, &config.Config{StoreDriver: "mysql"})
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "STORE_DRIVER", cfgErr.Field)
}

func TestParseSQLiteDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		want    string
		wantErr bool
	}{
		{name: "memory", dsn: "sqlite://:memory:", want: ":memory:"},
		{name: "absolute", dsn: "sqlite:///tmp/skout.db", want: "/tmp/skout.db"},
		{name: "explicit relative", dsn: "sqlite://./data/skout.db", want: "./data/skout.db"},
		{name: "bare relative", dsn: "sqlite://data/skout.db", want: "./data/skout.db"},
		{name: "escaped with query", dsn: "sqlite://my%20data/skout.db?_txlock=immediate", want: "./my data/skout.db?_txlock=immediate"},
		{name: "wrong scheme", dsn: "postgres://localhost/db", wantErr: true},
		{name: "no path", dsn: "sqlite://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSQLiteDSN(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
