package migrate

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gomarketplace/pkg/config"
	"github.com/angelmondragon/gomarketplace/pkg/db"
	"github.com/angelmondragon/gomarketplace/pkg/logger"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, Validate())
}

func TestValidateRejectsBadNamesAndMissingAnnotations(t *testing.T) {
	bad := fstest.MapFS{
		"migrations/create.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	assert.Error(t, validateFS(bad, "migrations"))

	noDown := fstest.MapFS{
		"migrations/20260101000000_x.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
	}
	assert.Error(t, validateFS(noDown, "migrations"))

	dup := fstest.MapFS{
		"migrations/20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"migrations/20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	assert.Error(t, validateFS(dup, "migrations"))
}

func TestMaybeRunAppliesMigrationsOnSQLite(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "cart.db")
	client, err := db.New(ctx, config.DBConfig{DSN: dsn}, config.DriverSQLite, nil)
	require.NoError(t, err)
	defer client.Close()

	cfg := &config.Config{FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	require.NoError(t, MaybeRun(ctx, cfg, logg, client))

	assert.True(t, client.DB().Migrator().HasTable("kv_entries"))

	sqlDB, err := client.SQLDB()
	require.NoError(t, err)
	version, err := Version(sqlDB, client.Dialect())
	require.NoError(t, err)
	assert.Equal(t, int64(20260901120000), version)
}

func TestMaybeRunSkipsWhenDisabled(t *testing.T) {
	cfg := &config.Config{}
	// a nil client would panic if the flag were not honored
	assert.NoError(t, MaybeRun(context.Background(), cfg, nil, nil))
}
