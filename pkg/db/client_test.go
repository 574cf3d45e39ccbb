package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/angelmondragon/gomarketplace/pkg/config"
)

func TestNewOpensSQLiteFile(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cart.db")
	client, err := New(context.Background(), config.DBConfig{DSN: dsn, MaxIdleConns: 1}, config.DriverSQLite, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	if client.Dialect() != config.DriverSQLite {
		t.Fatalf("unexpected dialect %q", client.Dialect())
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	sqlDB, err := client.SQLDB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("sqlite should be capped at one open conn, got %d", got)
	}
}

func TestNewRejectsMissingDSNAndUnknownDialect(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{}, config.DriverSQLite, nil); err == nil {
		t.Fatal("expected missing DSN to fail")
	}
	if _, err := New(context.Background(), config.DBConfig{DSN: "x"}, "oracle", nil); err == nil {
		t.Fatal("expected unknown dialect to fail")
	}
}
