package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/yourusername/matchedge/internal/config"
)

// TestDSNEnv names the environment variable holding an integration database
// host. Integration tests are skipped when it is unset.
const TestDSNEnv = "MATCHEDGE_TEST_DB_HOST"

// SetupTestDB connects to the integration database and applies the schema.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	host := os.Getenv(TestDSNEnv)
	if host == "" {
		t.Skipf("Integration test - set %s to run", TestDSNEnv)
	}

	cfg := &config.DatabaseConfig{
		Enabled:        true,
		Host:           host,
		Port:           5432,
		Name:           envOr("MATCHEDGE_TEST_DB_NAME", "matchedge_test"),
		User:           envOr("MATCHEDGE_TEST_DB_USER", "postgres"),
		Password:       os.Getenv("MATCHEDGE_TEST_DB_PASSWORD"),
		SSLMode:        "disable",
		MaxConnections: 4,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewDB(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// TeardownTestDB truncates the test tables and closes the pool.
func TeardownTestDB(t *testing.T, db *DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.Exec(ctx, "TRUNCATE settled_outcomes, artifact_records, historical_matches"); err != nil {
		t.Logf("warning: failed to truncate test tables: %v", err)
	}
	db.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
