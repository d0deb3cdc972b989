package database

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/prohmpiriya/event-studio/pkg/config"
)

// getTestConfig returns config for testing
// Uses environment variables or defaults
func getTestConfig() *PostgresConfig {
	cfg := DefaultPostgresConfig()
	cfg.MaxRetries = 0
	cfg.ConnectTimeout = 2 * time.Second

	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("TEST_POSTGRES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("TEST_POSTGRES_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("TEST_POSTGRES_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("TEST_POSTGRES_DATABASE"); dbname != "" {
		cfg.Database = dbname
	}

	return cfg
}

// connectOrSkip skips the test if the database is not available
func connectOrSkip(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := NewPostgres(ctx, getTestConfig())
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	return db
}

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	if cfg.Host != "localhost" {
		t.Errorf("Expected host 'localhost', got '%s'", cfg.Host)
	}
	if cfg.Port != 5432 {
		t.Errorf("Expected port 5432, got %d", cfg.Port)
	}
	if cfg.Database != "event_studio" {
		t.Errorf("Expected database 'event_studio', got '%s'", cfg.Database)
	}
	if cfg.MaxConns != 25 {
		t.Errorf("Expected max conns 25, got %d", cfg.MaxConns)
	}
	if cfg.MinConns != 5 {
		t.Errorf("Expected min conns 5, got %d", cfg.MinConns)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected max retries 3, got %d", cfg.MaxRetries)
	}
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"

	if dsn != expected {
		t.Errorf("DSN mismatch:\nExpected: %s\nGot: %s", expected, dsn)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     6543,
		User:     "studio",
		Password: "pw",
		DBName:   "journal",
		MaxConns: 2,
	})

	if cfg.Host != "db.internal" || cfg.Port != 6543 || cfg.Database != "journal" {
		t.Errorf("Connection fields not copied: %+v", cfg)
	}
	if cfg.SSLMode != "disable" {
		t.Errorf("Expected default sslmode 'disable', got '%s'", cfg.SSLMode)
	}
	if cfg.MaxConns != 2 {
		t.Errorf("Expected max conns 2, got %d", cfg.MaxConns)
	}
	if cfg.MinConns > cfg.MaxConns {
		t.Errorf("Min conns %d exceeds max conns %d", cfg.MinConns, cfg.MaxConns)
	}
}

func TestNewPostgres_InvalidConfig(t *testing.T) {
	cfg := &PostgresConfig{
		Host:           "invalid-host-that-does-not-exist",
		Port:           9999,
		User:           "invalid",
		Password:       "invalid",
		Database:       "invalid",
		SSLMode:        "disable",
		MaxConns:       1,
		MaxRetries:     1,
		RetryInterval:  100 * time.Millisecond,
		ConnectTimeout: 1 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewPostgres(ctx, cfg)
	if err == nil {
		t.Error("Expected error for invalid config, got nil")
	}
}

func TestNewPostgres_CancelledContext(t *testing.T) {
	cfg := &PostgresConfig{
		Host:           "invalid-host-that-does-not-exist",
		Port:           9999,
		SSLMode:        "disable",
		MaxConns:       1,
		MaxRetries:     5,
		RetryInterval:  time.Hour,
		ConnectTimeout: 500 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err := NewPostgres(ctx, cfg)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if time.Since(start) > 10*time.Second {
		t.Error("Retry loop did not stop on context cancellation")
	}
}

func TestPostgresDB_Integration(t *testing.T) {
	db := connectOrSkip(t)
	defer db.Close()
	ctx := context.Background()

	if !db.IsConnected(ctx) {
		t.Error("Expected IsConnected to return true")
	}
	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
	if db.Pool() == nil {
		t.Error("Expected Pool() to return non-nil")
	}
	if db.Stats() == nil {
		t.Error("Expected Stats() to return non-nil")
	}
}

func TestPostgresDB_Exec_Integration(t *testing.T) {
	db := connectOrSkip(t)
	defer db.Close()
	ctx := context.Background()

	// Temp tables are per connection, so pin one
	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "CREATE TEMP TABLE test_table (id SERIAL PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO test_table (name) VALUES ($1)", "test"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var name string
	if err := tx.QueryRow(ctx, "SELECT name FROM test_table WHERE name = $1", "test").Scan(&name); err != nil {
		t.Errorf("QueryRow failed: %v", err)
	}
	if name != "test" {
		t.Errorf("Expected name 'test', got '%s'", name)
	}

	err = tx.QueryRow(ctx, "SELECT name FROM test_table WHERE name = $1", "absent").Scan(&name)
	if !IsNoRows(err) {
		t.Errorf("Expected no rows, got %v", err)
	}
}

func TestPostgresDB_Close_Integration(t *testing.T) {
	db := connectOrSkip(t)
	ctx := context.Background()

	db.Close()

	if err := db.Ping(ctx); err == nil {
		t.Error("Expected Ping to fail after Close")
	}
}
