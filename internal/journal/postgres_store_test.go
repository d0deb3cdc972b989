package journal

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/prohmpiriya/event-studio/pkg/database"
)

// skipIfNoDatabase connects to the test database or skips the test
func skipIfNoDatabase(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}

	cfg := database.DefaultPostgresConfig()
	cfg.MaxRetries = 0
	cfg.MaxConns = 2
	cfg.MinConns = 0
	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("TEST_POSTGRES_PORT")); err == nil {
		cfg.Port = port
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

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	t.Cleanup(db.Close)

	store := NewPostgresStore(db.Pool())
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return store
}

func TestPostgresStore_Lifecycle(t *testing.T) {
	store := skipIfNoDatabase(t)
	ctx := context.Background()
	j := New(store)

	a, err := j.Start(ctx, "Launch Party", "user-pg", 2)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		store.pool.Exec(context.Background(), "DELETE FROM submission_attempts WHERE id = $1", a.ID)
	})

	if _, err := j.MarkMediaResolved(ctx, a.ID, []string{"https://cdn/a.png", "https://cdn/b.png"}); err != nil {
		t.Fatalf("MarkMediaResolved failed: %v", err)
	}
	if _, err := j.MarkFailed(ctx, a.ID, PhaseCreation, nil, errors.New("backend unavailable")); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	got, err := j.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != StateFailed || got.PreviousState != StateMediaResolved {
		t.Errorf("unexpected states: %s (from %s)", got.State, got.PreviousState)
	}
	if len(got.UploadedRefs) != 2 {
		t.Errorf("expected 2 uploaded refs, got %v", got.UploadedRefs)
	}
	if got.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	history, err := j.History(ctx, a.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 transitions, got %d", len(history))
	}

	orphans, err := j.ListOrphaned(ctx, 0)
	if err != nil {
		t.Fatalf("ListOrphaned failed: %v", err)
	}
	found := false
	for _, o := range orphans {
		if o.ID == a.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected attempt in orphaned list")
	}
}

func TestPostgresStore_NotFound(t *testing.T) {
	store := skipIfNoDatabase(t)

	_, err := store.GetAttempt(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("expected ErrAttemptNotFound, got %v", err)
	}
}
