package journal

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/event-studio/pkg/config"
	"github.com/prohmpiriya/event-studio/pkg/database"
)

// Open builds the journal selected by cfg.Journal.Backend. It returns a nil
// journal for the "none" backend. The close function releases the database pool.
func Open(ctx context.Context, cfg *config.Config) (*Journal, func(), error) {
	noop := func() {}

	switch cfg.Journal.Backend {
	case config.JournalBackendNone:
		return nil, noop, nil

	case config.JournalBackendMemory:
		return New(NewMemoryStore()), noop, nil

	case config.JournalBackendPostgres:
		db, err := database.NewPostgres(ctx, database.FromConfig(cfg.Database))
		if err != nil {
			return nil, nil, err
		}
		store := NewPostgresStore(db.Pool())
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return New(store), db.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown journal backend: %q", cfg.Journal.Backend)
}
