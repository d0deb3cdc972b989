package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS submission_attempts (
	id             UUID PRIMARY KEY,
	title          TEXT NOT NULL,
	user_id        TEXT NOT NULL,
	state          TEXT NOT NULL,
	previous_state TEXT,
	media_count    INT NOT NULL DEFAULT 0,
	uploaded_refs  TEXT[] NOT NULL DEFAULT '{}',
	event_id       TEXT,
	failed_phase   TEXT,
	error_kind     TEXT,
	error_message  TEXT,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_submission_attempts_orphaned
	ON submission_attempts (created_at DESC)
	WHERE state = 'FAILED' AND cardinality(uploaded_refs) > 0;

CREATE TABLE IF NOT EXISTS submission_transitions (
	id         UUID PRIMARY KEY,
	attempt_id UUID NOT NULL REFERENCES submission_attempts(id) ON DELETE CASCADE,
	from_state TEXT NOT NULL,
	to_state   TEXT NOT NULL,
	reason     TEXT,
	timestamp  TIMESTAMPTZ NOT NULL
);
`

const attemptColumns = `
	id, title, user_id, state, previous_state, media_count, uploaded_refs,
	event_id, failed_phase, error_kind, error_message,
	created_at, updated_at, completed_at
`

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-based store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the journal tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate journal schema: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SaveAttempt persists a new attempt
func (s *PostgresStore) SaveAttempt(ctx context.Context, a *Attempt) error {
	query := `INSERT INTO submission_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.Title,
		a.UserID,
		string(a.State),
		nullable(string(a.PreviousState)),
		a.MediaCount,
		refsOrEmpty(a.UploadedRefs),
		nullable(a.EventID),
		nullable(string(a.FailedPhase)),
		nullable(a.ErrorKind),
		nullable(a.ErrorMessage),
		a.CreatedAt,
		a.UpdatedAt,
		a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return nil
}

// GetAttempt retrieves an attempt by ID
func (s *PostgresStore) GetAttempt(ctx context.Context, id string) (*Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM submission_attempts WHERE id = $1`

	a, err := scanAttempt(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	return a, err
}

func scanAttempt(row pgx.Row) (*Attempt, error) {
	var a Attempt
	var state string
	var previousState, eventID, failedPhase, errorKind, errorMessage *string

	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.UserID,
		&state,
		&previousState,
		&a.MediaCount,
		&a.UploadedRefs,
		&eventID,
		&failedPhase,
		&errorKind,
		&errorMessage,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan attempt: %w", err)
	}

	a.State = State(state)
	a.PreviousState = State(deref(previousState))
	a.EventID = deref(eventID)
	a.FailedPhase = Phase(deref(failedPhase))
	a.ErrorKind = deref(errorKind)
	a.ErrorMessage = deref(errorMessage)
	if a.UploadedRefs == nil {
		a.UploadedRefs = []string{}
	}
	return &a, nil
}

// UpdateAttempt updates an existing attempt
func (s *PostgresStore) UpdateAttempt(ctx context.Context, a *Attempt) error {
	query := `
		UPDATE submission_attempts
		SET state = $2,
			previous_state = $3,
			uploaded_refs = $4,
			event_id = $5,
			failed_phase = $6,
			error_kind = $7,
			error_message = $8,
			updated_at = $9,
			completed_at = $10
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		a.ID,
		string(a.State),
		nullable(string(a.PreviousState)),
		refsOrEmpty(a.UploadedRefs),
		nullable(a.EventID),
		nullable(string(a.FailedPhase)),
		nullable(a.ErrorKind),
		nullable(a.ErrorMessage),
		a.UpdatedAt,
		a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// SaveTransition persists a state transition
func (s *PostgresStore) SaveTransition(ctx context.Context, t *StateTransition) error {
	query := `
		INSERT INTO submission_transitions (id, attempt_id, from_state, to_state, reason, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID,
		t.AttemptID,
		string(t.FromState),
		string(t.ToState),
		nullable(t.Reason),
		t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}
	return nil
}

// GetTransitions retrieves all transitions for an attempt
func (s *PostgresStore) GetTransitions(ctx context.Context, attemptID string) ([]StateTransition, error) {
	query := `
		SELECT id, attempt_id, from_state, to_state, reason, timestamp
		FROM submission_transitions
		WHERE attempt_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transitions: %w", err)
	}
	defer rows.Close()

	transitions := []StateTransition{}
	for rows.Next() {
		var t StateTransition
		var fromState, toState string
		var reason *string

		if err := rows.Scan(&t.ID, &t.AttemptID, &fromState, &toState, &reason, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.FromState = State(fromState)
		t.ToState = State(toState)
		t.Reason = deref(reason)
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}
	return transitions, nil
}

// ListOrphaned returns failed attempts with uploaded media, newest first
func (s *PostgresStore) ListOrphaned(ctx context.Context, limit int) ([]*Attempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM submission_attempts
		WHERE state = $1 AND cardinality(uploaded_refs) > 0
		ORDER BY created_at DESC`

	args := []any{string(StateFailed)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}
	return attempts, nil
}

func refsOrEmpty(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}
