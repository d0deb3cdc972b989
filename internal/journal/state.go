// Package journal records every event submission attempt and its phase
// transitions, so failed attempts that left uploaded media behind on the
// server can be listed later.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prohmpiriya/event-studio/internal/domain"
)

// State represents the state of a submission attempt
type State string

const (
	StateStarted       State = "STARTED"
	StateMediaResolved State = "MEDIA_RESOLVED"
	StateCreated       State = "CREATED"
	StateFailed        State = "FAILED"
)

// Phase names the submission phase an attempt failed in
type Phase string

const (
	PhaseMediaResolution Phase = "media_resolution"
	PhaseCreation        Phase = "creation"
)

var (
	// ErrInvalidStateTransition is returned when a state transition is not allowed
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrAttemptNotFound is returned when an attempt is not found
	ErrAttemptNotFound = errors.New("submission attempt not found")
)

// validTransitions defines allowed state transitions
// Key is current state, value is list of allowed next states
var validTransitions = map[State][]State{
	StateStarted:       {StateMediaResolved, StateFailed},
	StateMediaResolved: {StateCreated, StateFailed},
	StateCreated:       {}, // Terminal state
	StateFailed:        {}, // Terminal state
}

// IsTerminal returns true if the state is a terminal state
func (s State) IsTerminal() bool {
	return s == StateCreated || s == StateFailed
}

// IsValid returns true if the state is a valid attempt state
func (s State) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if transition to the target state is allowed
func (s State) CanTransitionTo(target State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Attempt is one run of the two-phase submission
type Attempt struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	UserID        string     `json:"user_id"`
	State         State      `json:"state"`
	PreviousState State      `json:"previous_state,omitempty"`
	MediaCount    int        `json:"media_count"`
	UploadedRefs  []string   `json:"uploaded_refs"`
	EventID       string     `json:"event_id,omitempty"`
	FailedPhase   Phase      `json:"failed_phase,omitempty"`
	ErrorKind     string     `json:"error_kind,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Orphaned reports whether the attempt failed after media reached the server
func (a *Attempt) Orphaned() bool {
	return a.State == StateFailed && len(a.UploadedRefs) > 0
}

func (a *Attempt) clone() *Attempt {
	if a == nil {
		return nil
	}
	c := *a
	c.UploadedRefs = append([]string(nil), a.UploadedRefs...)
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// StateTransition represents a state transition record
type StateTransition struct {
	ID        string    `json:"id"`
	AttemptID string    `json:"attempt_id"`
	FromState State     `json:"from_state"`
	ToState   State     `json:"to_state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists attempts and their transitions
type Store interface {
	SaveAttempt(ctx context.Context, a *Attempt) error
	GetAttempt(ctx context.Context, id string) (*Attempt, error)
	UpdateAttempt(ctx context.Context, a *Attempt) error
	SaveTransition(ctx context.Context, t *StateTransition) error
	GetTransitions(ctx context.Context, attemptID string) ([]StateTransition, error)
	// ListOrphaned returns failed attempts with uploaded media, newest first
	ListOrphaned(ctx context.Context, limit int) ([]*Attempt, error)
}

// Journal manages attempt state transitions
type Journal struct {
	store Store
	now   func() time.Time
}

// New creates a journal backed by store
func New(store Store) *Journal {
	return &Journal{store: store, now: time.Now}
}

// Start records a new attempt in STARTED state
func (j *Journal) Start(ctx context.Context, title, userID string, mediaCount int) (*Attempt, error) {
	now := j.now()
	a := &Attempt{
		ID:           uuid.New().String(),
		Title:        title,
		UserID:       userID,
		State:        StateStarted,
		MediaCount:   mediaCount,
		UploadedRefs: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := j.store.SaveAttempt(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save attempt: %w", err)
	}
	return a, nil
}

// transition moves the attempt to target after applying mutate
func (j *Journal) transition(ctx context.Context, id string, target State, reason string, mutate func(a *Attempt)) (*Attempt, error) {
	a, err := j.store.GetAttempt(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if !a.State.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStateTransition, a.State, target)
	}

	now := j.now()
	t := &StateTransition{
		ID:        uuid.New().String(),
		AttemptID: id,
		FromState: a.State,
		ToState:   target,
		Reason:    reason,
		Timestamp: now,
	}
	if err := j.store.SaveTransition(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save transition: %w", err)
	}

	a.PreviousState = a.State
	a.State = target
	a.UpdatedAt = now
	if target.IsTerminal() {
		a.CompletedAt = &now
	}
	if mutate != nil {
		mutate(a)
	}

	if err := j.store.UpdateAttempt(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update attempt: %w", err)
	}
	return a, nil
}

// MarkMediaResolved records the remote references of every uploaded item
func (j *Journal) MarkMediaResolved(ctx context.Context, id string, refs []string) (*Attempt, error) {
	return j.transition(ctx, id, StateMediaResolved, "media uploaded", func(a *Attempt) {
		a.UploadedRefs = append([]string(nil), refs...)
	})
}

// MarkCreated records the server-assigned event id
func (j *Journal) MarkCreated(ctx context.Context, id, eventID string) (*Attempt, error) {
	return j.transition(ctx, id, StateCreated, "event created", func(a *Attempt) {
		a.EventID = eventID
	})
}

// MarkFailed records a failure in phase. refs lists the media that did reach
// the server before the failure; pass nil to keep what is already recorded.
func (j *Journal) MarkFailed(ctx context.Context, id string, phase Phase, refs []string, cause error) (*Attempt, error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	return j.transition(ctx, id, StateFailed, message, func(a *Attempt) {
		a.FailedPhase = phase
		a.ErrorKind = string(domain.KindOf(cause))
		a.ErrorMessage = message
		if refs != nil {
			a.UploadedRefs = append([]string(nil), refs...)
		}
	})
}

// Get retrieves an attempt by ID
func (j *Journal) Get(ctx context.Context, id string) (*Attempt, error) {
	return j.store.GetAttempt(ctx, id)
}

// History retrieves all transitions of an attempt
func (j *Journal) History(ctx context.Context, id string) ([]StateTransition, error) {
	return j.store.GetTransitions(ctx, id)
}

// ListOrphaned returns failed attempts that left uploaded media on the server
func (j *Journal) ListOrphaned(ctx context.Context, limit int) ([]*Attempt, error) {
	return j.store.ListOrphaned(ctx, limit)
}
