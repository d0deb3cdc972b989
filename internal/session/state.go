package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/event-studio/internal/domain"
)

// State is the lifecycle state of the session
type State string

const (
	StateUnauthenticated State = "UNAUTHENTICATED"
	StateRestoring       State = "RESTORING"
	StateAuthenticated   State = "AUTHENTICATED"
	// StateFailed means restoration could not reach the service; the
	// persisted credential is kept so Initialize can be retried.
	StateFailed State = "FAILED"
)

var (
	// ErrInvalidStateTransition is returned when a state transition is not allowed
	ErrInvalidStateTransition = errors.New("invalid session state transition")
	// ErrNotAuthenticated is returned by Require when no identity is held
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrForbidden is returned by Require when the identity lacks the role
	ErrForbidden = errors.New("forbidden for this role")
)

// validTransitions defines allowed state transitions
// Key is current state, value is list of allowed next states
var validTransitions = map[State][]State{
	StateUnauthenticated: {StateRestoring, StateAuthenticated, StateUnauthenticated},
	StateRestoring:       {StateAuthenticated, StateUnauthenticated, StateFailed},
	StateAuthenticated:   {StateAuthenticated, StateUnauthenticated, StateRestoring},
	StateFailed:          {StateRestoring, StateAuthenticated, StateUnauthenticated},
}

// IsValid returns true if s is a known state
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

// Transition is published to subscribers on every state change
type Transition struct {
	From     State
	To       State
	Identity *domain.Identity // nil unless To is Authenticated
	Reason   string
	At       time.Time
}

func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s (%s)", t.From, t.To, t.Reason)
}
