// Package session owns the authentication lifecycle: restoring a persisted
// credential at startup, login, signup and logout. It is the only writer of
// the credential, both in its store and on the gateway.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prohmpiriya/event-studio/internal/domain"
	"github.com/prohmpiriya/event-studio/pkg/logger"
	"github.com/prohmpiriya/event-studio/pkg/telemetry"
)

// Gateway is the subset of the remote service the session needs
type Gateway interface {
	SetCredential(cred domain.Credential)
	ClearCredential()
	Login(ctx context.Context, email, password string) (*domain.AuthResult, error)
	Signup(ctx context.Context, reg *domain.Registration) (*domain.AuthResult, error)
	CurrentIdentity(ctx context.Context) (*domain.Identity, error)
	UploadProfileImage(ctx context.Context, item domain.MediaItem) (string, error)
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.Identity, error)
	ChangePassword(ctx context.Context, change domain.PasswordChange) error
}

// Options holds optional controller dependencies
type Options struct {
	Logger  *logger.Logger
	Metrics *telemetry.Metrics
	// Now overrides the clock used for credential expiry checks
	Now func() time.Time
}

// Controller is the session state machine
type Controller struct {
	gw      Gateway
	store   CredentialStore
	log     *logger.Logger
	metrics *telemetry.Metrics
	now     func() time.Time

	// op serializes mutating operations, including their network calls
	op sync.Mutex

	mu       sync.RWMutex
	state    State
	identity *domain.Identity

	subMu   sync.Mutex
	subs    map[int]func(Transition)
	nextSub int
}

// NewController creates a controller in the Unauthenticated state.
// Call Initialize to restore a persisted session.
func NewController(gw Gateway, store CredentialStore, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		gw:      gw,
		store:   store,
		log:     log.Component("session"),
		metrics: opts.Metrics,
		now:     now,
		state:   StateUnauthenticated,
		subs:    make(map[int]func(Transition)),
	}
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Identity returns a copy of the authenticated identity, nil otherwise
func (c *Controller) Identity() *domain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity.Clone()
}

// Subscribe registers fn for every transition and returns a function that
// removes it. fn runs synchronously and must not call mutating methods.
func (c *Controller) Subscribe(fn func(Transition)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// transition moves to target, replacing the identity, and notifies subscribers
func (c *Controller) transition(ctx context.Context, target State, identity *domain.Identity, reason string) error {
	c.mu.Lock()
	from := c.state
	if !from.CanTransitionTo(target) {
		c.mu.Unlock()
		return fmt.Errorf("%w: from %s to %s", ErrInvalidStateTransition, from, target)
	}
	c.state = target
	c.identity = identity.Clone()
	c.mu.Unlock()

	t := Transition{From: from, To: target, Identity: identity.Clone(), Reason: reason, At: c.now()}
	c.log.DebugContext(ctx, "session transition",
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("reason", reason),
	)
	if c.metrics != nil {
		c.metrics.SessionTransition.Inc(ctx, telemetry.SessionTransitionAttrs(string(from), string(target))...)
	}

	c.subMu.Lock()
	subs := make([]func(Transition), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
	return nil
}

// Initialize restores the persisted session.
//
// Without a stored credential it ends Unauthenticated with no network call.
// A credential the service rejects, or a JWT already past its expiry, is
// cleared and the session ends Unauthenticated without error. Any other
// failure ends in Failed, keeps the stored credential and returns the error.
func (c *Controller) Initialize(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	cred, err := c.store.Load(ctx)
	if err != nil {
		c.log.WarnContext(ctx, "failed to load stored credential", zap.Error(err))
		c.gw.ClearCredential()
		if terr := c.transition(ctx, StateUnauthenticated, nil, "credential unreadable"); terr != nil {
			return terr
		}
		return fmt.Errorf("loading credential: %w", err)
	}

	if cred.IsZero() {
		c.gw.ClearCredential()
		return c.transition(ctx, StateUnauthenticated, nil, "no stored credential")
	}

	if cred.ExpiredAt(c.now()) {
		c.discard(ctx)
		return c.transition(ctx, StateUnauthenticated, nil, "stored credential expired")
	}

	if err := c.transition(ctx, StateRestoring, nil, "stored credential found"); err != nil {
		return err
	}

	c.gw.SetCredential(cred)
	identity, err := c.gw.CurrentIdentity(ctx)
	if err == nil {
		return c.transition(ctx, StateAuthenticated, identity, "session restored")
	}

	switch domain.KindOf(err) {
	case domain.KindSessionExpired, domain.KindInvalidCredentials:
		c.log.InfoContext(ctx, "stored session rejected by service")
		c.discard(ctx)
		return c.transition(ctx, StateUnauthenticated, nil, "session expired")
	default:
		c.gw.ClearCredential()
		if terr := c.transition(ctx, StateFailed, nil, "restore failed"); terr != nil {
			return terr
		}
		return err
	}
}

// discard clears the credential from the store and the gateway.
// Store errors are logged; the in-memory session is cleared regardless.
func (c *Controller) discard(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.log.WarnContext(ctx, "failed to clear stored credential", zap.Error(err))
	}
	c.gw.ClearCredential()
}

// Login authenticates with email and password. On failure the state and any
// existing session are left untouched.
func (c *Controller) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	c.op.Lock()
	defer c.op.Unlock()

	result, err := c.gw.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, result, "login")
}

// Signup registers an account and signs into it. A password confirmation
// mismatch is rejected before any network call.
func (c *Controller) Signup(ctx context.Context, reg domain.Registration) (*domain.Identity, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	c.op.Lock()
	defer c.op.Unlock()

	result, err := c.gw.Signup(ctx, &reg)
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, result, "signup")
}

func (c *Controller) establish(ctx context.Context, result *domain.AuthResult, reason string) (*domain.Identity, error) {
	if err := c.store.Save(ctx, result.Credential); err != nil {
		// The session still works for this process; it just won't survive a restart
		c.log.WarnContext(ctx, "failed to persist credential", zap.Error(err))
	}
	c.gw.SetCredential(result.Credential)

	if err := c.transition(ctx, StateAuthenticated, result.Identity, reason); err != nil {
		return nil, err
	}
	c.log.InfoContext(ctx, "authenticated",
		zap.String("user_id", result.Identity.ID),
		zap.String("role", string(result.Identity.Role)),
		logger.Credential("credential", string(result.Credential)),
	)
	return result.Identity.Clone(), nil
}

// Logout forgets the session. It never fails and makes no network call.
func (c *Controller) Logout(ctx context.Context) {
	c.op.Lock()
	defer c.op.Unlock()

	c.discard(ctx)
	// Every state may move to Unauthenticated
	_ = c.transition(ctx, StateUnauthenticated, nil, "logout")
}

// UpdateIdentity replaces the stored identity with a server-confirmed value.
// The current id and role are kept.
func (c *Controller) UpdateIdentity(ctx context.Context, patch domain.Identity) error {
	c.op.Lock()
	defer c.op.Unlock()
	return c.updateIdentity(ctx, patch)
}

func (c *Controller) updateIdentity(ctx context.Context, patch domain.Identity) error {
	current := c.Identity()
	if c.State() != StateAuthenticated || current == nil {
		return ErrNotAuthenticated
	}
	patch.ID = current.ID
	patch.Role = current.Role
	return c.transition(ctx, StateAuthenticated, &patch, "identity updated")
}

// Require returns the identity when authenticated with one of roles.
// No roles means any authenticated identity.
func (c *Controller) Require(roles ...domain.Role) (*domain.Identity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != StateAuthenticated || c.identity == nil {
		return nil, ErrNotAuthenticated
	}
	if len(roles) == 0 {
		return c.identity.Clone(), nil
	}
	for _, r := range roles {
		if c.identity.Role == r {
			return c.identity.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrForbidden, c.identity.Role)
}

// UpdateProfile uploads image when given, saves the profile and adopts the
// identity the service returns.
func (c *Controller) UpdateProfile(ctx context.Context, update domain.ProfileUpdate, image *domain.MediaItem) (*domain.Identity, error) {
	c.op.Lock()
	defer c.op.Unlock()

	if _, err := c.Require(); err != nil {
		return nil, err
	}

	if image != nil {
		ref, err := c.gw.UploadProfileImage(ctx, *image)
		if err != nil {
			return nil, err
		}
		update.ProfileImage = ref
	}

	identity, err := c.gw.UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}
	if err := c.updateIdentity(ctx, *identity); err != nil {
		return nil, err
	}
	return c.Identity(), nil
}

// ChangePassword replaces the account password after checking the confirmation locally
func (c *Controller) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if next != confirm {
		return domain.ValidationFailed("passwords do not match", map[string]string{
			"confirmPassword": "must match new password",
		})
	}

	c.op.Lock()
	defer c.op.Unlock()

	if _, err := c.Require(); err != nil {
		return err
	}
	return c.gw.ChangePassword(ctx, domain.PasswordChange{CurrentPassword: current, NewPassword: next})
}
