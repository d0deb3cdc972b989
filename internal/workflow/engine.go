// Package workflow drives one draft through the authoring steps and the
// two-phase submission: upload every pending media item, then create the
// event with the resulting references.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/prohmpiriya/event-studio/internal/domain"
	"github.com/prohmpiriya/event-studio/internal/draft"
	"github.com/prohmpiriya/event-studio/internal/journal"
	"github.com/prohmpiriya/event-studio/pkg/logger"
	"github.com/prohmpiriya/event-studio/pkg/telemetry"
)

var (
	// ErrNotOnReviewStep is returned by Submit before the review step
	ErrNotOnReviewStep = errors.New("submit is only allowed from the review step")
	// ErrSubmissionInProgress is returned for any call made while Submit runs
	ErrSubmissionInProgress = errors.New("a submission is in progress")
	// ErrCompleted is returned once the event has been created
	ErrCompleted = errors.New("workflow already completed")
)

// Gateway is the subset of the remote service the workflow needs
type Gateway interface {
	UploadMedia(ctx context.Context, item domain.MediaItem) (string, error)
	CreateEvent(ctx context.Context, payload *domain.EventPayload) (*domain.Event, error)
}

// Authorizer resolves the identity allowed to author events
type Authorizer interface {
	Require(roles ...domain.Role) (*domain.Identity, error)
}

// Options configures an Engine
type Options struct {
	// Draft to start from; a blank draft when nil
	Draft *draft.Draft
	// UploadConcurrency limits parallel uploads; 0 uploads everything at once
	UploadConcurrency int
	// Location interprets the draft's date and time; UTC when nil
	Location *time.Location
	// Journal records submission attempts; nil disables it
	Journal *journal.Journal
	Logger  *logger.Logger
	Metrics *telemetry.Metrics
}

// Result is reported by a successful submission
type Result struct {
	EventID      string
	SubmissionID string
}

// State is a snapshot of the workflow position
type State struct {
	ActiveStep int
	StepCount  int
	StepName   string
	LastError  error
	Submitting bool
	Completed  bool
	Result     *Result
}

// Engine owns one draft and its position in the step sequence
type Engine struct {
	gw       Gateway
	identity *domain.Identity
	opts     Options
	log      *logger.Logger

	mu         sync.Mutex
	draft      *draft.Draft
	step       int
	lastError  error
	submitting bool
	result     *Result
}

// NewEngine starts a workflow for the authenticated organizer or admin
func NewEngine(auth Authorizer, gw Gateway, opts Options) (*Engine, error) {
	identity, err := auth.Require(domain.RoleOrganizer, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}

	d := opts.Draft
	if d == nil {
		d = draft.New()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}

	return &Engine{
		gw:       gw,
		identity: identity,
		opts:     opts,
		log:      log.Component("workflow").WithFields(zap.String("user_id", identity.ID)),
		draft:    d,
	}, nil
}

// State returns the current position
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return State{
		ActiveStep: e.step,
		StepCount:  StepCount,
		StepName:   steps[e.step].Name,
		LastError:  e.lastError,
		Submitting: e.submitting,
		Completed:  e.result != nil,
		Result:     e.result,
	}
}

// Draft returns a copy of the draft, nil once the workflow completed
func (e *Engine) Draft() *draft.Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return nil
	}
	return e.draft.Clone()
}

// checkMutable must be called with mu held
func (e *Engine) checkMutable() error {
	switch {
	case e.submitting:
		return ErrSubmissionInProgress
	case e.result != nil:
		return ErrCompleted
	}
	return nil
}

// Edit applies fn to the draft
func (e *Engine) Edit(fn func(d *draft.Draft) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkMutable(); err != nil {
		return err
	}
	return fn(e.draft)
}

// GoNext advances one step after validating the step being left.
// On the review step it does nothing.
func (e *Engine) GoNext() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkMutable(); err != nil {
		return err
	}
	if e.step == StepCount-1 {
		return nil
	}
	if validate := steps[e.step].Validate; validate != nil {
		if err := validate(e.draft); err != nil {
			e.lastError = err
			return err
		}
	}
	e.lastError = nil
	e.step++
	e.log.Debug("step advanced", zap.String("step", steps[e.step].Name))
	return nil
}

// GoBack moves back one step and clears the last error.
// On the first step it only clears the error.
func (e *Engine) GoBack() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkMutable(); err != nil {
		return err
	}
	e.lastError = nil
	if e.step > 0 {
		e.step--
	}
	return nil
}

// Submit uploads every pending media item and then creates the event.
//
// It is only allowed from the review step. A draft that fails validation is
// reported without any network call. Any upload failure aborts before the
// creation request. Both phase failures reset the workflow to the first
// step and keep the draft; media uploaded before the failure stay on the
// server. On success the draft is discarded.
func (e *Engine) Submit(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if err := e.checkMutable(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if e.step != StepCount-1 {
		e.mu.Unlock()
		return nil, ErrNotOnReviewStep
	}
	if err := e.draft.Validate(); err != nil {
		e.lastError = err
		e.mu.Unlock()
		return nil, err
	}
	e.submitting = true
	e.lastError = nil
	snapshot := e.draft.Clone()
	e.mu.Unlock()

	result, err := e.submit(ctx, snapshot)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitting = false
	if err != nil {
		e.lastError = err
		e.step = 0
		return nil, err
	}
	e.result = result
	e.draft = nil
	return result, nil
}

func (e *Engine) submit(ctx context.Context, d *draft.Draft) (result *Result, err error) {
	var attempt *journal.Attempt
	if e.opts.Journal != nil {
		attempt, err = e.opts.Journal.Start(ctx, d.Title, e.identity.ID, len(d.Media))
		if err != nil {
			e.log.WarnContext(ctx, "failed to journal submission", zap.Error(err))
		}
	}
	submissionID := uuid.New().String()
	if attempt != nil {
		submissionID = attempt.ID
	}

	ctx = context.WithValue(ctx, logger.SubmissionIDKey, submissionID)
	ctx, span := telemetry.StartSpan(ctx, "workflow.submit")
	span.SetAttributes(telemetry.SubmissionIDAttr(submissionID))
	defer func() {
		telemetry.EndSpan(span, err)
		e.recordSubmission(ctx, err)
	}()

	e.log.InfoContext(ctx, "submission started",
		zap.String("title", d.Title),
		zap.Int("media", len(d.Media)),
	)

	refs, err := e.resolveMedia(ctx, d)
	if err == nil {
		// A cancelled submission must never reach the creation phase
		if cerr := ctx.Err(); cerr != nil {
			err = domain.WrapError(domain.KindUploadFailed, cerr, "submission cancelled")
		}
	}
	if err != nil {
		e.journalFailed(ctx, attempt, journal.PhaseMediaResolution, uploadedOnly(refs), err)
		e.log.WarnContext(ctx, "media resolution failed", zap.Error(err))
		return nil, err
	}
	telemetry.AddSpanEvent(ctx, "media resolved", attribute.Int("media.count", len(refs)))
	e.record(ctx, attempt, func(j *journal.Journal) error {
		_, jerr := j.MarkMediaResolved(ctx, attempt.ID, refs)
		return jerr
	})

	event, err := e.createEvent(ctx, d, refs)
	if err != nil {
		e.journalFailed(ctx, attempt, journal.PhaseCreation, nil, err)
		// Uploaded media stay on the server without an event
		e.log.ErrorContext(ctx, "event creation failed",
			zap.Int("orphaned_media", len(refs)),
			zap.Error(err),
		)
		return nil, err
	}
	eventID := event.ResourceID()
	span.SetAttributes(telemetry.EventIDAttr(eventID))
	telemetry.AddSpanEvent(ctx, "event created")
	e.record(ctx, attempt, func(j *journal.Journal) error {
		_, jerr := j.MarkCreated(ctx, attempt.ID, eventID)
		return jerr
	})

	e.log.InfoContext(ctx, "event created", zap.String("event_id", eventID))
	return &Result{EventID: eventID, SubmissionID: submissionID}, nil
}

func (e *Engine) createEvent(ctx context.Context, d *draft.Draft, refs []string) (event *domain.Event, err error) {
	ctx, span := telemetry.StartSpan(ctx, "workflow.create_event")
	defer func() { telemetry.EndSpan(span, err) }()

	payload, err := d.Payload(refs, e.opts.Location)
	if err != nil {
		if domain.KindOf(err) != domain.KindValidation {
			err = domain.WrapError(domain.KindValidation, err, "building event payload")
		}
		return nil, err
	}
	return e.gw.CreateEvent(ctx, payload)
}

// record runs fn against the journal when one is attached; failures are logged only
func (e *Engine) record(ctx context.Context, attempt *journal.Attempt, fn func(j *journal.Journal) error) {
	if e.opts.Journal == nil || attempt == nil {
		return
	}
	if err := fn(e.opts.Journal); err != nil {
		e.log.WarnContext(ctx, "failed to journal submission", zap.Error(err))
	}
}

func (e *Engine) journalFailed(ctx context.Context, attempt *journal.Attempt, phase journal.Phase, refs []string, cause error) {
	e.record(ctx, attempt, func(j *journal.Journal) error {
		_, err := j.MarkFailed(ctx, attempt.ID, phase, refs, cause)
		return err
	})
}

func (e *Engine) recordSubmission(ctx context.Context, err error) {
	if e.opts.Metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{telemetry.OutcomeAttr(err)}
	if err != nil {
		attrs = append(attrs, telemetry.ErrorKindAttr(string(domain.KindOf(err))))
	}
	e.opts.Metrics.Submissions.Inc(ctx, attrs...)
}

func uploadedOnly(refs []string) []string {
	out := []string{}
	for _, r := range refs {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

