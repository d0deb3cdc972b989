package workflow

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/prohmpiriya/event-studio/internal/domain"
	"github.com/prohmpiriya/event-studio/internal/testserver"
	"github.com/prohmpiriya/event-studio/pkg/logger"
	"github.com/prohmpiriya/event-studio/pkg/telemetry"
)

func TestSubmit_SpanCarriesPhasesAndEventID(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	defer otel.SetTracerProvider(sdktrace.NewTracerProvider())
	_, err := telemetry.Init(context.Background(), &telemetry.Config{ServiceName: "test"})
	require.NoError(t, err)

	f := newFixture(t, domain.RoleOrganizer)
	e := f.engine(t, Options{Draft: launchParty("a.png")})
	toReview(t, e)

	result, err := e.Submit(context.Background())
	require.NoError(t, err)

	var submit sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "workflow.submit" {
			submit = s
		}
	}
	require.NotNil(t, submit)

	attrs := map[string]string{}
	for _, kv := range submit.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, result.EventID, attrs[telemetry.AttrEventID])
	assert.Equal(t, result.SubmissionID, attrs[telemetry.AttrSubmissionID])

	var events []string
	for _, ev := range submit.Events() {
		events = append(events, ev.Name)
	}
	assert.Equal(t, []string{"media resolved", "event created"}, events)
}

func TestSubmit_CreationFailureLogsError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture(t, domain.RoleOrganizer)
	f.srv.FailNext("POST /events", testserver.Failure{Status: http.StatusInternalServerError})

	e := f.engine(t, Options{Draft: launchParty("a.png"), Logger: logger.FromCore(core, "test")})
	toReview(t, e)

	_, err := e.Submit(context.Background())
	require.Error(t, err)

	entries := logs.FilterMessage("event creation failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, f.session.Identity().ID, fields["user_id"])
	assert.EqualValues(t, 1, fields["orphaned_media"])
	assert.NotEmpty(t, fields["submission_id"])
}

func TestCreateEvent_PayloadErrorsAreValidation(t *testing.T) {
	f := newFixture(t, domain.RoleOrganizer)
	e := f.engine(t, Options{})

	t.Run("bad schedule keeps field detail", func(t *testing.T) {
		d := launchParty()
		d.Time = "7pm"
		_, err := e.createEvent(context.Background(), d, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Contains(t, domain.FieldErrors(err), "time")
	})

	t.Run("reference count mismatch", func(t *testing.T) {
		_, err := e.createEvent(context.Background(), launchParty(), []string{"https://media.example.test/x.png"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	assert.Equal(t, 0, f.srv.Recorder().Count(http.MethodPost, "/events"))
}
