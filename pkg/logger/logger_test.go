package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestWithContext_SubmissionID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromCore(core, "test")

	ctx := context.WithValue(context.Background(), SubmissionIDKey, "sub-1")
	l.InfoContext(ctx, "submitting")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "sub-1", fields["submission_id"])
	assert.Equal(t, "test", fields["service"])
}

func TestComponent_Named(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	FromCore(core, "test").Component("gateway").Info("hello", zap.Int("n", 1))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "gateway", logs.All()[0].LoggerName)
}

func TestCredential_Redacts(t *testing.T) {
	f := Credential("credential", "eyJhbGciOi.payload.sig1234")
	assert.Equal(t, "****1234", f.String)

	f = Credential("credential", "abc")
	assert.Equal(t, "****", f.String)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Info("discarded") })
}
