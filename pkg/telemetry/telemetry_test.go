package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	tel, err := Init(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, tel.Tracer())
	assert.NotNil(t, tel.Meter())

	cfg := &Config{Enabled: false, ServiceName: "test-service"}
	tel, err = Init(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, tel.Config())
	assert.NoError(t, Shutdown(ctx))
}

func TestInit_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tel, err := Init(ctx, &Config{
		Enabled:        true,
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		CollectorAddr:  "localhost:4317",
	})
	require.NoError(t, err)
	assert.NotNil(t, tel.tracerProvider)
	assert.NotNil(t, tel.meterProvider)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	_ = Shutdown(shutdownCtx)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(-1).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestStartSpan_EndSpanRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(sdktrace.NewTracerProvider())

	_, err := Init(context.Background(), &Config{ServiceName: "test"})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "gateway.login")
	assert.NotEmpty(t, GetTraceID(ctx))
	EndSpan(span, errors.New("unauthorized"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "gateway.login", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestMetrics_RecordsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	defer otel.SetMeterProvider(sdkmetric.NewMeterProvider())

	_, err := Init(context.Background(), &Config{ServiceName: "test"})
	require.NoError(t, err)

	m := NewMetrics()
	ctx := context.Background()
	m.Submissions.Inc(ctx, OutcomeAttr(nil))
	m.Submissions.Inc(ctx, OutcomeAttr(errors.New("boom")))
	m.GatewayDuration.Since(ctx, time.Now(), OperationAttr("login"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			found[md.Name] = true
			if md.Name == "workflow.submissions" {
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				assert.Len(t, sum.DataPoints, 2)
			}
		}
	}
	assert.True(t, found["workflow.submissions"])
	assert.True(t, found["gateway.request.duration"])
}

func TestNilInstrumentsAreNoops(t *testing.T) {
	var c *Counter
	var h *Histogram
	assert.NotPanics(t, func() {
		c.Inc(context.Background())
		h.Since(context.Background(), time.Now())
	})
}
