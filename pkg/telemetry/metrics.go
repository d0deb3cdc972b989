package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricOpts holds options for creating metrics
type MetricOpts struct {
	Name        string
	Description string
	Unit        string
}

// Counter wraps an OTel counter for easier use
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a new counter metric
func NewCounter(opts MetricOpts) (*Counter, error) {
	counter, err := GetMeter().Int64Counter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{counter: counter}, nil
}

// Add increments the counter by the given value
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by 1
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram wraps an OTel histogram for easier use
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogramWithBuckets creates a new histogram with custom bucket boundaries
func NewHistogramWithBuckets(opts MetricOpts, boundaries []float64) (*Histogram, error) {
	histogram, err := GetMeter().Float64Histogram(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
		metric.WithExplicitBucketBoundaries(boundaries...),
	)
	if err != nil {
		return nil, err
	}
	return &Histogram{histogram: histogram}, nil
}

// Record records a value in the histogram
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	if h == nil {
		return
	}
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// Since records the seconds elapsed since start
func (h *Histogram) Since(ctx context.Context, start time.Time, attrs ...attribute.KeyValue) {
	h.Record(ctx, time.Since(start).Seconds(), attrs...)
}

// Metrics groups the instruments recorded by the client
type Metrics struct {
	GatewayRequests   *Counter
	GatewayDuration   *Histogram
	MediaUploads      *Counter
	Submissions       *Counter
	SessionTransition *Counter
}

// NewMetrics registers the client instruments on the global meter.
// Instruments that fail to register are left nil and record nothing.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.GatewayRequests, _ = NewCounter(MetricOpts{
		Name:        "gateway.requests",
		Description: "Remote service calls by operation and outcome",
		Unit:        "{request}",
	})
	m.GatewayDuration, _ = NewHistogramWithBuckets(MetricOpts{
		Name:        "gateway.request.duration",
		Description: "Remote service call latency",
		Unit:        "s",
	}, []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30})
	m.MediaUploads, _ = NewCounter(MetricOpts{
		Name:        "workflow.media.uploads",
		Description: "Media uploads performed during submission",
		Unit:        "{upload}",
	})
	m.Submissions, _ = NewCounter(MetricOpts{
		Name:        "workflow.submissions",
		Description: "Event submissions by outcome",
		Unit:        "{submission}",
	})
	m.SessionTransition, _ = NewCounter(MetricOpts{
		Name:        "session.transitions",
		Description: "Session state transitions",
		Unit:        "{transition}",
	})
	return m
}

// Common attribute keys
const (
	AttrOperation    = "operation"
	AttrOutcome      = "outcome"
	AttrStatusCode   = "http.status_code"
	AttrErrorKind    = "error.kind"
	AttrEventID      = "event.id"
	AttrSubmissionID = "submission.id"
	AttrSessionFrom  = "session.from"
	AttrSessionTo    = "session.to"
)

// Outcome values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

func OperationAttr(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

func OutcomeAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String(AttrOutcome, OutcomeFailure)
	}
	return attribute.String(AttrOutcome, OutcomeSuccess)
}

func StatusCodeAttr(code int) attribute.KeyValue {
	return attribute.Int(AttrStatusCode, code)
}

func ErrorKindAttr(kind string) attribute.KeyValue {
	return attribute.String(AttrErrorKind, kind)
}

func EventIDAttr(eventID string) attribute.KeyValue {
	return attribute.String(AttrEventID, eventID)
}

func SubmissionIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrSubmissionID, id)
}

func SessionTransitionAttrs(from, to string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionFrom, from),
		attribute.String(AttrSessionTo, to),
	}
}
