// Package gateway is the single chokepoint for calls to the event service.
// It attaches the current credential, decodes the service envelope and
// normalizes every failure into a domain.Error. It never retries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/prohmpiriya/event-studio/internal/domain"
	"github.com/prohmpiriya/event-studio/pkg/logger"
	"github.com/prohmpiriya/event-studio/pkg/response"
	"github.com/prohmpiriya/event-studio/pkg/telemetry"
)

// Operation names, also used as span names and metric attributes
const (
	OpLogin              = "login"
	OpSignup             = "signup"
	OpCurrentIdentity    = "current_identity"
	OpUploadMedia        = "upload_media"
	OpUploadProfileImage = "upload_profile_image"
	OpCreateEvent        = "create_event"
	OpUpdateProfile      = "update_profile"
	OpChangePassword     = "change_password"
	OpListEvents         = "list_events"
	OpGetEvent           = "get_event"
)

// Config holds gateway settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// HTTPClient overrides the transport; Timeout is ignored when set
	HTTPClient *http.Client
	Logger     *logger.Logger
	Metrics    *telemetry.Metrics
}

// Client talks to the event service
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *logger.Logger
	metrics    *telemetry.Metrics

	mu         sync.RWMutex
	credential domain.Credential
}

// New creates a gateway client
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		log:        log.Component("gateway"),
		metrics:    cfg.Metrics,
	}
}

// SetCredential attaches cred to every subsequent call
func (c *Client) SetCredential(cred domain.Credential) {
	c.mu.Lock()
	c.credential = cred
	c.mu.Unlock()
}

// ClearCredential detaches the credential; later calls are anonymous
func (c *Client) ClearCredential() {
	c.mu.Lock()
	c.credential = ""
	c.mu.Unlock()
}

// Credential returns the attached credential, empty when none
func (c *Client) Credential() domain.Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential
}

// call describes one request
type call struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	out         interface{}
	// unauthorized is the kind reported for 401/403; ServiceError when empty
	unauthorized domain.ErrorKind
}

func jsonBody(v interface{}) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, domain.WrapError(domain.KindService, err, "encode request")
	}
	return bytes.NewReader(b), nil
}

// do executes the call and returns the decoded envelope
func (c *Client) do(ctx context.Context, cl call) (env *response.Envelope, err error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway."+cl.op)
	start := time.Now()
	status := 0
	defer func() {
		telemetry.EndSpan(span, err)
		attrs := []attribute.KeyValue{telemetry.OperationAttr(cl.op), telemetry.OutcomeAttr(err), telemetry.StatusCodeAttr(status)}
		if err != nil {
			attrs = append(attrs, telemetry.ErrorKindAttr(string(domain.KindOf(err))))
		}
		if c.metrics != nil {
			c.metrics.GatewayRequests.Inc(ctx, attrs...)
			c.metrics.GatewayDuration.Since(ctx, start, telemetry.OperationAttr(cl.op))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return nil, domain.WrapError(domain.KindService, err, "build request")
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if cred := c.Credential(); !cred.IsZero() {
		req.Header.Set("Authorization", "Bearer "+string(cred))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "request failed", zap.String("op", cl.op), zap.Error(err))
		return nil, domain.WrapError(domain.KindService, err, cl.op+" request failed")
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	env, decodeErr := response.Decode(resp.Body)

	if resp.StatusCode >= 300 {
		err = classify(cl, resp.StatusCode, env)
		c.log.DebugContext(ctx, "request rejected",
			zap.String("op", cl.op),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(domain.KindOf(err))),
		)
		return env, err
	}

	if decodeErr != nil {
		return nil, &domain.Error{Kind: domain.KindService, Message: cl.op + " returned an unreadable response", Status: status, Err: decodeErr}
	}
	if !env.Success {
		return env, &domain.Error{Kind: domain.KindService, Message: env.Message(cl.op + " failed"), Status: status}
	}
	if cl.out != nil {
		if err := env.Into(cl.out); err != nil {
			return env, &domain.Error{Kind: domain.KindService, Message: cl.op + " returned an unexpected payload", Status: status, Err: err}
		}
	}
	return env, nil
}

// classify maps a non-2xx status to the error taxonomy
func classify(cl call, status int, env *response.Envelope) error {
	fallback := http.StatusText(status)
	if fallback == "" {
		fallback = fmt.Sprintf("status %d", status)
	}

	kind := domain.KindService
	var fields map[string]string
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if cl.unauthorized != "" {
			kind = cl.unauthorized
		}
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		kind = domain.KindValidation
		fields = env.Details()
	}

	return &domain.Error{
		Kind:    kind,
		Message: env.Message(fallback),
		Fields:  fields,
		Status:  status,
	}
}
