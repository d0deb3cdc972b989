package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prohmpiriya/event-studio/pkg/logger"
)

// RecordedRequest is one request observed by RecordRequests
type RecordedRequest struct {
	ID            string
	Method        string
	Path          string
	Authorization string
	ContentType   string
	UserID        string
	Body          map[string]interface{} // JSON bodies only, sensitive fields masked
	Status        int
	At            time.Time
}

// RecorderConfig configures request recording
type RecorderConfig struct {
	SensitiveFields []string
	MaxBodySize     int
	Logger          *logger.Logger
}

// DefaultRecorderConfig masks password-like fields and caps bodies at 1MB
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		SensitiveFields: []string{"password", "token", "secret"},
		MaxBodySize:     1 << 20,
	}
}

// RequestRecorder keeps an ordered log of requests
type RequestRecorder struct {
	config   *RecorderConfig
	mu       sync.RWMutex
	requests []RecordedRequest
}

// NewRequestRecorder creates a recorder; nil config uses DefaultRecorderConfig
func NewRequestRecorder(config *RecorderConfig) *RequestRecorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	return &RequestRecorder{config: config}
}

// Requests returns a copy of everything recorded so far
func (r *RequestRecorder) Requests() []RecordedRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RecordedRequest, len(r.requests))
	copy(out, r.requests)
	return out
}

// Count returns how many requests matched method and path
func (r *RequestRecorder) Count(method, path string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, req := range r.requests {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

// Reset clears recorded requests
func (r *RequestRecorder) Reset() {
	r.mu.Lock()
	r.requests = nil
	r.mu.Unlock()
}

func (r *RequestRecorder) add(req RecordedRequest) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
}

// RecordRequests records every request passing through the engine.
// Register it before JWTMiddleware so rejected requests are recorded too.
func RecordRequests(rec *RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := RecordedRequest{
			ID:            uuid.New().String(),
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			Authorization: c.GetHeader("Authorization"),
			ContentType:   c.ContentType(),
			At:            time.Now(),
		}

		if c.ContentType() == "application/json" && c.Request.Body != nil {
			bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(rec.config.MaxBodySize)))
			if err == nil && len(bodyBytes) > 0 {
				c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				var body map[string]interface{}
				if json.Unmarshal(bodyBytes, &body) == nil {
					entry.Body = maskSensitiveFields(body, rec.config.SensitiveFields)
				}
			}
		}

		c.Next()

		entry.Status = c.Writer.Status()
		entry.UserID, _ = GetUserID(c)
		rec.add(entry)

		if rec.config.Logger != nil {
			rec.config.Logger.Debug("request",
				zap.String("method", entry.Method),
				zap.String("path", entry.Path),
				zap.Int("status", entry.Status),
				zap.Duration("latency", time.Since(entry.At)),
			)
		}
	}
}

// maskSensitiveFields masks sensitive data in a map
func maskSensitiveFields(data map[string]interface{}, sensitiveFields []string) map[string]interface{} {
	if data == nil {
		return nil
	}

	result := make(map[string]interface{}, len(data))
	for k, v := range data {
		lowKey := strings.ToLower(k)
		masked := false
		for _, sf := range sensitiveFields {
			if strings.Contains(lowKey, strings.ToLower(sf)) {
				result[k] = "[REDACTED]"
				masked = true
				break
			}
		}
		if !masked {
			if nested, ok := v.(map[string]interface{}); ok {
				result[k] = maskSensitiveFields(nested, sensitiveFields)
			} else {
				result[k] = v
			}
		}
	}
	return result
}
