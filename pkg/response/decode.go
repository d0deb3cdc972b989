package response

import (
	"encoding/json"
	"fmt"
	"io"
)

// Envelope is the client-side view of Response with the payload left raw
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
	Meta    *Meta           `json:"meta,omitempty"`
}

// Decode reads an envelope from r. Bodies that are not an envelope are
// reported as an error carrying a short excerpt of the body.
func Decode(r io.Reader) (*Envelope, error) {
	body, err := io.ReadAll(io.LimitReader(r, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w (body: %q)", err, excerpt(body))
	}
	return &env, nil
}

// Into unmarshals the envelope payload into out
func (e *Envelope) Into(out interface{}) error {
	if out == nil {
		return nil
	}
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Message returns the server-provided error message, or fallback when absent
func (e *Envelope) Message(fallback string) string {
	if e != nil && e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return fallback
}

// Details returns the field-level error details, if any
func (e *Envelope) Details() map[string]string {
	if e == nil || e.Error == nil {
		return nil
	}
	return e.Error.Details
}

func excerpt(body []byte) string {
	const max = 120
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
