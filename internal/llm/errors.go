package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nulzo/anthropic-gateway/internal/httpclient"
	"github.com/nulzo/anthropic-gateway/pkg/api"
)

// ContentError is a well formed error payload returned by the backend, as
// opposed to a transport failure. It is forwarded to the caller verbatim.
type ContentError struct {
	Status  int
	Payload api.ErrorPayload
	raw     []byte
}

// NewContentError builds a content error for backends that do not return an
// Anthropic shaped body, e.g. SDK exceptions.
func NewContentError(status int, errType, message string) *ContentError {
	return &ContentError{
		Status: status,
		Payload: api.ErrorPayload{
			Type:  "error",
			Error: api.ErrorDetail{Type: errType, Message: message},
		},
	}
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("backend error %d: %s: %s", e.Status, e.Payload.Error.Type, e.Payload.Error.Message)
}

// ClientStatus is the status the caller sees. Backend error payloads are
// always reported as client errors.
func (e *ContentError) ClientStatus() int {
	if e.Status >= 400 && e.Status < 500 {
		return e.Status
	}
	return http.StatusBadRequest
}

// Body returns the payload exactly as the backend sent it when available.
func (e *ContentError) Body() []byte {
	if len(e.raw) > 0 {
		return e.raw
	}
	b, _ := json.Marshal(e.Payload)
	return b
}

// ParseContentError reports whether body is an Anthropic error payload.
func ParseContentError(status int, body []byte) (*ContentError, bool) {
	var payload api.ErrorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}
	if payload.Type != "error" || payload.Error.Type == "" {
		return nil, false
	}
	return &ContentError{Status: status, Payload: payload, raw: body}, true
}

// FromEvent converts an in-stream error frame.
func FromEvent(event *api.StreamEvent) *ContentError {
	ce := &ContentError{Status: http.StatusBadRequest, Payload: api.ErrorPayload{Type: "error"}}
	if event.Error != nil {
		ce.Payload.Error = *event.Error
	}
	if raw, err := event.Payload(); err == nil {
		ce.raw = raw
	}
	return ce
}

// ClassifyUpstream turns a non-2xx response into a ContentError when the body
// is an error payload with a client status. Anything else stays an upstream
// failure.
func ClassifyUpstream(err error) error {
	var upstream *httpclient.UpstreamError
	if !errors.As(err, &upstream) {
		return err
	}
	if upstream.StatusCode < 400 || upstream.StatusCode >= 500 {
		return err
	}
	if ce, ok := ParseContentError(upstream.StatusCode, upstream.Body); ok {
		return ce
	}
	return err
}

// PublicMessage describes an upstream failure without the request URL, which
// carries backend details such as the Vertex project and region. The full
// error belongs in logs only.
func PublicMessage(err error) string {
	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		return fmt.Sprintf("upstream error: status %d", upstream.StatusCode)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "upstream request failed: " + PublicMessage(urlErr.Err)
	}
	return err.Error()
}
