package api

import (
	"encoding/json"
	"fmt"
)

// MessagesResponse is the normalized non-streaming result.
type MessagesResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Role         string          `json:"role"`
	Model        string          `json:"model"`
	Content      json.RawMessage `json:"content"`
	StopReason   *string         `json:"stop_reason"`
	StopSequence *string         `json:"stop_sequence"`
	Usage        Usage           `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Stream event types, in the order a well-formed stream emits them.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventPing              = "ping"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventError             = "error"
)

// StreamEvent is one frame of a streaming response. Which fields are set
// depends on Type.
type StreamEvent struct {
	Type string `json:"type"`

	// message_start
	Message *MessagesResponse `json:"message,omitempty"`

	// content_block_*
	Index        *int            `json:"index,omitempty"`
	ContentBlock json.RawMessage `json:"content_block,omitempty"`

	// content_block_delta and message_delta
	Delta json.RawMessage `json:"delta,omitempty"`

	// message_delta carries the terminal output token count
	Usage *Usage `json:"usage,omitempty"`

	// error
	Error *ErrorDetail `json:"error,omitempty"`

	raw json.RawMessage
}

// ParseStreamEvent decodes one event payload and remembers the original bytes
// so the frame can be forwarded exactly as the backend sent it.
func ParseStreamEvent(data []byte) (*StreamEvent, error) {
	var event StreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode stream event: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("stream event without type: %s", truncate(data, 128))
	}
	event.raw = append(json.RawMessage(nil), data...)
	return &event, nil
}

// Payload returns the JSON payload for the outbound frame.
func (e *StreamEvent) Payload() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	return json.Marshal(e)
}

// ErrorPayload is the error shape Anthropic-compatible backends return, both
// as a response body and as a stream frame.
type ErrorPayload struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
