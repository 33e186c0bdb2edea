package api

import "encoding/json"

// MessagesRequest is the body of POST /v1/messages. It follows the Anthropic
// Messages API; fields the gateway never inspects are kept raw so they reach
// the backend untouched.
type MessagesRequest struct {
	// the canonical model, rewritten to the backend's wire id before dispatch.
	// Left empty for backends that take the model from the URL.
	Model string `json:"model,omitempty" binding:"required"`

	// message history, at least one turn
	Messages []Message `json:"messages" binding:"required,min=1,dive"`

	// clamped to the backend ceiling before dispatch
	MaxTokens int `json:"max_tokens" binding:"required,min=1"`

	// string or []ContentBlock
	System json.RawMessage `json:"system,omitempty"`

	Metadata      json.RawMessage `json:"metadata,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`

	// Enable streaming, defaults to `false` (empty)
	Stream bool `json:"stream,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`

	// Tool calling
	Tools      json.RawMessage `json:"tools,omitempty"`
	ToolChoice json.RawMessage `json:"tool_choice,omitempty"`
}

type Message struct {
	Role string `json:"role" binding:"required,oneof=user assistant"`
	// string or []ContentBlock
	Content json.RawMessage `json:"content" binding:"required"`
}

// Clone returns a shallow copy that can be rewritten without touching the
// caller's request. Raw fields are shared, they are never mutated.
func (r *MessagesRequest) Clone() *MessagesRequest {
	c := *r
	c.Messages = append([]Message(nil), r.Messages...)
	c.StopSequences = append([]string(nil), r.StopSequences...)
	return &c
}
