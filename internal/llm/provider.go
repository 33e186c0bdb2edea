package llm

import (
	"context"

	"github.com/nulzo/anthropic-gateway/pkg/api"
)

// Kind identifies a backend family.
type Kind string

const (
	Anthropic Kind = "anthropic"
	Bedrock   Kind = "bedrock"
	VertexAI  Kind = "vertex-ai"
)

func (k Kind) String() string { return string(k) }

// Kinds returns every supported backend, in a stable order.
func Kinds() []Kind {
	return []Kind{Anthropic, Bedrock, VertexAI}
}

// Provider is the single capability every backend adapter implements. The
// request it receives has already been rewritten to the backend's wire model
// and token ceiling.
type Provider interface {
	Name() string
	Kind() Kind

	// Send blocks until the backend returns a complete response.
	Send(ctx context.Context, req *api.MessagesRequest) (*api.MessagesResponse, error)

	// Stream returns as soon as the backend accepted the call. Events are
	// pulled from the returned stream one at a time.
	Stream(ctx context.Context, req *api.MessagesRequest) (EventStream, error)
}

// EventStream is a one-pass, pull driven sequence of backend events.
//
// Recv blocks until the next event arrives and returns io.EOF once the backend
// signalled completion. Any other error is terminal. Close abandons the
// upstream call; it is safe to call more than once and after io.EOF.
type EventStream interface {
	Recv() (*api.StreamEvent, error)
	Close() error
}
