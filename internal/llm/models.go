package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Model is the gateway's canonical model identifier, independent of any
// backend's naming.
type Model string

const (
	Claude3Opus    Model = "claude-3-opus-20240229"
	Claude3Sonnet  Model = "claude-3-sonnet-20240229"
	Claude3Haiku   Model = "claude-3-haiku-20240307"
	Claude35Sonnet Model = "claude-3-5-sonnet-20240620"
)

var ErrUnknownModel = errors.New("unknown model")

// ErrUnsupportedModel means the model table has a hole. It is a programming
// error caught by the table tests, never a caller mistake.
var ErrUnsupportedModel = errors.New("model not mapped for provider")

func (m Model) String() string { return string(m) }

// Models returns every canonical model, in a stable order.
func Models() []Model {
	return []Model{Claude3Opus, Claude3Sonnet, Claude3Haiku, Claude35Sonnet}
}

var aliases = map[string]Model{
	"claude-3-opus":     Claude3Opus,
	"claude-3-sonnet":   Claude3Sonnet,
	"claude-3-haiku":    Claude3Haiku,
	"claude-3-5-sonnet": Claude35Sonnet,
}

// ParseModel resolves a caller supplied model string. Both the dated id and
// the unversioned alias are accepted.
func ParseModel(s string) (Model, error) {
	name := strings.TrimSpace(s)
	for _, m := range Models() {
		if string(m) == name {
			return m, nil
		}
	}
	if m, ok := aliases[name]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
}

// Mapping is one cell of the model table.
type Mapping struct {
	WireID    string
	MaxTokens int
}

// The ceilings are the backends' real output limits. Bedrock caps every model
// at 4096 while the direct API and Vertex let 3.5 Sonnet go to 8192.
var table = map[Model]map[Kind]Mapping{
	Claude3Opus: {
		Anthropic: {WireID: "claude-3-opus-20240229", MaxTokens: 4096},
		Bedrock:   {WireID: "anthropic.claude-3-opus-20240229-v1:0", MaxTokens: 4096},
		VertexAI:  {WireID: "claude-3-opus@20240229", MaxTokens: 4096},
	},
	Claude3Sonnet: {
		Anthropic: {WireID: "claude-3-sonnet-20240229", MaxTokens: 4096},
		Bedrock:   {WireID: "anthropic.claude-3-sonnet-20240229-v1:0", MaxTokens: 4096},
		VertexAI:  {WireID: "claude-3-sonnet@20240229", MaxTokens: 4096},
	},
	Claude3Haiku: {
		Anthropic: {WireID: "claude-3-haiku-20240307", MaxTokens: 4096},
		Bedrock:   {WireID: "anthropic.claude-3-haiku-20240307-v1:0", MaxTokens: 4096},
		VertexAI:  {WireID: "claude-3-haiku@20240307", MaxTokens: 4096},
	},
	Claude35Sonnet: {
		Anthropic: {WireID: "claude-3-5-sonnet-20240620", MaxTokens: 8192},
		Bedrock:   {WireID: "anthropic.claude-3-5-sonnet-20240620-v1:0", MaxTokens: 4096},
		VertexAI:  {WireID: "claude-3-5-sonnet@20240620", MaxTokens: 8192},
	},
}

// Lookup returns the table cell for (model, kind).
func Lookup(m Model, kind Kind) (Mapping, error) {
	entry, ok := table[m][kind]
	if !ok {
		return Mapping{}, fmt.Errorf("%w: %s on %s", ErrUnsupportedModel, m, kind)
	}
	return entry, nil
}

// MapModel returns the backend specific wire id for a canonical model.
func MapModel(m Model, kind Kind) (string, error) {
	entry, err := Lookup(m, kind)
	if err != nil {
		return "", err
	}
	return entry.WireID, nil
}

// Ceiling is the maximum output tokens the backend accepts for the model.
func Ceiling(m Model, kind Kind) (int, error) {
	entry, err := Lookup(m, kind)
	if err != nil {
		return 0, err
	}
	return entry.MaxTokens, nil
}

// ClampMaxTokens returns min(requested, ceiling).
func ClampMaxTokens(m Model, kind Kind, requested int) (int, error) {
	ceiling, err := Ceiling(m, kind)
	if err != nil {
		return 0, err
	}
	return min(requested, ceiling), nil
}
