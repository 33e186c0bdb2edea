package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/internal/usage"
	"github.com/nulzo/anthropic-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockProvider implements llm.Provider for testing
type MockProvider struct {
	mock.Mock
	kind llm.Kind
}

func (m *MockProvider) Name() string   { return string(m.kind) }
func (m *MockProvider) Kind() llm.Kind { return m.kind }

func (m *MockProvider) Send(ctx context.Context, req *api.MessagesRequest) (*api.MessagesResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.MessagesResponse), args.Error(1)
}

func (m *MockProvider) Stream(ctx context.Context, req *api.MessagesRequest) (llm.EventStream, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(llm.EventStream), args.Error(1)
}

// recordingReporter collects reports.
type recordingReporter struct {
	mu      sync.Mutex
	reports []usage.Report
	err     error
}

func (r *recordingReporter) Report(_ context.Context, rep usage.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return r.err
}

type sliceStream struct {
	events []*api.StreamEvent
	pos    int
}

func (s *sliceStream) Recv() (*api.StreamEvent, error) {
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	s.pos++
	return s.events[s.pos-1], nil
}

func (s *sliceStream) Close() error { return nil }

func newService(kind llm.Kind) (*service, *MockProvider, *recordingReporter, *usage.Tap) {
	provider := &MockProvider{kind: kind}
	reporter := &recordingReporter{}
	tap := usage.NewTap(reporter, zap.NewNop(), time.Second)
	return NewService(zap.NewNop(), provider, tap).(*service), provider, reporter, tap
}

func request(model string, maxTokens int) *api.MessagesRequest {
	return &api.MessagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []api.Message{{Role: "user", Content: json.RawMessage(`"Hi"`)}},
	}
}

func drain(t *testing.T, tap *usage.Tap) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tap.Drain(ctx))
}

func TestMessages_TranslatesAndReports(t *testing.T) {
	svc, provider, reporter, tap := newService(llm.Bedrock)

	provider.On("Send", mock.Anything, mock.MatchedBy(func(r *api.MessagesRequest) bool {
		return r.Model == "anthropic.claude-3-5-sonnet-20240620-v1:0" && r.MaxTokens == 4096 && !r.Stream
	})).Return(&api.MessagesResponse{ID: "msg_1", Usage: api.Usage{InputTokens: 10, OutputTokens: 20}}, nil)

	in := request("claude-3-5-sonnet-20240620", 8000)
	resp, err := svc.Messages(context.Background(), in)
	drain(t, tap)

	require.NoError(t, err)
	assert.Equal(t, "msg_1", resp.ID)
	// caller's request is not rewritten
	assert.Equal(t, "claude-3-5-sonnet-20240620", in.Model)
	assert.Equal(t, 8000, in.MaxTokens)

	require.Len(t, reporter.reports, 1)
	assert.Equal(t, usage.Report{
		Model:        "claude-3-5-sonnet-20240620",
		Provider:     "bedrock",
		InputTokens:  10,
		OutputTokens: 20,
	}, reporter.reports[0])
	provider.AssertExpectations(t)
}

func TestMessages_AliasResolves(t *testing.T) {
	svc, provider, _, tap := newService(llm.VertexAI)
	provider.On("Send", mock.Anything, mock.MatchedBy(func(r *api.MessagesRequest) bool {
		return r.Model == "claude-3-haiku@20240307" && r.MaxTokens == 100
	})).Return(&api.MessagesResponse{}, nil)

	_, err := svc.Messages(context.Background(), request("claude-3-haiku", 100))
	drain(t, tap)

	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestMessages_UnknownModel(t *testing.T) {
	svc, provider, reporter, tap := newService(llm.Anthropic)

	_, err := svc.Messages(context.Background(), request("gpt-4", 100))
	drain(t, tap)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assert.Empty(t, reporter.reports)
}

func TestMessages_UpstreamFailure(t *testing.T) {
	svc, provider, reporter, tap := newService(llm.Anthropic)
	provider.On("Send", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: connection refused"))

	_, err := svc.Messages(context.Background(), request("claude-3-opus-20240229", 100))
	drain(t, tap)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "dial tcp: connection refused", apiErr.Message)
	assert.Empty(t, reporter.reports)
}

func TestMessages_ContentErrorPassesThrough(t *testing.T) {
	svc, provider, reporter, tap := newService(llm.Anthropic)
	ce := llm.NewContentError(http.StatusBadRequest, "invalid_request_error", "bad roles")
	provider.On("Send", mock.Anything, mock.Anything).Return(nil, ce)

	_, err := svc.Messages(context.Background(), request("claude-3-opus-20240229", 100))
	drain(t, tap)

	var got *llm.ContentError
	require.True(t, errors.As(err, &got))
	assert.Same(t, ce, got)
	assert.Empty(t, reporter.reports)
}

func TestStreamMessages_ReportsOnce(t *testing.T) {
	svc, provider, reporter, tap := newService(llm.Anthropic)

	var events []*api.StreamEvent
	for _, raw := range []string{
		`{"type":"message_start","message":{"id":"m","usage":{"input_tokens":4,"output_tokens":1}}}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":8}}`,
		`{"type":"message_stop"}`,
	} {
		ev, err := api.ParseStreamEvent([]byte(raw))
		require.NoError(t, err)
		events = append(events, ev)
	}

	provider.On("Stream", mock.Anything, mock.MatchedBy(func(r *api.MessagesRequest) bool {
		return r.Stream && r.Model == "claude-3-sonnet-20240229"
	})).Return(&sliceStream{events: events}, nil)

	stream, err := svc.StreamMessages(context.Background(), request("claude-3-sonnet-20240229", 100))
	require.NoError(t, err)
	for {
		if _, err := stream.Recv(); err != nil {
			break
		}
	}
	drain(t, tap)

	require.Len(t, reporter.reports, 1)
	assert.Equal(t, usage.Report{
		Model:        "claude-3-sonnet-20240229",
		Provider:     "anthropic",
		InputTokens:  4,
		OutputTokens: 8,
		Streamed:     true,
	}, reporter.reports[0])
}

func TestModels(t *testing.T) {
	svc, _, _, _ := newService(llm.VertexAI)

	models := svc.Models()

	require.Len(t, models, len(llm.Models()))
	for _, m := range models {
		assert.Equal(t, "vertex-ai", m.Provider)
		assert.Contains(t, m.WireID, "@")
	}
}
