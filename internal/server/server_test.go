package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/anthropic-gateway/internal/analytics"
	"github.com/nulzo/anthropic-gateway/internal/config"
	"github.com/nulzo/anthropic-gateway/internal/gateway"
	"github.com/nulzo/anthropic-gateway/internal/httpclient"
	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/internal/server"
	"github.com/nulzo/anthropic-gateway/internal/store/sqlite"
	"github.com/nulzo/anthropic-gateway/internal/usage"
	"github.com/nulzo/anthropic-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const token = "s3cret"

// MockProvider implements llm.Provider for testing
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string   { return "anthropic" }
func (m *MockProvider) Kind() llm.Kind { return llm.Anthropic }

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

type countingReporter struct {
	mu      sync.Mutex
	reports []usage.Report
	err     error
}

func (r *countingReporter) Report(_ context.Context, rep usage.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return r.err
}

func (r *countingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

type sliceStream struct {
	events []*api.StreamEvent
	pos    int
	closed int
}

func (s *sliceStream) Recv() (*api.StreamEvent, error) {
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	s.pos++
	return s.events[s.pos-1], nil
}

func (s *sliceStream) Close() error {
	s.closed++
	return nil
}

type env struct {
	handler  http.Handler
	provider *MockProvider
	reporter *countingReporter
	tap      *usage.Tap
}

func setup(t *testing.T, usageSvc analytics.Service) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:   config.ServerConfig{AuthToken: token},
		Provider: config.ProviderConfig{Kind: config.KindAnthropic},
	}
	provider := new(MockProvider)
	reporter := &countingReporter{}
	tap := usage.NewTap(reporter, zap.NewNop(), time.Second)
	svc := gateway.NewService(zap.NewNop(), provider, tap)

	return &env{
		handler:  server.New(cfg, zap.NewNop(), svc, usageSvc).Handler(),
		provider: provider,
		reporter: reporter,
		tap:      tap,
	}
}

func (e *env) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.tap.Drain(ctx))
	return w
}

var authed = map[string]string{"x-api-key": token}

const validBody = `{"model":"claude-3-haiku-20240307","max_tokens":100,"messages":[{"role":"user","content":"Hi"}]}`

func TestHealthz(t *testing.T) {
	e := setup(t, nil)

	w := e.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"missing", nil},
		{"wrong key", map[string]string{"x-api-key": "nope"}},
		{"prefix of key", map[string]string{"x-api-key": "s3cre"}},
		{"wrong scheme", map[string]string{"Authorization": "Basic " + token}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t, nil)

			w := e.do(t, http.MethodPost, "/v1/messages", validBody, tt.headers)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
			e.provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
			assert.Zero(t, e.reporter.count())
		})
	}
}

func TestAuth_Bearer(t *testing.T) {
	e := setup(t, nil)
	e.provider.On("Send", mock.Anything, mock.Anything).Return(&api.MessagesResponse{ID: "msg_1"}, nil)

	w := e.do(t, http.MethodPost, "/v1/messages", validBody, map[string]string{"Authorization": "Bearer " + token})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMessages_Success(t *testing.T) {
	e := setup(t, nil)
	e.provider.On("Send", mock.Anything, mock.MatchedBy(func(r *api.MessagesRequest) bool {
		return r.Model == "claude-3-haiku-20240307" && r.MaxTokens == 100
	})).Return(&api.MessagesResponse{
		ID:      "msg_1",
		Type:    "message",
		Role:    "assistant",
		Content: json.RawMessage(`[{"type":"text","text":"Hello"}]`),
		Usage:   api.Usage{InputTokens: 10, OutputTokens: 20},
	}, nil)

	w := e.do(t, http.MethodPost, "/v1/messages", validBody, authed)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.MessagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "msg_1", resp.ID)

	require.Equal(t, 1, e.reporter.count())
	assert.Equal(t, usage.Report{Model: "claude-3-haiku-20240307", Provider: "anthropic", InputTokens: 10, OutputTokens: 20}, e.reporter.reports[0])
}

func TestMessages_ReporterFailureDoesNotFailRequest(t *testing.T) {
	e := setup(t, nil)
	e.reporter.err = errors.New("store unavailable")
	e.provider.On("Send", mock.Anything, mock.Anything).
		Return(&api.MessagesResponse{ID: "msg_1", Usage: api.Usage{InputTokens: 10, OutputTokens: 20}}, nil)

	w := e.do(t, http.MethodPost, "/v1/messages", validBody, authed)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.reporter.count())
}

func TestMessages_UnknownModel(t *testing.T) {
	e := setup(t, nil)

	w := e.do(t, http.MethodPost, "/v1/messages", `{"model":"x","max_tokens":10,"messages":[{"role":"user","content":"Hi"}]}`, authed)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "unknown model")
	e.provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assert.Zero(t, e.reporter.count())
}

func TestMessages_InvalidBody(t *testing.T) {
	e := setup(t, nil)

	w := e.do(t, http.MethodPost, "/v1/messages", `{"model":"claude-3-haiku","messages":[]}`, authed)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid request body", body.Error)
	assert.Contains(t, body.Fields, "max_tokens")
}

func TestMessages_UpstreamError(t *testing.T) {
	e := setup(t, nil)
	e.provider.On("Send", mock.Anything, mock.Anything).
		Return(nil, &httpclient.UpstreamError{
			StatusCode: http.StatusServiceUnavailable,
			Body:       []byte("unavailable"),
			URL:        "https://us-east5-aiplatform.googleapis.com/v1/projects/secret-project/locations/us-east5/publishers/anthropic/models/claude-3-haiku@20240307:rawPredict",
		})

	w := e.do(t, http.MethodPost, "/v1/messages", validBody, authed)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var body api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "upstream error: status 503", body.Error)
	assert.NotContains(t, w.Body.String(), "secret-project")
	assert.Zero(t, e.reporter.count())
}

func TestMessages_BackendContentError(t *testing.T) {
	e := setup(t, nil)
	payload := `{"type":"error","error":{"type":"invalid_request_error","message":"messages: roles must alternate"}}`
	ce, ok := llm.ParseContentError(http.StatusBadRequest, []byte(payload))
	require.True(t, ok)
	e.provider.On("Send", mock.Anything, mock.Anything).Return(nil, ce)

	w := e.do(t, http.MethodPost, "/v1/messages", validBody, authed)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, payload, w.Body.String())
	assert.Zero(t, e.reporter.count())
}

func parseEvents(t *testing.T, raw string) []string {
	t.Helper()
	var names []string
	for _, block := range strings.Split(strings.TrimSpace(raw), "\n\n") {
		for _, line := range strings.Split(block, "\n") {
			if strings.HasPrefix(line, "event:") {
				names = append(names, strings.TrimSpace(strings.TrimPrefix(line, "event:")))
			}
		}
	}
	return names
}

func TestMessages_Stream(t *testing.T) {
	e := setup(t, nil)

	var events []*api.StreamEvent
	for _, raw := range []string{
		`{"type":"message_start","message":{"id":"msg_1","usage":{"input_tokens":10,"output_tokens":1}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":20}}`,
		`{"type":"message_stop"}`,
	} {
		ev, err := api.ParseStreamEvent([]byte(raw))
		require.NoError(t, err)
		events = append(events, ev)
	}
	src := &sliceStream{events: events}
	e.provider.On("Stream", mock.Anything, mock.MatchedBy(func(r *api.MessagesRequest) bool { return r.Stream })).
		Return(src, nil)

	w := e.do(t, http.MethodPost, "/v1/messages",
		`{"model":"claude-3-haiku-20240307","max_tokens":100,"stream":true,"messages":[{"role":"user","content":"Hi"}]}`, authed)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, []string{
		"message_start", "content_block_start", "content_block_delta",
		"content_block_stop", "message_delta", "message_stop",
	}, parseEvents(t, w.Body.String()))
	assert.Contains(t, w.Body.String(), `"text":"Hello"`)
	assert.Equal(t, 1, src.closed)

	require.Equal(t, 1, e.reporter.count())
	assert.Equal(t, usage.Report{Model: "claude-3-haiku-20240307", Provider: "anthropic", InputTokens: 10, OutputTokens: 20, Streamed: true}, e.reporter.reports[0])
}

func TestMessages_StreamOpenFailureEndsWithErrorFrame(t *testing.T) {
	e := setup(t, nil)
	e.provider.On("Stream", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: connection refused"))

	w := e.do(t, http.MethodPost, "/v1/messages",
		`{"model":"claude-3-haiku-20240307","max_tokens":100,"stream":true,"messages":[{"role":"user","content":"Hi"}]}`, authed)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"error"}, parseEvents(t, w.Body.String()))
	assert.Contains(t, w.Body.String(), "connection refused")
	assert.Zero(t, e.reporter.count())
}

func TestMessages_StreamOpenContentErrorIsPlainResponse(t *testing.T) {
	e := setup(t, nil)
	payload := `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`
	ce, ok := llm.ParseContentError(http.StatusTooManyRequests, []byte(payload))
	require.True(t, ok)
	e.provider.On("Stream", mock.Anything, mock.Anything).Return(nil, ce)

	w := e.do(t, http.MethodPost, "/v1/messages",
		`{"model":"claude-3-haiku-20240307","max_tokens":100,"stream":true,"messages":[{"role":"user","content":"Hi"}]}`, authed)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEqual(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, payload, w.Body.String())
	assert.Zero(t, e.reporter.count())
}

func TestMessages_StreamUnknownModelIsPlainError(t *testing.T) {
	e := setup(t, nil)

	w := e.do(t, http.MethodPost, "/v1/messages",
		`{"model":"x","max_tokens":100,"stream":true,"messages":[{"role":"user","content":"Hi"}]}`, authed)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	e.provider.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything)
}

func TestModels(t *testing.T) {
	e := setup(t, nil)

	w := e.do(t, http.MethodGet, "/v1/models", "", authed)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Object string      `json:"object"`
		Data   []api.Model `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "list", body.Object)
	assert.Len(t, body.Data, len(llm.Models()))
}

func TestUsage_NotConfigured(t *testing.T) {
	e := setup(t, nil)

	w := e.do(t, http.MethodGet, "/v1/usage", "", authed)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsage_FromStore(t *testing.T) {
	repo, err := sqlite.NewSQLiteStorage(":memory:", zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	ing := analytics.NewIngestor(zap.NewNop(), repo)
	ing.Start(context.Background())
	require.NoError(t, ing.Report(context.Background(), usage.Report{Model: "claude-3-haiku-20240307", InputTokens: 1, OutputTokens: 2}))
	ing.Stop()

	e := setup(t, analytics.NewService(repo))

	w := e.do(t, http.MethodGet, "/v1/usage?days=1", "", authed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_tokens":3`)

	w = e.do(t, http.MethodGet, "/v1/usage?days=abc", "", authed)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
