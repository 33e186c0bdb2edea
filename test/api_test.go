package test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nulzo/anthropic-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run against a live gateway. Set GATEWAY_E2E_URL (for example
// http://localhost:3000) and GATEWAY_E2E_TOKEN to enable them.

const targetModel = "claude-3-haiku"

func target(t *testing.T) (string, string) {
	t.Helper()
	base := os.Getenv("GATEWAY_E2E_URL")
	if base == "" {
		t.Skip("GATEWAY_E2E_URL not set")
	}
	return strings.TrimRight(base, "/"), os.Getenv("GATEWAY_E2E_TOKEN")
}

// helper to make requests
func makeRequest(t *testing.T, method, url, token string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-api-key", token)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func messagesRequest(stream bool) api.MessagesRequest {
	return api.MessagesRequest{
		Model:     targetModel,
		MaxTokens: 32,
		Stream:    stream,
		Messages:  []api.Message{{Role: "user", Content: json.RawMessage(`"Say hi"`)}},
	}
}

func TestHealthCheck(t *testing.T) {
	base, _ := target(t)

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnauthorized(t *testing.T) {
	base, _ := target(t)

	resp := makeRequest(t, http.MethodPost, base+"/v1/messages", "wrong-token", messagesRequest(false))

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var errResp api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "unauthorized", errResp.Error)
}

func TestListModels(t *testing.T) {
	base, token := target(t)

	var result struct {
		Object string      `json:"object"`
		Data   []api.Model `json:"data"`
	}
	resp := makeRequest(t, http.MethodGet, base+"/v1/models", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.Equal(t, "list", result.Object)
	assert.NotEmpty(t, result.Data, "Models list should not be empty")
}

func TestMessages_Unary(t *testing.T) {
	base, token := target(t)

	resp := makeRequest(t, http.MethodPost, base+"/v1/messages", token, messagesRequest(false))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msg api.MessagesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Equal(t, "message", msg.Type)
	assert.NotEmpty(t, msg.Content)
	assert.Positive(t, msg.Usage.OutputTokens)
}

func TestMessages_Stream(t *testing.T) {
	base, token := target(t)

	resp := makeRequest(t, http.MethodPost, base+"/v1/messages", token, messagesRequest(true))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event:"); ok {
			events = append(events, strings.TrimSpace(name))
		}
	}
	require.NoError(t, scanner.Err())

	require.NotEmpty(t, events)
	assert.Equal(t, api.EventMessageStart, events[0])
	assert.Equal(t, api.EventMessageStop, events[len(events)-1])
}

func TestMessages_UnknownModel(t *testing.T) {
	base, token := target(t)

	req := messagesRequest(false)
	req.Model = "gpt-4"
	resp := makeRequest(t, http.MethodPost, base+"/v1/messages", token, req)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMessages_ValidationError(t *testing.T) {
	base, token := target(t)

	payload := map[string]interface{}{
		"messages": []map[string]interface{}{
			{"role": "bad_role", "content": "hello"},
		},
	}
	resp := makeRequest(t, http.MethodPost, base+"/v1/messages", token, payload)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.NotEmpty(t, errResp.Fields)
}
