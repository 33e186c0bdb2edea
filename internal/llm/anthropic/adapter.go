package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulzo/anthropic-gateway/internal/config"
	"github.com/nulzo/anthropic-gateway/internal/httpclient"
	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/pkg/api"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultVersion = "2023-06-01"

	// 3.5 Sonnet only accepts more than 4096 output tokens behind this beta
	extendedOutputBeta = "max-tokens-3-5-sonnet-2024-07-15"
	standardCeiling    = 4096
)

func init() {
	llm.Register(llm.Anthropic, NewAdapter)
}

type Adapter struct {
	apiKey  string
	baseURL string
	version string
	client  httpclient.HTTPClient
}

func NewAdapter(_ context.Context, cfg config.ProviderConfig, client httpclient.HTTPClient) (llm.Provider, error) {
	if cfg.Anthropic.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}

	a := &Adapter{
		apiKey:  cfg.Anthropic.APIKey,
		baseURL: strings.TrimRight(cfg.Anthropic.BaseURL, "/"),
		version: cfg.Anthropic.Version,
		client:  client,
	}
	if a.baseURL == "" {
		a.baseURL = defaultBaseURL
	}
	if a.version == "" {
		a.version = defaultVersion
	}
	return a, nil
}

func (a *Adapter) Name() string   { return "anthropic" }
func (a *Adapter) Kind() llm.Kind { return llm.Anthropic }

func (a *Adapter) Send(ctx context.Context, req *api.MessagesRequest) (*api.MessagesResponse, error) {
	body := req.Clone()
	body.Stream = false

	var resp api.MessagesResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.url(), a.headers(body), body, &resp); err != nil {
		return nil, llm.ClassifyUpstream(err)
	}
	return &resp, nil
}

func (a *Adapter) Stream(ctx context.Context, req *api.MessagesRequest) (llm.EventStream, error) {
	body := req.Clone()
	body.Stream = true

	ctx, cancel := context.WithCancel(ctx)
	rc, err := httpclient.OpenStream(ctx, a.client, http.MethodPost, a.url(), a.headers(body), body)
	if err != nil {
		cancel()
		return nil, llm.ClassifyUpstream(err)
	}
	return llm.NewSSEStream(rc, cancel), nil
}

func (a *Adapter) url() string {
	return a.baseURL + "/v1/messages"
}

func (a *Adapter) headers(req *api.MessagesRequest) map[string]string {
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": a.version,
	}
	if req.MaxTokens > standardCeiling && strings.HasPrefix(req.Model, string(llm.Claude35Sonnet)) {
		headers["anthropic-beta"] = extendedOutputBeta
	}
	return headers
}
