package vertex

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulzo/anthropic-gateway/internal/config"
	"github.com/nulzo/anthropic-gateway/internal/httpclient"
	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/pkg/api"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	anthropicVersion = "vertex-2023-10-16"
	cloudPlatform    = "https://www.googleapis.com/auth/cloud-platform"
)

func init() {
	llm.Register(llm.VertexAI, NewAdapter)
}

type Adapter struct {
	project string
	region  string
	baseURL string
	tokens  oauth2.TokenSource
	client  httpclient.HTTPClient
}

// NewAdapter uses Application Default Credentials for bearer tokens.
func NewAdapter(ctx context.Context, cfg config.ProviderConfig, client httpclient.HTTPClient) (llm.Provider, error) {
	tokens, err := google.DefaultTokenSource(ctx, cloudPlatform)
	if err != nil {
		return nil, fmt.Errorf("failed to load google credentials: %w", err)
	}
	return New(cfg.Vertex, tokens, client)
}

// New builds an adapter around an explicit token source.
func New(cfg config.VertexConfig, tokens oauth2.TokenSource, client httpclient.HTTPClient) (*Adapter, error) {
	if cfg.Project == "" || cfg.Region == "" {
		return nil, fmt.Errorf("vertex project and region are required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Region)
	}

	return &Adapter{
		project: cfg.Project,
		region:  cfg.Region,
		baseURL: baseURL,
		tokens:  tokens,
		client:  client,
	}, nil
}

func (a *Adapter) Name() string   { return "vertex-ai" }
func (a *Adapter) Kind() llm.Kind { return llm.VertexAI }

// request is the rawPredict body. The model is addressed by the URL.
type request struct {
	AnthropicVersion string `json:"anthropic_version"`
	*api.MessagesRequest
}

func (a *Adapter) Send(ctx context.Context, req *api.MessagesRequest) (*api.MessagesResponse, error) {
	headers, err := a.headers()
	if err != nil {
		return nil, err
	}

	var resp api.MessagesResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.url(req.Model, "rawPredict"), headers, a.body(req, false), &resp); err != nil {
		return nil, llm.ClassifyUpstream(err)
	}
	return &resp, nil
}

func (a *Adapter) Stream(ctx context.Context, req *api.MessagesRequest) (llm.EventStream, error) {
	headers, err := a.headers()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	rc, err := httpclient.OpenStream(ctx, a.client, http.MethodPost, a.url(req.Model, "streamRawPredict"), headers, a.body(req, true))
	if err != nil {
		cancel()
		return nil, llm.ClassifyUpstream(err)
	}
	return llm.NewSSEStream(rc, cancel), nil
}

func (a *Adapter) url(model, method string) string {
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/anthropic/models/%s:%s",
		a.baseURL, a.project, a.region, model, method)
}

func (a *Adapter) body(req *api.MessagesRequest, stream bool) request {
	body := req.Clone()
	body.Model = ""
	body.Stream = stream
	return request{AnthropicVersion: anthropicVersion, MessagesRequest: body}
}

func (a *Adapter) headers() (map[string]string, error) {
	token, err := a.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}
	return map[string]string{"Authorization": "Bearer " + token.AccessToken}, nil
}
