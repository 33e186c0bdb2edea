package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/nulzo/anthropic-gateway/internal/config"
	"github.com/nulzo/anthropic-gateway/internal/httpclient"
	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/pkg/api"
)

const anthropicVersion = "bedrock-2023-05-31"

func init() {
	llm.Register(llm.Bedrock, NewAdapter)
}

// Runtime is the subset of the bedrockruntime client the adapter uses.
type Runtime interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

type Adapter struct {
	runtime Runtime
	open    func(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (eventReader, error)
}

// NewAdapter resolves region and credentials through the AWS SDK default
// chain. The shared HTTP client carries every call.
func NewAdapter(ctx context.Context, cfg config.ProviderConfig, client httpclient.HTTPClient) (llm.Provider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Bedrock.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Bedrock.Region))
	}
	opts = append(opts, awsconfig.WithHTTPClient(client))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		return nil, fmt.Errorf("no aws region configured")
	}

	return New(bedrockruntime.NewFromConfig(awsCfg)), nil
}

// New wraps an existing runtime client.
func New(runtime Runtime) *Adapter {
	a := &Adapter{runtime: runtime}
	a.open = func(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (eventReader, error) {
		out, err := a.runtime.InvokeModelWithResponseStream(ctx, in)
		if err != nil {
			return nil, err
		}
		return out.GetStream(), nil
	}
	return a
}

func (a *Adapter) Name() string   { return "bedrock" }
func (a *Adapter) Kind() llm.Kind { return llm.Bedrock }

// request is the InvokeModel body. The model travels as ModelId and Bedrock
// rejects the stream flag, so both are cleared from the embedded request.
type request struct {
	AnthropicVersion string `json:"anthropic_version"`
	*api.MessagesRequest
}

func encode(req *api.MessagesRequest) ([]byte, error) {
	body := req.Clone()
	body.Model = ""
	body.Stream = false
	b, err := json.Marshal(request{AnthropicVersion: anthropicVersion, MessagesRequest: body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return b, nil
}

func (a *Adapter) Send(ctx context.Context, req *api.MessagesRequest) (*api.MessagesResponse, error) {
	body, err := encode(req)
	if err != nil {
		return nil, err
	}

	out, err := a.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, classify(err)
	}

	var resp api.MessagesResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

func (a *Adapter) Stream(ctx context.Context, req *api.MessagesRequest) (llm.EventStream, error) {
	body, err := encode(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	reader, err := a.open(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(req.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		cancel()
		return nil, classify(err)
	}
	return newStream(reader, cancel), nil
}

type exception struct {
	status  int
	errType string
}

// Bedrock exceptions that mean the request itself was rejected.
var clientExceptions = map[string]exception{
	"ValidationException":           {http.StatusBadRequest, "invalid_request_error"},
	"AccessDeniedException":         {http.StatusForbidden, "permission_error"},
	"ResourceNotFoundException":     {http.StatusNotFound, "not_found_error"},
	"ThrottlingException":           {http.StatusTooManyRequests, "rate_limit_error"},
	"ServiceQuotaExceededException": {http.StatusTooManyRequests, "rate_limit_error"},
}

// classify maps SDK errors onto the gateway's taxonomy.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("bedrock request failed: %w", err)
	}
	if ex, ok := clientExceptions[apiErr.ErrorCode()]; ok {
		return llm.NewContentError(ex.status, ex.errType, apiErr.ErrorMessage())
	}
	return fmt.Errorf("bedrock %s: %w", apiErr.ErrorCode(), err)
}
