package gateway

import (
	"context"
	"errors"

	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/internal/usage"
	"github.com/nulzo/anthropic-gateway/pkg/api"
	"go.uber.org/zap"
)

// Service defines the business logic for serving message requests.
type Service interface {
	Messages(ctx context.Context, req *api.MessagesRequest) (*api.MessagesResponse, error)
	StreamMessages(ctx context.Context, req *api.MessagesRequest) (llm.EventStream, error)
	Models() []api.Model
}

type service struct {
	logger   *zap.Logger
	provider llm.Provider
	tap      *usage.Tap
}

func NewService(logger *zap.Logger, provider llm.Provider, tap *usage.Tap) Service {
	return &service{
		logger:   logger,
		provider: provider,
		tap:      tap,
	}
}

func (s *service) Messages(ctx context.Context, req *api.MessagesRequest) (*api.MessagesResponse, error) {
	model, out, err := s.translate(req)
	if err != nil {
		return nil, err
	}
	out.Stream = false

	resp, err := s.provider.Send(ctx, out)
	if err != nil {
		return nil, s.upstream(model, err)
	}

	s.tap.Dispatch(usage.Report{
		Model:        model.String(),
		Provider:     s.provider.Kind().String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	})
	return resp, nil
}

func (s *service) StreamMessages(ctx context.Context, req *api.MessagesRequest) (llm.EventStream, error) {
	model, out, err := s.translate(req)
	if err != nil {
		return nil, err
	}
	out.Stream = true

	stream, err := s.provider.Stream(ctx, out)
	if err != nil {
		return nil, s.upstream(model, err)
	}

	return usage.TapStream(stream, usage.Report{
		Model:    model.String(),
		Provider: s.provider.Kind().String(),
	}, s.tap), nil
}

// Models lists every canonical model as the active backend serves it.
func (s *service) Models() []api.Model {
	kind := s.provider.Kind()
	models := make([]api.Model, 0, len(llm.Models()))
	for _, m := range llm.Models() {
		mapping, err := llm.Lookup(m, kind)
		if err != nil {
			continue
		}
		models = append(models, api.Model{
			ID:        m.String(),
			Object:    "model",
			Provider:  kind.String(),
			WireID:    mapping.WireID,
			MaxTokens: mapping.MaxTokens,
		})
	}
	return models
}

// translate rewrites a copy of req for the active backend: wire model id and
// clamped max tokens. The caller's request is left untouched.
func (s *service) translate(req *api.MessagesRequest) (llm.Model, *api.MessagesRequest, error) {
	model, err := llm.ParseModel(req.Model)
	if err != nil {
		return "", nil, api.BadRequestError(err.Error(), err)
	}

	kind := s.provider.Kind()
	wire, err := llm.MapModel(model, kind)
	if err != nil {
		return "", nil, api.InternalError("model mapping is incomplete", err)
	}
	maxTokens, err := llm.ClampMaxTokens(model, kind, req.MaxTokens)
	if err != nil {
		return "", nil, api.InternalError("model mapping is incomplete", err)
	}

	out := req.Clone()
	out.Model = wire
	out.MaxTokens = maxTokens

	s.logger.Debug("Routing request",
		zap.String("model", model.String()),
		zap.String("provider", kind.String()),
		zap.String("wire_model", wire),
		zap.Int("max_tokens", maxTokens),
		zap.Bool("stream", req.Stream),
	)
	return model, out, nil
}

// upstream keeps backend error payloads intact and wraps everything else as a
// gateway failure. The caller sees a URL-free message; the cause stays in Log.
func (s *service) upstream(model llm.Model, err error) error {
	var ce *llm.ContentError
	if errors.As(err, &ce) {
		s.logger.Info("Backend rejected request",
			zap.String("model", model.String()),
			zap.Int("status", ce.Status),
			zap.String("error_type", ce.Payload.Error.Type),
		)
		return ce
	}
	return api.UpstreamError(llm.PublicMessage(err), err)
}
