package v1

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/anthropic-gateway/internal/bridge"
	"github.com/nulzo/anthropic-gateway/internal/gateway"
	"github.com/nulzo/anthropic-gateway/internal/server/validator"
	"github.com/nulzo/anthropic-gateway/pkg/api"
	"go.uber.org/zap"
)

type MessagesHandler struct {
	service gateway.Service
	bridge  *bridge.Bridge
	logger  *zap.Logger
}

func NewMessagesHandler(service gateway.Service, b *bridge.Bridge, logger *zap.Logger) *MessagesHandler {
	return &MessagesHandler{
		service: service,
		bridge:  b,
		logger:  logger,
	}
}

func (h *MessagesHandler) CreateMessage(c *gin.Context) {
	var req api.MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	if req.Stream {
		h.handleStream(c, &req)
		return
	}

	resp, err := h.service.Messages(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *MessagesHandler) handleStream(c *gin.Context, req *api.MessagesRequest) {
	stream, err := h.service.StreamMessages(c.Request.Context(), req)
	if err != nil {
		// a backend that could not be reached still answers with a stream
		// that ends in an error frame
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadGateway {
			w := startStream(c)
			h.logger.Warn("Backend stream failed to open", zap.Error(apiErr.Log))
			_ = w.WriteFrame(api.EventError, bridge.ErrorFrame(apiErr))
			return
		}
		_ = c.Error(err)
		return
	}

	if err := h.bridge.Forward(c.Request.Context(), stream, startStream(c)); err != nil {
		h.logger.Info("Stream ended early", zap.String("model", req.Model), zap.Error(err))
	}
}

// startStream commits the response as an event stream.
func startStream(c *gin.Context) *sseWriter {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	return &sseWriter{w: c.Writer}
}

// sseWriter writes one tagged SSE frame per call and flushes it.
type sseWriter struct {
	w gin.ResponseWriter
}

func (s *sseWriter) WriteFrame(event string, data []byte) error {
	if err := sse.Encode(s.w, sse.Event{Event: event, Data: string(data)}); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

func (s *sseWriter) WriteComment(text string) error {
	if _, err := io.WriteString(s.w, fmt.Sprintf(": %s\n\n", text)); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}
