package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/pkg/api"
	"go.uber.org/zap"
)

// FrameWriter is the outbound side of a live stream. Each call must reach
// the caller before it returns.
type FrameWriter interface {
	WriteFrame(event string, data []byte) error
	WriteComment(text string) error
}

// Bridge copies a backend event stream to a caller, one frame per event.
type Bridge struct {
	logger    *zap.Logger
	keepAlive time.Duration
}

// New returns a bridge that sends a comment frame every keepAlive while the
// backend is quiet. Zero disables keep-alives.
func New(logger *zap.Logger, keepAlive time.Duration) *Bridge {
	return &Bridge{logger: logger, keepAlive: keepAlive}
}

// Forward pulls from src until it ends, fails, or ctx is done. src is always
// closed before Forward returns, which abandons the backend call when the
// caller went away first. A source error ends the stream with one error frame.
func (b *Bridge) Forward(ctx context.Context, src llm.EventStream, w FrameWriter) error {
	defer func() {
		if err := src.Close(); err != nil {
			b.logger.Debug("Closing backend stream", zap.Error(err))
		}
	}()

	out := &lockedWriter{w: w}
	stop := b.startKeepAlive(out)
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		event, err := src.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if werr := out.WriteFrame(api.EventError, ErrorFrame(err)); werr != nil {
				b.logger.Debug("Failed to write error frame", zap.Error(werr))
			}
			return err
		}

		payload, err := event.Payload()
		if err != nil {
			return err
		}
		if err := out.WriteFrame(event.Type, payload); err != nil {
			return err
		}
	}
}

func (b *Bridge) startKeepAlive(w *lockedWriter) func() {
	if b.keepAlive <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(b.keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := w.WriteComment("keep-alive"); err != nil {
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// ErrorFrame is the payload of a terminal error event. Backend error
// payloads pass through as sent.
func ErrorFrame(err error) []byte {
	var ce *llm.ContentError
	if errors.As(err, &ce) {
		return ce.Body()
	}

	msg := llm.PublicMessage(err)
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}

	b, _ := json.Marshal(api.ErrorPayload{
		Type:  "error",
		Error: api.ErrorDetail{Type: "api_error", Message: msg},
	})
	return b
}

// lockedWriter serializes event frames with keep-alive comments.
type lockedWriter struct {
	mu sync.Mutex
	w  FrameWriter
}

func (l *lockedWriter) WriteFrame(event string, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.WriteFrame(event, data)
}

func (l *lockedWriter) WriteComment(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.WriteComment(text)
}
