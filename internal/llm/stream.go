package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nulzo/anthropic-gateway/internal/httpclient"
	"github.com/nulzo/anthropic-gateway/pkg/api"
)

// sseStream adapts an Anthropic style SSE body to an EventStream. Each Recv
// reads exactly one event off the wire.
type sseStream struct {
	body    io.ReadCloser
	decoder *httpclient.SSEDecoder
	cancel  context.CancelFunc

	err       error
	closeOnce sync.Once
}

// NewSSEStream wraps an open event-stream body. cancel must abort the request
// the body belongs to.
func NewSSEStream(body io.ReadCloser, cancel context.CancelFunc) EventStream {
	return &sseStream{
		body:    body,
		decoder: httpclient.NewSSEDecoder(body),
		cancel:  cancel,
	}
}

func (s *sseStream) Recv() (*api.StreamEvent, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		frame, err := s.decoder.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				err = fmt.Errorf("failed to read event stream: %w", err)
			}
			s.err = err
			return nil, err
		}

		if len(frame.Data) == 0 {
			continue
		}

		event, err := api.ParseStreamEvent(frame.Data)
		if err != nil {
			s.err = err
			return nil, err
		}

		if event.Type == api.EventError {
			s.err = FromEvent(event)
			return nil, s.err
		}

		return event, nil
	}
}

func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.body.Close()
	})
	return err
}
