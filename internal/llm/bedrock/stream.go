package bedrock

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/pkg/api"
)

// eventReader is satisfied by *bedrockruntime.InvokeModelWithResponseStreamEventStream.
type eventReader interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

// stream unwraps Bedrock chunk events. Each chunk carries one Anthropic
// stream event as JSON.
type stream struct {
	reader eventReader
	cancel context.CancelFunc

	err       error
	closeOnce sync.Once
}

func newStream(reader eventReader, cancel context.CancelFunc) *stream {
	return &stream{reader: reader, cancel: cancel}
}

func (s *stream) Recv() (*api.StreamEvent, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		ev, ok := <-s.reader.Events()
		if !ok {
			s.err = io.EOF
			if err := s.reader.Err(); err != nil {
				s.err = classify(err)
			}
			return nil, s.err
		}

		chunk, ok := ev.(*types.ResponseStreamMemberChunk)
		if !ok {
			// unknown union members are skipped
			continue
		}

		event, err := api.ParseStreamEvent(chunk.Value.Bytes)
		if err != nil {
			s.err = err
			return nil, err
		}

		if event.Type == api.EventError {
			s.err = llm.FromEvent(event)
			return nil, s.err
		}

		return event, nil
	}
}

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.reader.Close()
	})
	return err
}
