package usage

import (
	"github.com/nulzo/anthropic-gateway/internal/llm"
	"github.com/nulzo/anthropic-gateway/pkg/api"
)

// tappedStream watches events as they are pulled and reports once the
// terminal usage arrives. Events are returned unchanged.
type tappedStream struct {
	llm.EventStream
	tap      *Tap
	report   Report
	reported bool
}

// TapStream wraps stream so that exactly one report is dispatched, on the
// first message_delta that carries usage. Input tokens come from
// message_start.
func TapStream(stream llm.EventStream, base Report, tap *Tap) llm.EventStream {
	base.Streamed = true
	return &tappedStream{EventStream: stream, tap: tap, report: base}
}

func (s *tappedStream) Recv() (*api.StreamEvent, error) {
	event, err := s.EventStream.Recv()
	if err != nil || s.reported {
		return event, err
	}

	switch event.Type {
	case api.EventMessageStart:
		if event.Message != nil {
			s.report.InputTokens = event.Message.Usage.InputTokens
		}
	case api.EventMessageDelta:
		if event.Usage != nil {
			s.report.OutputTokens = event.Usage.OutputTokens
			// some backends repeat input tokens on the delta
			if event.Usage.InputTokens > 0 {
				s.report.InputTokens = event.Usage.InputTokens
			}
			s.reported = true
			s.tap.Dispatch(s.report)
		}
	}
	return event, nil
}
