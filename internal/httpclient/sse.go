package httpclient

import (
	"bufio"
	"bytes"
	"io"
)

// maxFrameSize bounds a single SSE line. Anthropic content deltas are small but
// tool input deltas can carry large JSON fragments.
const maxFrameSize = 1 << 20

// SSEEvent is one dispatched server-sent event.
type SSEEvent struct {
	Event string
	Data  []byte
}

// SSEDecoder reads server-sent events one at a time. It never reads further
// than the end of the event it returns.
type SSEDecoder struct {
	scanner *bufio.Scanner
}

func NewSSEDecoder(r io.Reader) *SSEDecoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxFrameSize)
	return &SSEDecoder{scanner: scanner}
}

// Next returns the next event that carries data. It returns io.EOF when the
// body ends cleanly.
func (d *SSEDecoder) Next() (*SSEEvent, error) {
	var (
		event string
		data  bytes.Buffer
		seen  bool
	)

	for d.scanner.Scan() {
		line := d.scanner.Bytes()

		// a blank line dispatches the pending event
		if len(line) == 0 {
			if seen {
				return &SSEEvent{Event: event, Data: data.Bytes()}, nil
			}
			event = ""
			continue
		}

		// comment, e.g. keep-alive
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))

		switch string(field) {
		case "event":
			event = string(value)
		case "data":
			if seen {
				data.WriteByte('\n')
			}
			data.Write(value)
			seen = true
		}
	}

	if err := d.scanner.Err(); err != nil {
		return nil, err
	}

	// body ended without the trailing blank line
	if seen {
		return &SSEEvent{Event: event, Data: data.Bytes()}, nil
	}
	return nil, io.EOF
}
