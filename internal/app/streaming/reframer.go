package streaming

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// SSEEvent is one parsed server-sent event from an upstream stream.
type SSEEvent struct {
	Event string
	ID    string
	Data  []byte
}

// Reframer incrementally parses a text/event-stream body and re-frames it
// into plain data payloads. It tolerates events split across arbitrary
// read boundaries and both LF and CRLF line endings.
type Reframer struct {
	scanner *bufio.Scanner

	event    strings.Builder
	id       strings.Builder
	data     bytes.Buffer
	dataSeen bool
	dirty    bool
}

// NewReframer wraps an upstream event-stream body.
func NewReframer(r io.Reader) *Reframer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Reframer{scanner: scanner}
}

// Next returns the next complete event, or io.EOF when the stream ends.
// A partial event at EOF with no terminating blank line is still returned,
// matching how upstream providers close streams mid-flight.
func (r *Reframer) Next() (*SSEEvent, error) {
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		// Blank line dispatches the accumulated event.
		if line == "" {
			if ev := r.flush(); ev != nil {
				return ev, nil
			}
			continue
		}

		// Comment lines keep the connection alive, nothing else.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			// Each data line contributes its value plus a newline; the
			// final newline is trimmed at dispatch. Keying on buffer
			// length instead would drop empty data lines.
			r.data.WriteString(value)
			r.data.WriteByte('\n')
			r.dataSeen = true
			r.dirty = true
		case "event":
			r.event.Reset()
			r.event.WriteString(value)
			r.dirty = true
		case "id":
			r.id.Reset()
			r.id.WriteString(value)
			r.dirty = true
		default:
			// Unknown fields (retry, vendor extensions) are ignored.
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if ev := r.flush(); ev != nil {
		return ev, nil
	}
	return nil, io.EOF
}

func (r *Reframer) flush() *SSEEvent {
	if !r.dirty {
		return nil
	}

	data := append([]byte(nil), r.data.Bytes()...)
	if r.dataSeen {
		data = data[:len(data)-1]
	}

	ev := &SSEEvent{
		Event: r.event.String(),
		ID:    r.id.String(),
		Data:  data,
	}

	r.event.Reset()
	r.id.Reset()
	r.data.Reset()
	r.dataSeen = false
	r.dirty = false

	return ev
}

// CopyData strips SSE framing from the upstream stream and writes the raw
// data payloads to w as a plain byte stream. Events named "done" or with a
// "[DONE]" sentinel payload terminate the copy.
func CopyData(w io.Writer, upstream io.Reader) (int64, error) {
	reframer := NewReframer(upstream)

	var written int64
	for {
		ev, err := reframer.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}

		if ev.Event == "done" || bytes.Equal(ev.Data, []byte("[DONE]")) {
			return written, nil
		}
		if len(ev.Data) == 0 {
			continue
		}

		n, err := w.Write(ev.Data)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
}
