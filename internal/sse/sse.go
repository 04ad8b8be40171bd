// Package sse reads and writes Server-Sent Events streams.
package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Event is one dispatched SSE event.
type Event struct {
	Name string
	ID   string
	Data []byte
}

// Reader parses an SSE stream.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r. Lines may be up to 4MiB long; graph state snapshots can
// be large.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{scanner: s}
}

// Next returns the next event, or io.EOF when the stream ends.
func (r *Reader) Next() (Event, error) {
	var (
		ev      Event
		data    strings.Builder
		hasData bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if hasData || ev.Name != "" {
				ev.Data = []byte(data.String())
				return ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // comment / heartbeat
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "id":
			ev.ID = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("read sse stream: %w", err)
	}
	if hasData || ev.Name != "" {
		ev.Data = []byte(data.String())
		return ev, nil
	}
	return Event{}, io.EOF
}

// Writer emits SSE frames and flushes after each one.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewWriter checks that w can stream. Headers are sent on the first event.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &Writer{w: w, flusher: flusher}, nil
}

func (s *Writer) start() {
	if s.started {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

// Send writes a single event. Multi-line data is split across data fields.
func (s *Writer) Send(name string, data []byte) error {
	s.start()
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "event: %s\n", name)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(s.w, b.String()); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Started reports whether headers have been written.
func (s *Writer) Started() bool {
	return s.started
}
