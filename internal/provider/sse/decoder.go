// Package sse decodes server-sent-event framing as used by LLM streaming
// APIs. The decoder is single-pass and forward-only: it reads one event at
// a time from the transport and never buffers ahead of the caller.
package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Event is one decoded server-sent event.
type Event struct {
	Type string // "event:" field, "" when absent
	Data string // concatenated "data:" lines, newline-joined
}

// Decoder reads SSE events from a stream.
type Decoder struct {
	scanner *bufio.Scanner
}

// maxLineBytes bounds a single SSE line; vendor deltas are small but tool
// call argument fragments can run long.
const maxLineBytes = 1024 * 1024

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &Decoder{scanner: scanner}
}

// Next returns the next event. It blocks on the underlying read and
// returns io.EOF when the transport ends cleanly.
func (d *Decoder) Next() (Event, error) {
	var eventType string
	var dataLines []string

	for d.scanner.Scan() {
		line := d.scanner.Text()

		// Blank line terminates the event.
		if line == "" {
			if len(dataLines) > 0 || eventType != "" {
				return Event{Type: eventType, Data: strings.Join(dataLines, "\n")}, nil
			}
			continue
		}

		// Comment lines (keep-alives) are skipped.
		if strings.HasPrefix(line, ":") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// Other fields (id:, retry:) are irrelevant to vendor streams.
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("sse read failed: %w", err)
	}

	// Flush a final unterminated event before EOF.
	if len(dataLines) > 0 || eventType != "" {
		return Event{Type: eventType, Data: strings.Join(dataLines, "\n")}, nil
	}

	return Event{}, io.EOF
}
