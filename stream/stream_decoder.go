// Package stream turns the backend's event-stream responses into typed events.
//
// Framing is server-sent events: each record is one or more "data: <json>" lines
// terminated by a blank line. A record is never parsed before its boundary arrives,
// so frames split across transport reads are reassembled first.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/meysamhadeli/codechat/backend/models"
	"github.com/pterm/pterm"
)

// EventKind identifies which of the four frame shapes an event came from.
type EventKind int

const (
	// EventContent carries a fragment of answer text.
	EventContent EventKind = iota
	// EventRelevantFiles carries the files the backend associates with the answer.
	EventRelevantFiles
	// EventFailure carries an application-level error reported inside the stream.
	EventFailure
	// EventCompleted marks an explicit end of the answer.
	EventCompleted
)

func (k EventKind) String() string {
	switch k {
	case EventContent:
		return "content"
	case EventRelevantFiles:
		return "relevant_files"
	case EventFailure:
		return "failure"
	case EventCompleted:
		return "completed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one decoded frame.
type Event struct {
	Kind  EventKind
	Text  string
	Files []string
}

// ProtocolError describes a frame that could not be decoded.
type ProtocolError struct {
	Payload string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed stream frame %q: %v", e.Payload, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// DecodeFrame maps one frame payload to an event. ok is false for shapes that
// carry nothing to apply (unknown keys, done=false).
func DecodeFrame(payload []byte) (event Event, ok bool, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Event{}, false, &ProtocolError{Payload: string(payload), Err: err}
	}

	if raw, found := fields["chunk"]; found {
		var chunk string
		if err := json.Unmarshal(raw, &chunk); err != nil {
			return Event{}, false, &ProtocolError{Payload: string(payload), Err: err}
		}
		return Event{Kind: EventContent, Text: chunk}, true, nil
	}

	if raw, found := fields["relevant_files"]; found {
		var files models.RelevantFiles
		if err := json.Unmarshal(raw, &files); err != nil {
			return Event{}, false, &ProtocolError{Payload: string(payload), Err: err}
		}
		return Event{Kind: EventRelevantFiles, Files: []string(files)}, true, nil
	}

	if raw, found := fields["error"]; found {
		var message string
		if err := json.Unmarshal(raw, &message); err != nil {
			return Event{}, false, &ProtocolError{Payload: string(payload), Err: err}
		}
		return Event{Kind: EventFailure, Text: message}, true, nil
	}

	if raw, found := fields["done"]; found {
		var done bool
		if err := json.Unmarshal(raw, &done); err != nil {
			return Event{}, false, &ProtocolError{Payload: string(payload), Err: err}
		}
		if done {
			return Event{Kind: EventCompleted}, true, nil
		}
	}

	return Event{}, false, nil
}

// Decoder reassembles records from arbitrarily split reads.
type Decoder struct {
	logger    *pterm.Logger
	line      []byte
	data      [][]byte
	malformed int
}

// NewDecoder creates a decoder that reports malformed frames to logger.
func NewDecoder(logger *pterm.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// Malformed returns how many frames were discarded so far.
func (d *Decoder) Malformed() int {
	return d.malformed
}

// Feed consumes the next transport read and returns the events of every record it completed.
func (d *Decoder) Feed(p []byte) []Event {
	var events []Event
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			d.line = append(d.line, p...)
			break
		}
		d.line = append(d.line, p[:i]...)
		p = p[i+1:]

		line := bytes.TrimSuffix(d.line, []byte{'\r'})
		if event, ok := d.processLine(line); ok {
			events = append(events, event)
		}
		d.line = d.line[:0]
	}
	return events
}

// Flush treats the end of the transport as a final record boundary.
func (d *Decoder) Flush() []Event {
	var events []Event
	if len(d.line) > 0 {
		line := bytes.TrimSuffix(d.line, []byte{'\r'})
		if event, ok := d.processLine(line); ok {
			events = append(events, event)
		}
		d.line = d.line[:0]
	}
	if event, ok := d.dispatch(); ok {
		events = append(events, event)
	}
	return events
}

func (d *Decoder) processLine(line []byte) (Event, bool) {
	if len(line) == 0 {
		return d.dispatch()
	}
	if line[0] == ':' {
		return Event{}, false
	}

	field, value := line, []byte(nil)
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		field, value = line[:i], line[i+1:]
		value = bytes.TrimPrefix(value, []byte{' '})
	}
	if string(field) == "data" {
		d.data = append(d.data, append([]byte(nil), value...))
	}
	return Event{}, false
}

func (d *Decoder) dispatch() (Event, bool) {
	if len(d.data) == 0 {
		return Event{}, false
	}
	payload := bytes.Join(d.data, []byte{'\n'})
	d.data = d.data[:0]

	event, ok, err := DecodeFrame(payload)
	if err != nil {
		d.malformed++
		d.logger.Warn("discarding malformed stream frame", d.logger.Args("error", err))
		return Event{}, false
	}
	return event, ok
}

// Result is one item delivered by Decode: either an event or a transport error.
type Result struct {
	Event Event
	Err   error
}

const readBufferSize = 4096

// Decode reads r on its own goroutine and delivers events in arrival order.
// A read failure is delivered as a final Result with Err set; the end of the
// transport closes the channel after any trailing record has been flushed.
// Cancelling ctx stops delivery; the caller still owns closing r.
func Decode(ctx context.Context, r io.Reader, logger *pterm.Logger) <-chan Result {
	results := make(chan Result)

	go func() {
		defer close(results)

		send := func(result Result) bool {
			select {
			case results <- result:
				return true
			case <-ctx.Done():
				return false
			}
		}

		decoder := NewDecoder(logger)
		buf := make([]byte, readBufferSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, event := range decoder.Feed(buf[:n]) {
					if !send(Result{Event: event}) {
						return
					}
				}
			}
			if err == io.EOF {
				for _, event := range decoder.Flush() {
					if !send(Result{Event: event}) {
						return
					}
				}
				return
			}
			if err != nil {
				send(Result{Err: fmt.Errorf("error reading stream: %w", err)})
				return
			}
		}
	}()

	return results
}
