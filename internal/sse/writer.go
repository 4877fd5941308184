package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/af-corp/chat-gateway/internal/events"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// Frame wraps a payload as a single SSE data frame.
func Frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	return append(out, '\n', '\n')
}

// Encode serializes an event into a frame.
func Encode(ev events.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return Frame(payload), nil
}

// Decode parses the first data frame in b back into an event.
func Decode(b []byte) (events.Event, error) {
	var ev events.Event
	payload, err := NewReader(bytes.NewReader(b), 0).Next()
	if err != nil {
		if err == io.EOF {
			return ev, fmt.Errorf("no data frame")
		}
		return ev, err
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}

// Writer emits frames to an HTTP client, flushing after each one.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// Start writes the streaming headers. It is called implicitly by the first Send.
func (sw *Writer) Start() {
	if sw.started {
		return
	}
	sw.started = true
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	sw.w.WriteHeader(http.StatusOK)
	sw.flusher.Flush()
}

func (sw *Writer) Send(ev events.Event) error {
	frame, err := Encode(ev)
	if err != nil {
		return err
	}
	return sw.write(frame)
}

// SendRaw forwards an already encoded JSON payload unchanged.
func (sw *Writer) SendRaw(payload []byte) error {
	return sw.write(Frame(payload))
}

// Done writes the terminal sentinel.
func (sw *Writer) Done() error {
	return sw.write([]byte("data: [DONE]\n\n"))
}

func (sw *Writer) write(frame []byte) error {
	sw.Start()
	if _, err := sw.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	sw.flusher.Flush()
	return nil
}
