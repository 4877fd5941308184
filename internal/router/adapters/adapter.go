package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/af-corp/chat-gateway/internal/events"
	"github.com/af-corp/chat-gateway/internal/sse"
	"github.com/af-corp/chat-gateway/internal/telemetry"
	"github.com/af-corp/chat-gateway/internal/types"
)

// Options carries settings shared by every adapter.
type Options struct {
	Metrics       *telemetry.Metrics
	MaxFrameBytes int
}

func (o Options) withDefaults() Options {
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = sse.DefaultMaxFrameSize
	}
	return o
}

// ErrMissingCredential is returned by Open when the provider has no API key.
// It is the only failure reported before the upstream is contacted.
var ErrMissingCredential = errors.New("provider credential is not configured")

// maxErrorBody caps how much of an upstream error body is buffered.
const maxErrorBody = 1 << 20

// ProviderAdapter drives one upstream streaming API and translates its events
// into the gateway's event vocabulary.
type ProviderAdapter interface {
	Name() string
	// Open prepares and sends the upstream request. A non-2xx answer is
	// returned as *UpstreamError without entering the stream.
	Open(ctx context.Context, req *types.ChatTurnRequest) (Stream, error)
}

// Stream is an open upstream response waiting to be transformed.
type Stream interface {
	// Run transforms upstream frames into events until the upstream ends,
	// ctx is cancelled or the sink fails. It closes the upstream body.
	Run(ctx context.Context, sink Sink) error
	Close() error
}

// Sink receives derived events in order.
type Sink interface {
	Send(ev events.Event) error
	// SendRaw forwards a JSON payload byte for byte.
	SendRaw(payload []byte) error
}

// UpstreamError is a non-success response from the provider, passed through
// to the caller unchanged.
type UpstreamError struct {
	Provider    string
	StatusCode  int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
}

// CredentialError names the missing setting so operators know what to fill in.
type CredentialError struct {
	Provider string
	Setting  string
}

func (e *CredentialError) Error() string {
	return e.Setting + " is not configured"
}

func (e *CredentialError) Unwrap() error { return ErrMissingCredential }

// readUpstreamError drains and closes a failed response.
func readUpstreamError(provider string, resp *http.Response) *UpstreamError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}
	return &UpstreamError{
		Provider:    provider,
		StatusCode:  resp.StatusCode,
		ContentType: ct,
		Body:        body,
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// emit sends ev unless the caller has gone away.
func emit(ctx context.Context, sink Sink, ev events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return sink.Send(ev)
}

func emitRaw(ctx context.Context, sink Sink, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return sink.SendRaw(payload)
}
