package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/af-corp/chat-gateway/internal/events"
	"github.com/af-corp/chat-gateway/internal/httputil"
	"github.com/af-corp/chat-gateway/internal/router/adapters"
	"github.com/af-corp/chat-gateway/internal/sse"
	"github.com/af-corp/chat-gateway/internal/telemetry"
	"github.com/af-corp/chat-gateway/internal/types"
)

// countingSink forwards events to the client and counts them per type.
type countingSink struct {
	w         *sse.Writer
	provider  string
	metrics   *telemetry.Metrics
	completed bool
	sent      int
}

func (s *countingSink) Send(ev events.Event) error {
	if err := s.w.Send(ev); err != nil {
		return err
	}
	s.record(ev.Type)
	return nil
}

// SendRaw is only used for upstream text deltas passed through verbatim.
func (s *countingSink) SendRaw(payload []byte) error {
	if err := s.w.SendRaw(payload); err != nil {
		return err
	}
	s.record(events.TypeTextDelta)
	return nil
}

func (s *countingSink) record(typ string) {
	s.sent++
	if typ == events.TypeCompletion {
		s.completed = true
	}
	s.metrics.RecordStreamEvent(s.provider, typ)
}

// serveStream pumps an opened upstream stream to the client. The [DONE]
// sentinel is written whatever happens to the stream.
func (h *Handler) serveStream(ctx context.Context, w http.ResponseWriter, reqID string, req *types.ChatTurnRequest, provider string, stream adapters.Stream, receivedAt time.Time) {
	defer stream.Close()

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.WriteInternalError(w, reqID, "Streaming not supported")
		return
	}
	writer.Start()

	sink := &countingSink{w: writer, provider: provider, metrics: h.metrics}
	runErr := stream.Run(ctx, sink)

	status := "ok"
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled) || ctx.Err() != nil:
		status = "canceled"
		slog.Info("client disconnected", "request_id", reqID, "provider", provider, "events", sink.sent)
	default:
		status = "error"
		slog.Error("stream failed", "request_id", reqID, "provider", provider, "model", req.Model, "error", runErr)
	}
	if status == "ok" && !sink.completed {
		status = "incomplete"
	}

	if err := writer.Done(); err != nil {
		slog.Debug("failed to write stream terminator", "request_id", reqID, "error", err)
	}

	duration := time.Since(receivedAt)
	h.metrics.RecordTurn(telemetry.TurnLabels{
		Provider:   provider,
		Model:      req.Model,
		Status:     status,
		DurationMs: float64(duration.Milliseconds()),
	})
	slog.Info("chat turn finished",
		"request_id", reqID,
		"provider", provider,
		"model", req.Model,
		"user", req.User,
		"status", status,
		"events", sink.sent,
		"duration_ms", duration.Milliseconds(),
	)
}
