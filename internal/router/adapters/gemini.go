package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/af-corp/chat-gateway/internal/config"
	"github.com/af-corp/chat-gateway/internal/events"
	"github.com/af-corp/chat-gateway/internal/grounding"
	"github.com/af-corp/chat-gateway/internal/session"
	"github.com/af-corp/chat-gateway/internal/sse"
	"github.com/af-corp/chat-gateway/internal/types"
)

// GeminiAdapter drives the Gemini streamGenerateContent API.
type GeminiAdapter struct {
	cfg      config.ProviderConfig
	client   *http.Client
	maxFrame int
}

func NewGeminiAdapter(cfg config.ProviderConfig, client *http.Client, opts Options) *GeminiAdapter {
	if cfg.APIKeyName == "" {
		cfg.APIKeyName = "GOOGLE_API_KEY"
	}
	opts = opts.withDefaults()
	return &GeminiAdapter{cfg: cfg, client: client, maxFrame: opts.MaxFrameBytes}
}

func (a *GeminiAdapter) Name() string { return "gemini" }

func (a *GeminiAdapter) Open(ctx context.Context, req *types.ChatTurnRequest) (Stream, error) {
	if a.cfg.APIKey == "" {
		return nil, &CredentialError{Provider: a.Name(), Setting: a.cfg.APIKeyName}
	}
	logger := slog.With("request_id", req.RequestID, "provider", a.Name())

	data, err := json.Marshal(buildGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := a.cfg.BaseURL + "/models/" + url.PathEscape(req.Model) + ":streamGenerateContent?alt=sse"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.cfg.APIKey)
	for k, v := range a.cfg.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send gemini request: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, readUpstreamError(a.Name(), resp)
	}

	return &geminiStream{
		body:     resp.Body,
		session:  session.New(),
		maxFrame: a.maxFrame,
		logger:   logger,
	}, nil
}

// buildGeminiRequest maps a chat turn onto a stateless Gemini call: history
// first, then the current turn.
func buildGeminiRequest(req *types.ChatTurnRequest) geminiRequest {
	contents := make([]geminiContent, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		role := geminiRoleUser
		if m.Role == "assistant" {
			role = geminiRoleModel
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{textPart(m.Content)}})
	}

	current := currentTurnParts(req.Input)
	if len(current) > 0 {
		contents = append(contents, geminiContent{Role: geminiRoleUser, Parts: current})
	} else if len(contents) == 0 {
		// The upstream rejects an empty contents list.
		contents = append(contents, geminiContent{Role: geminiRoleUser, Parts: []geminiPart{textPart("")}})
	}

	body := geminiRequest{
		Contents:         contents,
		GenerationConfig: geminiGenerationConfig{Temperature: geminiTemperature},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiSystemInstruction{Parts: []geminiPart{textPart(req.SystemPrompt)}}
	}
	if req.WebSearch {
		body.Tools = append(body.Tools, geminiTool{GoogleSearch: &struct{}{}})
	}
	if req.CodeInterpreter {
		body.Tools = append(body.Tools, geminiTool{CodeExecution: &struct{}{}})
	}
	if req.ReasoningEffort != "" {
		body.GenerationConfig.ThinkingConfig = &geminiThinkingConfig{ThinkingLevel: req.ReasoningEffort}
	}
	return body
}

func currentTurnParts(in types.Input) []geminiPart {
	if !in.IsStructured() {
		if in.Text == "" {
			return nil
		}
		return []geminiPart{textPart(in.Text)}
	}

	var parts []geminiPart
	for _, p := range in.Parts() {
		switch p.Type {
		case types.PartInputText:
			if p.Text != "" {
				parts = append(parts, textPart(p.Text))
			}
		case types.PartInputImage, types.PartInputFile:
			src := p.ImageURL
			if p.Type == types.PartInputFile {
				src = p.FileData
			}
			if mime, payload, ok := types.ParseDataURL(src); ok {
				parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mime, Data: payload}})
			}
		}
	}
	return parts
}

type geminiStream struct {
	body     io.ReadCloser
	session  *session.Session
	maxFrame int
	logger   *slog.Logger
}

func (s *geminiStream) Close() error { return s.body.Close() }

func (s *geminiStream) Run(ctx context.Context, sink Sink) error {
	defer s.Close()
	reader := sse.NewReader(s.body, s.maxFrame)
	for {
		payload, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read gemini stream: %w", err)
		}
		if err := s.handle(ctx, sink, payload); err != nil {
			return err
		}
	}
	return s.finish(ctx, sink)
}

func (s *geminiStream) handle(ctx context.Context, sink Sink, payload []byte) error {
	var chunk geminiChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		s.logger.Debug("skipping malformed frame", "error", err)
		return nil
	}
	if len(chunk.Candidates) == 0 {
		return nil
	}
	cand := chunk.Candidates[0]

	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if err := s.handlePart(ctx, sink, part); err != nil {
				return err
			}
		}
	}
	s.session.SetGrounding(cand.GroundingMetadata)
	return nil
}

func (s *geminiStream) handlePart(ctx context.Context, sink Sink, part geminiPart) error {
	switch {
	case part.ExecutableCode != nil && part.ExecutableCode.Code != "":
		s.session.RecordCode(part.ExecutableCode.Code)
		return emit(ctx, sink, events.CodeDelta(part.ExecutableCode.Code))

	case part.CodeExecutionResult != nil:
		if out := part.CodeExecutionResult.Output; out != "" {
			s.session.RecordOutput(out)
			return emit(ctx, sink, events.CodeOutput(out))
		}

	case part.InlineData != nil:
		name := s.session.AddInlineFile(part.InlineData.MimeType, part.InlineData.Data)
		s.logger.Debug("collected inline file", "filename", name)

	case part.Text != nil && *part.Text != "":
		return emit(ctx, sink, events.TextDelta(s.session.ResolveReferences(*part.Text)))
	}
	return nil
}

// finish runs once the upstream has ended cleanly: collected files, then the
// sources block, then the completion marker.
func (s *geminiStream) finish(ctx context.Context, sink Sink) error {
	for _, f := range s.session.PendingFiles() {
		if err := emit(ctx, sink, events.GeminiFile(f.Filename, f.MimeType, f.Data)); err != nil {
			return err
		}
	}
	if sources := grounding.Render(s.session.Grounding()); sources != "" {
		if err := emit(ctx, sink, events.TextDelta(sources)); err != nil {
			return err
		}
	}
	// Gemini continuation is stateless, so the marker carries no chat id.
	return emit(ctx, sink, events.Completion("", ""))
}
