package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/af-corp/chat-gateway/internal/config"
	"github.com/af-corp/chat-gateway/internal/events"
	"github.com/af-corp/chat-gateway/internal/session"
	"github.com/af-corp/chat-gateway/internal/sse"
	"github.com/af-corp/chat-gateway/internal/telemetry"
	"github.com/af-corp/chat-gateway/internal/types"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// OpenAIAdapter drives the OpenAI Responses API.
type OpenAIAdapter struct {
	cfg      config.ProviderConfig
	client   *http.Client
	metrics  *telemetry.Metrics
	maxFrame int
}

func NewOpenAIAdapter(cfg config.ProviderConfig, client *http.Client, opts Options) *OpenAIAdapter {
	if cfg.APIKeyName == "" {
		cfg.APIKeyName = "OPENAI_API_KEY"
	}
	opts = opts.withDefaults()
	return &OpenAIAdapter{cfg: cfg, client: client, metrics: opts.Metrics, maxFrame: opts.MaxFrameBytes}
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) checkCredential() error {
	if a.cfg.APIKey == "" {
		return &CredentialError{Provider: a.Name(), Setting: a.cfg.APIKeyName}
	}
	return nil
}

func (a *OpenAIAdapter) Open(ctx context.Context, req *types.ChatTurnRequest) (Stream, error) {
	if err := a.checkCredential(); err != nil {
		return nil, err
	}
	logger := slog.With("request_id", req.RequestID, "provider", a.Name())

	input := req.Input
	var fileIDs []string
	if req.CodeInterpreter {
		var attachments []types.ContentPart
		input, attachments = splitAttachments(req.Input)
		fileIDs = a.uploadAll(ctx, logger, attachments)
	}

	body := responsesRequest{
		Model:              req.Model,
		Input:              input,
		Stream:             true,
		Instructions:       req.SystemPrompt,
		PreviousResponseID: req.ChatID,
	}
	if req.ReasoningEffort != "" {
		body.Reasoning = &reasoningConfig{Effort: req.ReasoningEffort}
	}
	if req.WebSearch {
		body.Tools = append(body.Tools, responsesTool{Type: oaiToolWebSearch})
	}
	if req.ImageGeneration {
		body.Tools = append(body.Tools, responsesTool{Type: oaiToolImageGeneration})
	}
	interpreterIdx := -1
	explicitContainer := req.CodeInterpreter && req.ContainerID != ""
	if req.CodeInterpreter {
		interpreterIdx = len(body.Tools)
		tool := responsesTool{Type: oaiToolCodeInterpreter}
		if explicitContainer {
			tool.Container = req.ContainerID
			a.attachToContainer(ctx, logger, req.ContainerID, fileIDs)
		} else {
			tool.Container = autoContainer{Type: "auto", FileIDs: fileIDs}
		}
		body.Tools = append(body.Tools, tool)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	resp, err := a.postJSON(ctx, "/responses", data)
	if explicitContainer && ctx.Err() == nil && (err != nil || !isSuccess(resp.StatusCode)) {
		// An explicit container is most often rejected because it expired.
		// Retry once on a fresh one seeded with the uploaded files.
		if err != nil {
			logger.Warn("openai request failed with explicit container, retrying with auto container",
				"container_id", req.ContainerID, "error", err)
		} else {
			upstreamErr := readUpstreamError(a.Name(), resp)
			logger.Warn("openai rejected explicit container, retrying with auto container",
				"container_id", req.ContainerID, "status", upstreamErr.StatusCode, "body", string(upstreamErr.Body))
		}
		a.metrics.RecordContainerRetry(a.Name())

		path := "tools." + strconv.Itoa(interpreterIdx) + ".container"
		retryData, serr := sjson.SetBytes(data, path, autoContainer{Type: "auto", FileIDs: fileIDs})
		if serr != nil {
			return nil, fmt.Errorf("rewrite container for retry: %w", serr)
		}
		resp, err = a.postJSON(ctx, "/responses", retryData)
	}
	if err != nil {
		return nil, fmt.Errorf("send openai request: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, readUpstreamError(a.Name(), resp)
	}

	return &openAIStream{
		body:     resp.Body,
		session:  session.New(),
		maxFrame: a.maxFrame,
		logger:   logger,
	}, nil
}

// splitAttachments removes input_file parts from a structured input. File
// formats the model cannot read inline are rejected by the upstream, so they
// travel through the code container instead.
func splitAttachments(in types.Input) (types.Input, []types.ContentPart) {
	if !in.IsStructured() {
		return in, nil
	}
	var files []types.ContentPart
	blocks := make([]types.ContentBlock, 0, len(in.Blocks))
	for _, b := range in.Blocks {
		kept := make([]types.ContentPart, 0, len(b.Content))
		for _, p := range b.Content {
			if p.Type == types.PartInputFile {
				files = append(files, p)
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == 0 && len(b.Content) > 0 {
			continue
		}
		blocks = append(blocks, types.ContentBlock{Role: b.Role, Content: kept})
	}
	if len(files) == 0 {
		return in, nil
	}
	if len(blocks) == 0 {
		return types.Input{}, files
	}
	return types.Input{Blocks: blocks}, files
}

// uploadAll uploads each attachment and returns the ids that succeeded.
// A failed upload drops that file from the turn.
func (a *OpenAIAdapter) uploadAll(ctx context.Context, logger *slog.Logger, files []types.ContentPart) []string {
	var ids []string
	for _, f := range files {
		id, err := a.upload(ctx, f)
		if err != nil {
			logger.Warn("file upload failed, continuing without it", "filename", f.Filename, "error", err)
			a.metrics.RecordUploadFailure(a.Name())
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (a *OpenAIAdapter) upload(ctx context.Context, f types.ContentPart) (string, error) {
	_, payload, ok := types.ParseDataURL(f.FileData)
	if !ok {
		return "", errors.New("file_data is not a base64 data URL")
	}
	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode file_data: %w", err)
	}
	name := f.Filename
	if name == "" {
		name = "upload"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", oaiUploadPurpose); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	httpReq, err := a.newRequest(ctx, http.MethodPost, "/files", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	if !isSuccess(resp.StatusCode) {
		ue := readUpstreamError(a.Name(), resp)
		return "", fmt.Errorf("%w: %s", ue, string(ue.Body))
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	id := gjson.GetBytes(respBody, "id").String()
	if id == "" {
		return "", errors.New("upload response has no file id")
	}
	return id, nil
}

// attachToContainer copies uploaded files into an explicit container. Failures
// are logged; a rejected container is replaced on retry anyway.
func (a *OpenAIAdapter) attachToContainer(ctx context.Context, logger *slog.Logger, containerID string, fileIDs []string) {
	for _, id := range fileIDs {
		data, _ := json.Marshal(containerFileRequest{FileID: id})
		resp, err := a.postJSON(ctx, "/containers/"+url.PathEscape(containerID)+"/files", data)
		if err != nil {
			logger.Warn("attach file to container failed", "container_id", containerID, "file_id", id, "error", err)
			continue
		}
		if !isSuccess(resp.StatusCode) {
			ue := readUpstreamError(a.Name(), resp)
			logger.Warn("attach file to container rejected", "container_id", containerID, "file_id", id, "status", ue.StatusCode)
			continue
		}
		resp.Body.Close()
	}
}

// Download fetches a file produced by the code interpreter. Files inside a
// container are read through the containers API, others through the files API.
func (a *OpenAIAdapter) Download(ctx context.Context, fileID, containerID string) (*http.Response, error) {
	if err := a.checkCredential(); err != nil {
		return nil, err
	}
	path := "/files/" + url.PathEscape(fileID) + "/content"
	if containerID != "" {
		path = "/containers/" + url.PathEscape(containerID) + "/files/" + url.PathEscape(fileID) + "/content"
	}
	httpReq, err := a.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("download openai file: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, readUpstreamError(a.Name(), resp)
	}
	return resp, nil
}

func (a *OpenAIAdapter) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	for k, v := range a.cfg.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}
	return httpReq, nil
}

func (a *OpenAIAdapter) postJSON(ctx context.Context, path string, data []byte) (*http.Response, error) {
	httpReq, err := a.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return a.client.Do(httpReq)
}

type openAIStream struct {
	body     io.ReadCloser
	session  *session.Session
	maxFrame int
	logger   *slog.Logger
}

func (s *openAIStream) Close() error { return s.body.Close() }

func (s *openAIStream) Run(ctx context.Context, sink Sink) error {
	defer s.Close()
	reader := sse.NewReader(s.body, s.maxFrame)
	for {
		payload, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read openai stream: %w", err)
		}
		if err := s.handle(ctx, sink, payload); err != nil {
			return err
		}
	}
}

func (s *openAIStream) handle(ctx context.Context, sink Sink, payload []byte) error {
	if !gjson.ValidBytes(payload) {
		s.logger.Debug("skipping malformed frame", "bytes", len(payload))
		return nil
	}
	root := gjson.ParseBytes(payload)

	switch typ := root.Get("type").String(); typ {
	case events.TypeTextDelta:
		return emitRaw(ctx, sink, payload)

	case oaiEventWebSearching, oaiEventInterpreting, oaiEventImageGenerating:
		return emit(ctx, sink, events.Status(typ))

	case oaiEventCodeDelta:
		if delta := root.Get("delta").String(); delta != "" {
			return emit(ctx, sink, events.CodeDelta(delta))
		}

	case oaiEventPartialImage:
		if b64 := root.Get("partial_image_b64").String(); b64 != "" {
			return emit(ctx, sink, events.ImagePartial(b64))
		}

	case oaiEventInterpreterDone:
		return s.emitCallFiles(ctx, sink, root.Get("code_interpreter_call"))

	case oaiEventResponseCompleted:
		return s.complete(ctx, sink, root.Get("response"))

	case oaiEventResponseFailed, oaiEventError:
		msg := root.Get("response.error.message").String()
		if msg == "" {
			msg = root.Get("message").String()
		}
		s.logger.Warn("openai reported a failed response", "type", typ, "message", msg)
	}
	return nil
}

// emitCallFiles surfaces the files listed by a code interpreter call and
// records its container.
func (s *openAIStream) emitCallFiles(ctx context.Context, sink Sink, call gjson.Result) error {
	if !call.Exists() {
		return nil
	}
	cid := call.Get("container_id").String()
	s.session.ObserveContainer(cid)

	for _, out := range call.Get("outputs").Array() {
		if out.Get("type").String() != oaiOutputFiles {
			continue
		}
		for _, f := range out.Get("files").Array() {
			err := s.emitOutputFile(ctx, sink,
				f.Get("file_id").String(), f.Get("filename").String(), f.Get("mime_type").String(), cid)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *openAIStream) emitOutputFile(ctx context.Context, sink Sink, fileID, filename, mimeType, containerID string) error {
	if fileID == "" || !s.session.ShouldEmit(fileID) {
		return nil
	}
	if containerID == "" {
		containerID = s.session.ContainerID()
	}
	return emit(ctx, sink, events.OutputFile(fileID, filename, mimeType, containerID))
}

// complete handles response.completed: final images, files and citations in
// output order, then the single completion event.
func (s *openAIStream) complete(ctx context.Context, sink Sink, resp gjson.Result) error {
	id := resp.Get("id").String()
	if id == "" {
		return nil
	}

	for _, item := range resp.Get("output").Array() {
		switch item.Get("type").String() {
		case oaiItemImageGeneration:
			if result := item.Get("result").String(); result != "" {
				if err := emit(ctx, sink, events.ImageComplete(result)); err != nil {
					return err
				}
			}
		case oaiItemCodeInterpreter:
			if err := s.emitCallFiles(ctx, sink, item); err != nil {
				return err
			}
		case oaiItemMessage:
			for _, content := range item.Get("content").Array() {
				for _, ann := range content.Get("annotations").Array() {
					if ann.Get("type").String() != oaiAnnotationFile {
						continue
					}
					err := s.emitOutputFile(ctx, sink,
						ann.Get("file_id").String(), ann.Get("filename").String(),
						ann.Get("mime_type").String(), ann.Get("container_id").String())
					if err != nil {
						return err
					}
				}
			}
		}
	}

	return emit(ctx, sink, events.Completion(id, s.session.ContainerID()))
}
