package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/af-corp/chat-gateway/internal/auth"
	"github.com/af-corp/chat-gateway/internal/config"
	"github.com/af-corp/chat-gateway/internal/filter"
	"github.com/af-corp/chat-gateway/internal/httputil"
	"github.com/af-corp/chat-gateway/internal/router"
	"github.com/af-corp/chat-gateway/internal/router/adapters"
	"github.com/af-corp/chat-gateway/internal/telemetry"
	"github.com/af-corp/chat-gateway/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	fallbackModel   = "gpt-5-mini"
	excerptLength   = 100
	downloadMaxAge  = "private, max-age=3600"
	defaultDownload = "download"
)

// Downloader is implemented by adapters that can serve generated files.
type Downloader interface {
	Download(ctx context.Context, fileID, containerID string) (*http.Response, error)
}

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	registry    *router.Registry
	modelsCfg   func() *config.ModelsConfig
	cfg         func() *config.Config
	filterChain *filter.Chain
	metrics     *telemetry.Metrics
}

func NewHandler(registry *router.Registry, modelsCfg func() *config.ModelsConfig, cfg func() *config.Config, filterChain *filter.Chain, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		registry:    registry,
		modelsCfg:   modelsCfg,
		cfg:         cfg,
		filterChain: filterChain,
		metrics:     metrics,
	}
}

func requestID(w http.ResponseWriter) string {
	if id := w.Header().Get("X-Request-ID"); id != "" {
		return id
	}
	id := uuid.NewString()
	w.Header().Set("X-Request-ID", id)
	return id
}

// Chat handles POST /api/chat. Problems found before the upstream call are
// answered with a JSON error; once streaming starts everything is in-band.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	receivedAt := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req types.ChatTurnRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	if _, ok := types.ParseReasoningEffort(string(req.ReasoningEffort)); !ok {
		httputil.WriteBadRequestError(w, reqID, "Unsupported reasoning_effort: "+string(req.ReasoningEffort))
		return
	}

	authInfo, _ := auth.AuthFromContext(r.Context())
	req.RequestID = reqID
	req.User = authInfo.Identity()
	if req.Model == "" {
		req.Model = h.defaultModel()
	}

	if !authInfo.AllowsModel(req.Model) {
		httputil.WriteNotAllowedError(w, reqID, "Model not allowed for this key: "+req.Model)
		return
	}
	for _, tool := range req.Tools() {
		if !authInfo.AllowsTool(tool) {
			httputil.WriteNotAllowedError(w, reqID, "Tool not allowed for this key: "+tool)
			return
		}
	}

	_, inCatalog := h.modelsCfg().Find(req.Model)
	logTurn(&req, inCatalog)

	if h.filterChain != nil {
		rep := h.filterChain.Run(r.Context(), &req)
		if blocked := rep.Blocked; blocked != nil {
			slog.Warn("request blocked by filter",
				"request_id", reqID,
				"filter", blocked.FilterName,
				"detections", blocked.Detections,
				"score", blocked.Score,
				"user", req.User,
			)
			h.metrics.RecordFilterAction(blocked.FilterName, string(blocked.Action))
			if blocked.Forbidden {
				httputil.WriteForbiddenError(w, reqID, blocked.Message)
			} else {
				httputil.WriteContentBlockedError(w, reqID, blocked.Message)
			}
			return
		}
		for _, fr := range rep.Flagged() {
			slog.Info("request flagged by filter", "request_id", reqID, "filter", fr.FilterName, "score", fr.Score, "reason", fr.Message)
			h.metrics.RecordFilterAction(fr.FilterName, string(fr.Action))
		}
	}

	adapter, err := router.ResolveRoute(h.registry, req.Model)
	if err != nil {
		slog.Error("no provider for model", "request_id", reqID, "model", req.Model, "error", err)
		httputil.WriteServiceUnavailableError(w, reqID, "No provider available: "+err.Error())
		return
	}

	stream, err := adapter.Open(r.Context(), &req)
	if err != nil {
		h.writeOpenError(w, reqID, adapter.Name(), req.Model, err)
		h.metrics.RecordTurn(telemetry.TurnLabels{
			Provider:   adapter.Name(),
			Model:      req.Model,
			Status:     "rejected",
			DurationMs: float64(time.Since(receivedAt).Milliseconds()),
		})
		return
	}

	h.serveStream(r.Context(), w, reqID, &req, adapter.Name(), stream, receivedAt)
}

func (h *Handler) defaultModel() string {
	if h.cfg != nil {
		if cfg := h.cfg(); cfg != nil && cfg.Chat.DefaultModel != "" {
			return cfg.Chat.DefaultModel
		}
	}
	return fallbackModel
}

// writeOpenError maps a failed upstream call onto the synchronous response.
func (h *Handler) writeOpenError(w http.ResponseWriter, reqID, provider, model string, err error) {
	var credErr *adapters.CredentialError
	var upErr *adapters.UpstreamError
	switch {
	case errors.As(err, &credErr):
		slog.Error("provider credential missing", "request_id", reqID, "provider", provider, "setting", credErr.Setting)
		httputil.WriteMissingCredentialError(w, reqID, credErr.Error())
	case errors.As(err, &upErr):
		slog.Warn("upstream rejected request",
			"request_id", reqID,
			"provider", provider,
			"model", model,
			"status", upErr.StatusCode,
		)
		httputil.WritePassthrough(w, reqID, upErr.StatusCode, upErr.ContentType, upErr.Body)
	default:
		slog.Error("provider request failed", "request_id", reqID, "provider", provider, "error", err)
		httputil.WriteServiceUnavailableError(w, reqID, "Provider request failed")
	}
}

func logTurn(req *types.ChatTurnRequest, inCatalog bool) {
	summary := req.Input.Summarize()
	excerpt := summary.Text
	if r := []rune(excerpt); len(r) > excerptLength {
		excerpt = string(r[:excerptLength])
	}
	slog.Info("chat turn received",
		"request_id", req.RequestID,
		"user", req.User,
		"model", req.Model,
		"in_catalog", inCatalog,
		"input", excerpt,
		"images", summary.Images,
		"files", summary.Files,
		"web_search", req.WebSearch,
		"image_generation", req.ImageGeneration,
		"code_interpreter", req.CodeInterpreter,
		"reasoning_effort", string(req.ReasoningEffort),
		"has_previous_response", req.ChatID != "",
		"message_count", len(req.Messages),
	)
}

// ListModels handles GET /v1/models.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	authInfo, _ := auth.AuthFromContext(r.Context())
	defaultModel := h.defaultModel()

	list := types.ModelList{Object: "list", Data: []types.ModelInfo{}}
	for _, def := range h.modelsCfg().Models {
		if !authInfo.AllowsModel(def.ID) {
			continue
		}
		provider := def.Provider
		if provider == "" {
			provider = router.SelectProvider(def.ID)
		}
		efforts := def.ReasoningEfforts
		if efforts == nil {
			efforts = []string{}
		}
		list.Data = append(list.Data, types.ModelInfo{
			ID:                      def.ID,
			Object:                  "model",
			Label:                   def.Label,
			Provider:                provider,
			SupportsImage:           def.SupportsImage,
			SupportsImageGen:        def.SupportsImageGen,
			SupportsCodeInterpreter: def.SupportsCodeInterpreter,
			SupportsWebSearch:       def.SupportsWebSearch,
			ReasoningEfforts:        efforts,
			Default:                 def.ID == defaultModel,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// DownloadFile handles GET /api/files/{fileID}. Generated files live in the
// OpenAI account, inside a container when container_id is given.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w)
	fileID := chi.URLParam(r, "fileID")
	if fileID == "" {
		httputil.WriteBadRequestError(w, reqID, "file id is required")
		return
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = defaultDownload
	}
	containerID := r.URL.Query().Get("container_id")

	adapter, ok := h.registry.Get(router.ProviderOpenAI)
	if !ok {
		httputil.WriteServiceUnavailableError(w, reqID, "No file provider configured")
		return
	}
	dl, ok := adapter.(Downloader)
	if !ok {
		httputil.WriteServiceUnavailableError(w, reqID, "Provider does not serve files")
		return
	}

	resp, err := dl.Download(r.Context(), fileID, containerID)
	if err != nil {
		h.writeOpenError(w, reqID, adapter.Name(), "", err)
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+url.PathEscape(filename)+`"`)
	w.Header().Set("Cache-Control", downloadMaxAge)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Warn("file download interrupted", "request_id", reqID, "file_id", fileID, "error", err)
	}
}
