package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/af-corp/chat-gateway/internal/auth"
	"github.com/af-corp/chat-gateway/internal/config"
	"github.com/af-corp/chat-gateway/internal/filter"
	"github.com/af-corp/chat-gateway/internal/router"
	"github.com/af-corp/chat-gateway/internal/types"
	"github.com/open-policy-agent/opa/rego"
)

const decisionQuery = "[data.chatgw.policy.allow, data.chatgw.policy.reason]"

// PolicyInput is the document a policy sees as `input`.
type PolicyInput struct {
	User    PolicyUser `json:"user"`
	Request PolicyReq  `json:"request"`
	Time    PolicyTime `json:"time"`
}

type PolicyUser struct {
	ID   string `json:"id"`
	Org  string `json:"org"`
	Team string `json:"team"`
}

type PolicyReq struct {
	Model     string   `json:"model"`
	Provider  string   `json:"provider"`
	Tools     []string `json:"tools"`
	HasFiles  bool     `json:"has_files"`
	Continued bool     `json:"continued"`
}

type PolicyTime struct {
	Hour int    `json:"hour"`
	Day  string `json:"day"`
}

// Evaluator implements filter.Filter using OPA.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyFilterConfig
	now      func() time.Time
}

// NewEvaluator creates a policy evaluator. Call Load() to compile policies.
func NewEvaluator(cfg func() config.PolicyFilterConfig) *Evaluator {
	return &Evaluator{cfg: cfg, now: time.Now}
}

func (e *Evaluator) Name() string  { return "policy" }
func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Load compiles the Rego modules found in the configured bundle path.
func (e *Evaluator) Load() error {
	bundle := e.cfg().BundlePath
	modules, err := ReadModules(os.DirFS(bundle))
	if err != nil {
		return fmt.Errorf("read policy bundle %s: %w", bundle, err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego files found", "path", bundle)
		return nil
	}
	if err := e.LoadFromModules(modules); err != nil {
		return err
	}
	slog.Info("opa policies loaded", "modules", len(modules))
	return nil
}

// LoadFromModules compiles policies from module sources keyed by file name.
func (e *Evaluator) LoadFromModules(modules map[string]string) error {
	opts := []func(*rego.Rego){rego.Query(decisionQuery)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()
	return nil
}

// Evaluate runs the policy against the given input.
func (e *Evaluator) Evaluate(ctx context.Context, input PolicyInput) (bool, string, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		// fail closed
		return false, "no policies loaded", nil
	}

	timeout := e.cfg().EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Sprintf("policy evaluation error: %v", err), err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, "no policy result", nil
	}

	arr, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(arr) < 2 {
		return false, "unexpected policy result format", nil
	}
	allowed, _ := arr[0].(bool)
	reason, _ := arr[1].(string)
	return allowed, reason, nil
}

// InputFor builds the policy input for a chat turn. Organisation and team come
// from the API key when one authenticated the request.
func (e *Evaluator) InputFor(ctx context.Context, req *types.ChatTurnRequest) PolicyInput {
	user := PolicyUser{ID: req.User}
	if info, ok := auth.AuthFromContext(ctx); ok && info != nil {
		user.Org = info.OrganizationID
		user.Team = info.TeamID
		if user.ID == "" {
			user.ID = info.Identity()
		}
	}

	hasFiles := false
	for _, p := range req.Input.Parts() {
		if p.Type == types.PartInputFile || p.Type == types.PartInputImage {
			hasFiles = true
			break
		}
	}

	tools := req.Tools()
	if tools == nil {
		tools = []string{}
	}

	now := e.now().UTC()
	return PolicyInput{
		User: user,
		Request: PolicyReq{
			Model:     req.Model,
			Provider:  router.SelectProvider(req.Model),
			Tools:     tools,
			HasFiles:  hasFiles,
			Continued: req.ChatID != "" || len(req.Messages) > 0,
		},
		Time: PolicyTime{
			Hour: now.Hour(),
			Day:  now.Weekday().String(),
		},
	}
}

// ScanRequest implements filter.Filter.
func (e *Evaluator) ScanRequest(ctx context.Context, req *types.ChatTurnRequest) filter.Result {
	allowed, reason, err := e.Evaluate(ctx, e.InputFor(ctx, req))
	if err != nil {
		slog.Error("policy evaluation failed", "request_id", req.RequestID, "error", err)
		return filter.Result{
			Action:     filter.ActionBlock,
			FilterName: e.Name(),
			Message:    "Policy evaluation failed: " + err.Error(),
			Forbidden:  true,
		}
	}
	if !allowed {
		return filter.Result{
			Action:     filter.ActionBlock,
			FilterName: e.Name(),
			Message:    "Request denied by policy: " + reason,
			Forbidden:  true,
		}
	}
	return filter.Result{Action: filter.ActionPass, FilterName: e.Name()}
}
