package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "hello")
	defer os.Unsetenv("TEST_VAR")
	os.Setenv("TEST_EMPTY", "")
	defer os.Unsetenv("TEST_EMPTY")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"${TEST_VAR:default}", "hello"},
		{"${UNSET_VAR:fallback}", "fallback"},
		{"${TEST_EMPTY:fallback}", "fallback"},
		{"${UNSET_VAR}", ""},
		{"no vars here", "no vars here"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
	}

	for _, tt := range tests {
		got := expandEnvVars(tt.input)
		if got != tt.expected {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadFile_WithEnvVars(t *testing.T) {
	os.Setenv("TEST_PORT", "7777")
	defer os.Unsetenv("TEST_PORT")

	dir := t.TempDir()
	writeFile(t, dir, "gateway.yaml", `
server:
  host: "${TEST_HOST:127.0.0.1}"
  port: ${TEST_PORT}
`)

	cfg := DefaultConfig()
	if err := LoadFile(filepath.Join(dir, "gateway.yaml"), cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1 (default), got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777, got %d", cfg.Server.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Chat.DefaultModel != "gpt-5-mini" {
		t.Errorf("expected default model gpt-5-mini, got %s", cfg.Chat.DefaultModel)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("expected no write timeout for streaming, got %v", cfg.Server.WriteTimeout)
	}
}

func TestLoader_Load(t *testing.T) {
	os.Setenv("TEST_OPENAI_KEY", "sk-test")
	defer os.Unsetenv("TEST_OPENAI_KEY")

	dir := t.TempDir()
	writeFile(t, dir, "gateway.yaml", `
chat:
  default_model: gpt-5.1
ratelimit:
  enabled: true
  requests_per_minute: 5
`)
	writeFile(t, dir, "models.yaml", `
models:
  - id: gpt-5.1
    label: GPT-5.1
    provider: openai
    supports_code_interpreter: true
    reasoning_efforts: [low, medium, high]
  - id: gemini-2.5-flash
    label: Gemini 2.5 Flash
    provider: gemini
`)
	writeFile(t, dir, "providers.yaml", `
providers:
  openai:
    type: openai
    base_url: https://api.openai.com/v1
    api_key: ${TEST_OPENAI_KEY}
    timeout: 45s
  gemini:
    type: gemini
    base_url: https://generativelanguage.googleapis.com/v1beta
    api_key: ${TEST_GOOGLE_KEY:}
`)

	l := NewLoader(dir, testLogger())
	if err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := l.Config().Chat.DefaultModel; got != "gpt-5.1" {
		t.Errorf("expected default model gpt-5.1, got %s", got)
	}
	if !l.Config().RateLimit.Enabled || l.Config().RateLimit.RequestsPerMinute != 5 {
		t.Errorf("unexpected ratelimit config: %+v", l.Config().RateLimit)
	}

	def, ok := l.Models().Find("gpt-5.1")
	if !ok || !def.SupportsCodeInterpreter || len(def.ReasoningEfforts) != 3 {
		t.Errorf("unexpected model def: %+v (found=%v)", def, ok)
	}
	if _, ok := l.Models().Find("gpt-4"); ok {
		t.Error("unknown model should not be found")
	}

	openai := l.Providers().Providers["openai"]
	if openai.APIKey != "sk-test" || openai.Timeout != 45*time.Second {
		t.Errorf("unexpected openai provider: %+v", openai)
	}
	if l.Providers().Providers["gemini"].APIKey != "" {
		t.Error("gemini key should be empty when the env var is unset")
	}
}

func TestLoader_LoadRejectsUnknownProviderType(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "gateway.yaml", "{}\n")
	writeFile(t, dir, "models.yaml", "models: []\n")
	writeFile(t, dir, "providers.yaml", `
providers:
  claude:
    type: anthropic
    base_url: https://api.anthropic.com/v1
`)

	if err := NewLoader(dir, testLogger()).Load(); err == nil {
		t.Error("expected an error for an unsupported provider type")
	}
}

func TestLoader_MissingFile(t *testing.T) {
	if err := NewLoader(t.TempDir(), testLogger()).Load(); err == nil {
		t.Error("expected an error when gateway.yaml is missing")
	}
}

func writeValidDir(t *testing.T, dir, defaultModel string) {
	t.Helper()
	writeFile(t, dir, "gateway.yaml", "chat:\n  default_model: "+defaultModel+"\n")
	writeFile(t, dir, "models.yaml", "models:\n  - id: gpt-5-mini\n    provider: openai\n")
	writeFile(t, dir, "providers.yaml", "providers:\n  openai:\n    type: openai\n    base_url: https://api.openai.com/v1\n")
}

func TestLoader_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	writeValidDir(t, dir, "gpt-5-mini")

	l := NewLoader(dir, testLogger())
	if err := l.Load(); err != nil {
		t.Fatal(err)
	}
	fired := 0
	l.OnReload(func() { fired++ })

	writeFile(t, dir, "models.yaml", "models:\n  - id: gpt-5-mini\n    provider: anthropic\n")
	l.reload()
	if fired != 0 {
		t.Error("callbacks should not fire on a failed reload")
	}
	if l.Models().Models[0].Provider != "openai" {
		t.Error("failed reload replaced the catalog")
	}

	writeValidDir(t, dir, "gpt-5.2")
	l.reload()
	if fired != 1 {
		t.Errorf("expected one callback, got %d", fired)
	}
	if got := l.Config().Chat.DefaultModel; got != "gpt-5.2" {
		t.Errorf("expected reloaded default model, got %s", got)
	}
}

func TestLoader_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	writeValidDir(t, dir, "gpt-5-mini")

	l := NewLoader(dir, testLogger())
	if err := l.Load(); err != nil {
		t.Fatal(err)
	}
	reloaded := make(chan struct{}, 1)
	l.OnReload(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Watch(ctx); err != nil {
		t.Fatal(err)
	}

	writeValidDir(t, dir, "gpt-5.2")
	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}
	if got := l.Config().Chat.DefaultModel; got != "gpt-5.2" {
		t.Errorf("expected gpt-5.2 after reload, got %s", got)
	}
}

func TestValidate(t *testing.T) {
	providers := &ProvidersConfig{Providers: map[string]ProviderConfig{
		"openai": {Type: ProviderTypeOpenAI, BaseURL: "https://api.openai.com/v1"},
	}}

	tests := []struct {
		name string
		err  error
	}{
		{"defaults", DefaultConfig().Validate()},
		{"providers", providers.Validate()},
		{"catalog", (&ModelsConfig{Models: []ModelDef{{ID: "gpt-5-mini", Provider: "openai"}, {ID: "gemini-2.5-flash"}}}).Validate(providers)},
	}
	for _, tt := range tests {
		if tt.err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, tt.err)
		}
	}

	bad := DefaultConfig()
	bad.Chat.DefaultModel = ""
	bad.Filter.Injection = InjectionFilterConfig{Enabled: true, BlockThreshold: 0.5, FlagThreshold: 0.8}
	err := bad.Validate()
	if err == nil || !strings.Contains(err.Error(), "default_model") || !strings.Contains(err.Error(), "thresholds") {
		t.Errorf("expected both problems reported, got %v", err)
	}

	dup := &ModelsConfig{Models: []ModelDef{{ID: "a"}, {ID: "a"}, {Provider: "openai"}}}
	err = dup.Validate(providers)
	if err == nil || !strings.Contains(err.Error(), "duplicate") || !strings.Contains(err.Error(), "id is required") {
		t.Errorf("expected duplicate and missing id errors, got %v", err)
	}

	noURL := &ProvidersConfig{Providers: map[string]ProviderConfig{"gemini": {Type: ProviderTypeGemini}}}
	if err := noURL.Validate(); err == nil {
		t.Error("expected missing base_url error")
	}
}
