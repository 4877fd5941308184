package config

import "time"

const (
	ProviderTypeOpenAI = "openai"
	ProviderTypeGemini = "gemini"
)

// ProvidersConfig maps a provider name, as used for routing, to its upstream.
type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

type ProviderConfig struct {
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// APIKeyName is the setting operators must fill in, reported when APIKey is empty.
	APIKeyName string `yaml:"api_key_name,omitempty"`
	// MaxConcurrent bounds in-flight upstream calls. Zero means unbounded.
	MaxConcurrent int               `yaml:"max_concurrent"`
	Timeout       time.Duration     `yaml:"timeout"`
	Headers       map[string]string `yaml:"headers,omitempty"`
}
