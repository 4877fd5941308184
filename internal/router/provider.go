package router

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/af-corp/chat-gateway/internal/config"
	"github.com/af-corp/chat-gateway/internal/router/adapters"
)

// Registry manages provider adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]adapters.ProviderAdapter
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]adapters.ProviderAdapter),
	}
}

func (r *Registry) Register(name string, adapter adapters.ProviderAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = adapter
}

func (r *Registry) Get(name string) (adapters.ProviderAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Replace swaps in every adapter of other at once. Used when providers.yaml
// is reloaded so in-flight turns keep the adapter they started with.
func (r *Registry) Replace(other *Registry) {
	other.mu.RLock()
	next := make(map[string]adapters.ProviderAdapter, len(other.adapters))
	for k, v := range other.adapters {
		next[k] = v
	}
	other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = next
}

// BuildFromConfig builds provider adapters from the providers config.
func BuildFromConfig(provCfg *config.ProvidersConfig, opts adapters.Options) *Registry {
	registry := NewRegistry()
	for name, cfg := range provCfg.Providers {
		// No client-wide timeout: a turn streams for as long as the model
		// talks. The timeout only bounds the wait for response headers.
		client := &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          cfg.MaxConcurrent,
				MaxIdleConnsPerHost:   cfg.MaxConcurrent,
				MaxConnsPerHost:       cfg.MaxConcurrent,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: cfg.Timeout,
				ForceAttemptHTTP2:     true,
			},
		}

		var adapter adapters.ProviderAdapter
		switch cfg.Type {
		case config.ProviderTypeGemini:
			adapter = adapters.NewGeminiAdapter(cfg, client, opts)
		default:
			adapter = adapters.NewOpenAIAdapter(cfg, client, opts)
		}
		registry.Register(name, adapter)
	}
	return registry
}

// ResolveRoute finds the adapter serving a model.
func ResolveRoute(registry *Registry, model string) (adapters.ProviderAdapter, error) {
	provider := SelectProvider(model)
	adapter, ok := registry.Get(provider)
	if !ok {
		return nil, fmt.Errorf("no %s provider configured for model %s", provider, model)
	}
	return adapter, nil
}
