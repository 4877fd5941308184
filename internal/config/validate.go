package config

import (
	"errors"
	"fmt"
)

// Validate rejects gateway settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Chat.DefaultModel == "" {
		errs = append(errs, errors.New("chat.default_model is required"))
	}
	if c.Chat.MaxFrameBytes <= 0 {
		errs = append(errs, errors.New("chat.max_frame_bytes must be positive"))
	}
	inj := c.Filter.Injection
	if inj.Enabled {
		if inj.FlagThreshold < 0 || inj.BlockThreshold > 1 || inj.FlagThreshold > inj.BlockThreshold {
			errs = append(errs, fmt.Errorf("filter.injection thresholds need 0 <= flag (%.2f) <= block (%.2f) <= 1", inj.FlagThreshold, inj.BlockThreshold))
		}
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("ratelimit.requests_per_minute must be positive when enabled"))
	}
	return errors.Join(errs...)
}

// Validate checks the provider table for entries the gateway cannot serve.
// Empty API keys are allowed: a missing credential is reported per request.
func (p *ProvidersConfig) Validate() error {
	var errs []error
	for name, prov := range p.Providers {
		switch prov.Type {
		case ProviderTypeOpenAI, ProviderTypeGemini:
		default:
			errs = append(errs, fmt.Errorf("provider %s: unsupported type %q", name, prov.Type))
		}
		if prov.BaseURL == "" {
			errs = append(errs, fmt.Errorf("provider %s: base_url is required", name))
		}
		if prov.MaxConcurrent < 0 {
			errs = append(errs, fmt.Errorf("provider %s: max_concurrent cannot be negative", name))
		}
	}
	return errors.Join(errs...)
}

// Validate checks the model catalog: ids are unique and an explicit
// provider must be one that is configured.
func (m *ModelsConfig) Validate(providers *ProvidersConfig) error {
	var errs []error
	seen := make(map[string]bool, len(m.Models))
	for i, def := range m.Models {
		if def.ID == "" {
			errs = append(errs, fmt.Errorf("models[%d]: id is required", i))
			continue
		}
		if seen[def.ID] {
			errs = append(errs, fmt.Errorf("model %s: duplicate id", def.ID))
		}
		seen[def.ID] = true
		if def.Provider == "" || providers == nil {
			continue
		}
		if _, ok := providers.Providers[def.Provider]; !ok {
			errs = append(errs, fmt.Errorf("model %s: provider %q is not configured", def.ID, def.Provider))
		}
	}
	return errors.Join(errs...)
}
