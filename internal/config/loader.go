package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const (
	gatewayFile   = "gateway.yaml"
	modelsFile    = "models.yaml"
	providersFile = "providers.yaml"

	// Editors and ConfigMap swaps emit bursts of events for a single save.
	reloadDebounce = 250 * time.Millisecond
)

// envRef matches ${NAME} and ${NAME:default}.
var envRef = regexp.MustCompile(`\$\{[^}:]+(?::[^}]*)?\}`)

// expandEnvVars substitutes environment references. An unset or empty
// variable yields the default, or nothing.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		name, def, _ := strings.Cut(ref[2:len(ref)-1], ":")
		if v := os.Getenv(name); v != "" {
			return v
		}
		return def
	})
}

// LoadFile reads a YAML file, expands environment references and decodes it
// over dest, so fields absent from the file keep their current values.
func LoadFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), dest); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// snapshot is one consistent generation of the three config files.
type snapshot struct {
	cfg       *Config
	models    *ModelsConfig
	providers *ProvidersConfig
}

// Loader reads the config directory and keeps the latest valid snapshot.
// A reload that fails validation leaves the previous snapshot in place.
type Loader struct {
	dir    string
	logger *slog.Logger
	cur    atomic.Pointer[snapshot]

	mu       sync.Mutex
	onReload []func()
}

func NewLoader(configDir string, logger *slog.Logger) *Loader {
	return &Loader{dir: configDir, logger: logger}
}

func (l *Loader) Load() error {
	s, err := l.read()
	if err != nil {
		return err
	}
	l.cur.Store(s)
	l.logger.Info("configuration loaded", "dir", l.dir, "models", len(s.models.Models), "providers", len(s.providers.Providers))
	return nil
}

func (l *Loader) read() (*snapshot, error) {
	s := &snapshot{cfg: DefaultConfig(), models: &ModelsConfig{}, providers: &ProvidersConfig{}}
	files := []struct {
		name string
		dest any
	}{
		{gatewayFile, s.cfg},
		{modelsFile, s.models},
		{providersFile, s.providers},
	}
	for _, f := range files {
		if err := LoadFile(filepath.Join(l.dir, f.name), f.dest); err != nil {
			return nil, err
		}
	}

	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", gatewayFile, err)
	}
	if err := s.providers.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", providersFile, err)
	}
	if err := s.models.Validate(s.providers); err != nil {
		return nil, fmt.Errorf("%s: %w", modelsFile, err)
	}
	return s, nil
}

func (l *Loader) Config() *Config {
	if s := l.cur.Load(); s != nil {
		return s.cfg
	}
	return nil
}

func (l *Loader) Models() *ModelsConfig {
	if s := l.cur.Load(); s != nil {
		return s.models
	}
	return nil
}

func (l *Loader) Providers() *ProvidersConfig {
	if s := l.cur.Load(); s != nil {
		return s.providers
	}
	return nil
}

// OnReload registers fn to run after every successful reload.
func (l *Loader) OnReload(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = append(l.onReload, fn)
}

func (l *Loader) reload() {
	if err := l.Load(); err != nil {
		l.logger.Error("failed to reload config, keeping previous", "error", err)
		return
	}
	l.mu.Lock()
	callbacks := append([]func(){}, l.onReload...)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func isConfigFile(path string) bool {
	switch filepath.Base(path) {
	case gatewayFile, modelsFile, providersFile:
		return true
	}
	return false
}

// Watch reloads the configuration when one of its files changes, until ctx
// is done.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", l.dir, err)
	}

	go func() {
		defer watcher.Close()
		var pending *time.Timer
		defer func() {
			if pending != nil {
				pending.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isConfigFile(event.Name) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				l.logger.Info("config file changed", "file", event.Name)
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDebounce, l.reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error("fsnotify error", "error", err)
			}
		}
	}()
	return nil
}
