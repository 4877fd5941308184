package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/af-corp/chat-gateway/internal/auth"
	"github.com/af-corp/chat-gateway/internal/config"
	"github.com/af-corp/chat-gateway/internal/filter"
	"github.com/af-corp/chat-gateway/internal/filter/injection"
	"github.com/af-corp/chat-gateway/internal/filter/policy"
	"github.com/af-corp/chat-gateway/internal/filter/secrets"
	"github.com/af-corp/chat-gateway/internal/gateway"
	"github.com/af-corp/chat-gateway/internal/ratelimit"
	"github.com/af-corp/chat-gateway/internal/router"
	"github.com/af-corp/chat-gateway/internal/router/adapters"
	"github.com/af-corp/chat-gateway/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	logger = newLogger(cfg.Telemetry)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loader.Watch(ctx); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(reg)

	// Redis backs the rate limiter and the API key cache. Both work without it.
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable (rate limiting and key cache disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	// API keys are only needed when auth is on; otherwise callers are
	// identified by the proxy-supplied principal header.
	var keyStore auth.KeyStore
	if cfg.Auth.Enabled {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
		if err != nil {
			logger.Error("invalid database settings", "error", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		if err := dbPool.Ping(ctx); err != nil {
			logger.Warn("database not reachable (gateway will start but auth will fail)", "error", err)
		} else {
			logger.Info("database connected")
		}
		keyStore = auth.NewCachedKeyStore(dbPool, rdb)
	}

	adapterOpts := func() adapters.Options {
		return adapters.Options{Metrics: metrics, MaxFrameBytes: loader.Config().Chat.MaxFrameBytes}
	}
	providerRegistry := router.BuildFromConfig(loader.Providers(), adapterOpts())

	evaluator := policy.NewEvaluator(func() config.PolicyFilterConfig { return loader.Config().Filter.Policy })
	if cfg.Filter.Policy.Enabled {
		if err := evaluator.Load(); err != nil {
			logger.Error("failed to load policies (policy filter will deny all requests)", "error", err)
		}
	}

	loader.OnReload(func() {
		providerRegistry.Replace(router.BuildFromConfig(loader.Providers(), adapterOpts()))
		logger.Info("provider registry reloaded")
		if loader.Config().Filter.Policy.Enabled {
			if err := evaluator.Load(); err != nil {
				logger.Error("failed to reload policies", "error", err)
			}
		}
	})

	filterChain := filter.NewChain(
		secrets.NewScanner(func() config.SecretsFilterConfig { return loader.Config().Filter.Secrets }),
		injection.NewScanner(func() config.InjectionFilterConfig { return loader.Config().Filter.Injection }),
		evaluator,
	)

	handler := gateway.NewHandler(providerRegistry, loader.Models, loader.Config, filterChain, metrics)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/health", healthHandler)
	r.Handle(cfg.Telemetry.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if keyStore != nil {
			r.Use(auth.Middleware(keyStore, cfg.Auth.PrincipalHeader))
		} else {
			r.Use(auth.PrincipalMiddleware(cfg.Auth.PrincipalHeader))
		}
		if cfg.RateLimit.Enabled {
			r.Use(ratelimit.Middleware(ratelimit.NewLimiter(rdb), func() int {
				return loader.Config().RateLimit.RequestsPerMinute
			}, metrics))
		}
		r.Post("/api/chat", handler.Chat)
		r.Get("/api/files/{fileID}", handler.DownloadFile)
		r.Get("/v1/models", handler.ListModels)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version, "auth", cfg.Auth.Enabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

func newLogger(cfg config.TelemetryConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

// requestIDMiddleware echoes or assigns X-Request-ID. Handlers read it back
// from the response headers.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = "req_" + uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}
