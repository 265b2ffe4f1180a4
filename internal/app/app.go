package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	appMiddleware "github.com/markdave123-py/dsa-galaxy/internal/api/middlewares"
	"github.com/markdave123-py/dsa-galaxy/internal/auth"
	"github.com/markdave123-py/dsa-galaxy/internal/config"
	"github.com/markdave123-py/dsa-galaxy/internal/core"
	db "github.com/markdave123-py/dsa-galaxy/internal/core/database"
	"github.com/markdave123-py/dsa-galaxy/internal/core/llm"
	objectclient "github.com/markdave123-py/dsa-galaxy/internal/core/object-client"
	"github.com/markdave123-py/dsa-galaxy/internal/core/outbox"
	"github.com/markdave123-py/dsa-galaxy/internal/metrics"
	"github.com/markdave123-py/dsa-galaxy/internal/policy"
	"github.com/markdave123-py/dsa-galaxy/internal/services"
)

type App struct {
	Store       core.Store
	Replayer    *outbox.Replayer
	RateLimiter *appMiddleware.RateLimiter
	Server      *Server
	provider    core.LLMProvider
	logger      *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	store, err := db.NewStore(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("store initialized", "driver", cfg.StoreDriver)

	var objClient core.ObjectClient
	if cfg.ExportEnabled() {
		s3, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		objClient = s3
		logger.Info("object client initialized", "bucket", cfg.BucketName)
	} else {
		logger.Warn("object storage not configured, transcript export disabled")
	}

	provider, err := llm.NewProvider(appCtx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("couldn't initialize the completion provider, %w", err)
	}

	engine, err := policy.NewEngine(appCtx, policy.DefaultPolicy)
	if err != nil {
		closeProvider(provider, logger)
		_ = store.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	tokens := auth.NewJWTManager([]byte(cfg.JWTSecret), cfg.JWTAudience, cfg.TokenTTL)
	users := services.NewUserService(store, tokens, cfg.AdminEmails, logger)
	sessions := services.NewSessionService(store, engine, logger)
	chat := services.NewChatService(store, provider, engine, rec, logger, services.ChatOptions{
		Provider:          cfg.LLMProvider,
		CompletionTimeout: cfg.CompletionTimeout,
	})
	admin := services.NewAdminService(store, engine, sessions, cfg.AdminSessionWindow)
	exports := services.NewExportService(sessions, objClient, logger)

	limiter := appMiddleware.NewRateLimiter(appMiddleware.ChatRateLimiterConfig(cfg.RateLimitChat))

	router := NewRouter(RouterDeps{
		Logger:      logger,
		Store:       store,
		Verifier:    tokens,
		Metrics:     rec,
		Gatherer:    reg,
		RateLimiter: limiter,
		CORSOrigins: cfg.CORSOrigins,
		Users:       users,
		Chat:        chat,
		Sessions:    sessions,
		Admin:       admin,
		Exports:     exports,
	})

	replayer := outbox.NewReplayer(store, rec, logger, outbox.Config{
		Interval:    cfg.OutboxInterval,
		Workers:     cfg.OutboxWorkers,
		MaxAttempts: cfg.OutboxMaxAttempts,
	})

	return &App{
		Store:       store,
		Replayer:    replayer,
		RateLimiter: limiter,
		Server:      NewServer(":"+cfg.Port, router, logger),
		provider:    provider,
		logger:      logger,
	}, nil
}

// Run starts background workers and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.Replayer.Start(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return a.Server.Shutdown(shutdownCtx)
}

func (a *App) Close() {
	if a.RateLimiter != nil {
		a.RateLimiter.Stop()
	}
	closeProvider(a.provider, a.logger)
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.logger.Warn("store close failed", "error", err)
		}
	}
}

// closeProvider releases providers that hold a client connection (Gemini).
func closeProvider(p core.LLMProvider, logger *slog.Logger) {
	c, ok := p.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("completion provider close failed", "error", err)
	}
}
