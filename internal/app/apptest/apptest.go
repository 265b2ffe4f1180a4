// Package apptest runs the full HTTP stack over the in-memory store for tests.
package apptest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	appMiddleware "github.com/markdave123-py/dsa-galaxy/internal/api/middlewares"
	"github.com/markdave123-py/dsa-galaxy/internal/app"
	"github.com/markdave123-py/dsa-galaxy/internal/auth"
	"github.com/markdave123-py/dsa-galaxy/internal/core"
	db "github.com/markdave123-py/dsa-galaxy/internal/core/database"
	"github.com/markdave123-py/dsa-galaxy/internal/core/llm"
	"github.com/markdave123-py/dsa-galaxy/internal/logger"
	"github.com/markdave123-py/dsa-galaxy/internal/metrics"
	"github.com/markdave123-py/dsa-galaxy/internal/policy"
	"github.com/markdave123-py/dsa-galaxy/internal/services"
)

const AdminEmail = "root@example.com"

// Harness is a running API server backed by memory.
type Harness struct {
	Server   *httptest.Server
	Store    *db.MemoryStore
	LLM      *llm.MockLLM
	Tokens   *auth.JWTManager
	Registry *prometheus.Registry
}

// Options tweaks the harness.
type Options struct {
	// ChatBurst caps chat turns per user; zero leaves chat unlimited.
	ChatBurst int
	// Storage enables transcript export.
	Storage core.ObjectClient
}

// New starts a server and registers its shutdown with t.
func New(t *testing.T, opts Options) *Harness {
	t.Helper()
	ctx := context.Background()
	log := logger.Discard()

	store := db.NewMemoryStore()
	mock := llm.NewMockLLM()
	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)
	tokens := auth.NewJWTManager([]byte("test-secret"), "authenticated", time.Hour)

	sessions := services.NewSessionService(store, engine, log)
	deps := app.RouterDeps{
		Logger:      log,
		Store:       store,
		Verifier:    tokens,
		Metrics:     rec,
		Gatherer:    reg,
		CORSOrigins: []string{"http://localhost:5173"},
		Users:       services.NewUserService(store, tokens, []string{AdminEmail}, log),
		Chat:        services.NewChatService(store, mock, engine, rec, log, services.ChatOptions{Provider: "mock"}),
		Sessions:    sessions,
		Admin:       services.NewAdminService(store, engine, sessions, 50),
		Exports:     services.NewExportService(sessions, opts.Storage, log),
	}
	if opts.ChatBurst > 0 {
		rl := appMiddleware.NewRateLimiter(appMiddleware.RateLimiterConfig{
			Rate:            rate.Every(time.Hour),
			Burst:           opts.ChatBurst,
			CleanupInterval: time.Minute,
			IdleTTL:         time.Minute,
		})
		t.Cleanup(rl.Stop)
		deps.RateLimiter = rl
	}

	srv := httptest.NewServer(app.NewRouter(deps))
	t.Cleanup(srv.Close)

	return &Harness{Server: srv, Store: store, LLM: mock, Tokens: tokens, Registry: reg}
}
