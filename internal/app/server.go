package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/markdave123-py/dsa-galaxy/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/dsa-galaxy/internal/api/middlewares"
	"github.com/markdave123-py/dsa-galaxy/internal/auth"
	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/metrics"
	"github.com/markdave123-py/dsa-galaxy/internal/services"
)

// RouterDeps is everything the HTTP layer needs.
type RouterDeps struct {
	Logger      *slog.Logger
	Store       core.Store
	Verifier    auth.TokenVerifier
	Metrics     metrics.Recorder
	Gatherer    prometheus.Gatherer
	RateLimiter *appMiddleware.RateLimiter
	CORSOrigins []string

	Users    *services.UserService
	Chat     *services.ChatService
	Sessions *services.SessionService
	Admin    *services.AdminService
	Exports  *services.ExportService
}

// NewRouter wires every route onto a chi router.
func NewRouter(d RouterDeps) http.Handler {
	authHandler := handlers.NewAuthHandler(d.Users)
	chatHandler := handlers.NewChatHandler(d.Chat)
	sessionHandler := handlers.NewSessionHandler(d.Sessions, d.Exports)
	adminHandler := handlers.NewAdminHandler(d.Admin)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(appMiddleware.NewLoggingMiddleware(d.Logger, d.Metrics))
	r.Use(appMiddleware.NewRecoveryMiddleware())

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "apikey", "x-client-info"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			appMiddleware.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(d.Gatherer))
	}

	chat := func(cr chi.Router) {
		cr.Use(appMiddleware.JWTMiddleware(d.Verifier))
		if d.RateLimiter != nil {
			cr.Use(d.RateLimiter.Middleware())
		}
		cr.Post("/", chatHandler.SubmitTurn)
	}
	r.Route("/functions/v1/chat-with-ai", chat)

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/auth/signup", authHandler.Signup)
		api.Post("/auth/login", authHandler.Login)

		api.Route("/chat", chat)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(d.Verifier))
			protected.Get("/me", authHandler.Me)
			protected.Get("/dashboard", sessionHandler.Dashboard)

			protected.Route("/sessions", func(s chi.Router) {
				s.Get("/", sessionHandler.List)
				s.Post("/", sessionHandler.Create)
				s.Patch("/{id}", sessionHandler.Rename)
				s.Delete("/{id}", sessionHandler.Delete)
				s.Get("/{id}/messages", sessionHandler.Messages)
				s.Post("/{id}/export", sessionHandler.Export)
			})

			protected.Route("/admin", func(a chi.Router) {
				a.Use(appMiddleware.RequireAdmin(d.Admin))
				a.Get("/overview", adminHandler.Overview)
				a.Delete("/sessions/{id}", adminHandler.DeleteSession)
			})
		})
	})

	return r
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
