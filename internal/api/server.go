package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/babelpdf/internal/auth"
	"github.com/seantiz/babelpdf/internal/config"
	"github.com/seantiz/babelpdf/internal/jobs"
	"github.com/seantiz/babelpdf/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Deps bundles the collaborators the HTTP layer needs.
type Deps struct {
	Store    store.Store
	Jobs     jobs.Store
	Runner   *jobs.Runner
	Tokens   *auth.TokenIssuer
	Sessions *auth.SessionStore
	Layout   config.Layout

	// AllowRegistration is the boot-time value of the self-service
	// registration toggle; admins can flip it at runtime.
	AllowRegistration bool
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router   *chi.Mux
	store    store.Store
	jobs     jobs.Store
	runner   *jobs.Runner
	tokens   *auth.TokenIssuer
	sessions *auth.SessionStore
	layout   config.Layout
	logger   *slog.Logger
	addr     string

	allowRegistration atomic.Bool
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	srv := &Server{
		router:   chi.NewRouter(),
		store:    deps.Store,
		jobs:     deps.Jobs,
		runner:   deps.Runner,
		tokens:   deps.Tokens,
		sessions: deps.Sessions,
		layout:   deps.Layout,
		logger:   logger,
		addr:     addr,
	}
	srv.allowRegistration.Store(deps.AllowRegistration)

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/status", s.handleAuthStatus)
		r.Post("/setup", s.handleSetup)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/me", s.handleMe)
			r.Post("/logout", s.handleLogout)
			r.Post("/change-password", s.handleChangePassword)
		})
	})

	s.router.Route("/config", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/", s.handleGetConfig)
		r.Put("/", s.handlePutConfig)
		r.Get("/export", s.handleExportConfig)
		r.Post("/import", s.handleImportConfig)
		r.Patch("/service", s.handlePatchService)
	})

	s.router.Route("/api/translate", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/upload", s.handleUpload)
		r.Post("/start", s.handleStartTranslation)
		r.Get("/status/{id}", s.handleJobStatus)
		r.Get("/events/{id}", s.handleJobEvents)
		r.Get("/download/{id}", s.handleJobDownload)
	})

	s.router.Route("/files", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/history", s.handleListHistory)
		r.Get("/download/{id}/{variant}", s.handleHistoryDownload)
		r.Delete("/{id}", s.handleDeleteHistory)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/history/all", s.handleListAllHistory)
			r.Delete("/user/{id}/all", s.handleDeleteUserHistory)
		})
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Use(s.requireAdmin)
		r.Get("/users", s.handleAdminUsers)
		r.Get("/stats", s.handleAdminStats)
		r.Patch("/settings", s.handleAdminSettings)
		r.Patch("/users/{id}/toggle", s.handleToggleUser)
		r.Delete("/users/{id}", s.handleDeleteUser)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
