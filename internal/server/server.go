// Package server wires the router, middleware and handlers, and runs the
// HTTP server with graceful shutdown.
//
// This is the composition root for the HTTP side: it receives an open
// repository.Store and builds Service → Handler on top of it. Opening the
// store is left to main so tests can pass an in-memory one.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/socialhub/internal/auth"
	"github.com/sakif/socialhub/internal/handler"
	"github.com/sakif/socialhub/internal/middleware"
	"github.com/sakif/socialhub/internal/repository"
	"github.com/sakif/socialhub/internal/service"
)

// Config holds what the server needs beyond the store.
type Config struct {
	Port         int
	JWTSecret    string
	TokenTTL     time.Duration
	CookieSecure bool
	BcryptCost   int
}

// Server owns the router and the store. The store is closed when Start
// returns.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	store    repository.Store
	registry *prometheus.Registry
}

// New builds the dependency graph:
//
//	store → UserService, PostService → AuthHandler, UserHandler, PostHandler
//
// Each layer only receives what it needs. Services get the repository
// interface, handlers get services.
func New(cfg Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("server: creating token service: %w", err)
	}

	// Own registry instead of the global one, so tests can build servers
	// side by side.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := middleware.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("server: registering metrics: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		registry: registry,
	}

	passwords := auth.NewPasswordService(cfg.BcryptCost)
	userService := service.NewUserService(store, tokens, passwords, logger)
	postService := service.NewPostService(store, logger)

	s.setupRoutes(tokens, metrics, userService, postService)
	return s, nil
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET    /health                 store ping
//	GET    /metrics                Prometheus exposition
//	POST   /api/v1/register
//	POST   /api/v1/login
//	POST   /api/v1/logout          (GET also accepted)
//	PUT    /api/v1/follow/{id}     auth
//	PUT    /api/v1/update/password auth
//	PUT    /api/v1/update/profile  auth
//	DELETE /api/v1/delete/me       auth
//	GET    /api/v1/me              auth
//	GET    /api/v1/user/{id}       auth
//	GET    /api/v1/users           auth
//	POST   /api/v1/post/upload     auth
//	GET    /api/v1/post/{id}       auth
//	DELETE /api/v1/post/{id}       auth
//	GET    /api/v1/posts/{id}      auth, posts of user {id}
//
// MIDDLEWARE ORDER:
// RequestID first so the logger can print it, Recoverer last so a panic
// still gets logged and counted as a 500.
func (s *Server) setupRoutes(
	tokens *auth.TokenService,
	metrics *middleware.Metrics,
	userService *service.UserService,
	postService *service.PostService,
) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Handler)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	cookie := handler.CookieConfig{TTL: tokens.TTL(), Secure: s.config.CookieSecure}
	authHandler := handler.NewAuthHandler(userService, cookie, s.logger)
	userHandler := handler.NewUserHandler(userService, cookie, s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Put("/follow/{id}", userHandler.HandleFollow)
			r.Put("/update/password", userHandler.HandleUpdatePassword)
			r.Put("/update/profile", userHandler.HandleUpdateProfile)
			r.Delete("/delete/me", userHandler.HandleDeleteMe)
			r.Get("/me", userHandler.HandleMe)
			r.Get("/user/{id}", userHandler.HandleGetUser)
			r.Get("/users", userHandler.HandleListUsers)

			r.Post("/post/upload", postHandler.HandleCreate)
			r.Get("/post/{id}", postHandler.HandleGet)
			r.Delete("/post/{id}", postHandler.HandleDelete)
			r.Get("/posts/{id}", postHandler.HandleListByOwner)
		})
	})
}

// Handler returns the root handler: the router wrapped in OpenTelemetry
// instrumentation. With tracing disabled the global provider is a no-op.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "socialhub")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
		return
	}

	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
