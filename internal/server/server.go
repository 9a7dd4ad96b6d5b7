// Package server is the composition root: it opens the credential store,
// builds services and handlers, mounts the routes and runs the HTTP server
// until a shutdown signal arrives.
//
// DEPENDENCY CHAIN:
//
//	config.Config ─┬─ repository.Store (mongodb | sqlite)
//	               ├─ auth: TokenService → SessionIssuer, PasswordService, GitHubProvider
//	               ├─ github.Client
//	               └─ service: AuthService, StateManager, GitHubLinker, DashboardService
//	                    └─ handler: AuthHandler, GitHubHandler, DashboardHandler
//
// Each layer only receives what it needs. Handlers never see the store and
// services never see HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/devpulse/internal/auth"
	"github.com/sakif/devpulse/internal/config"
	"github.com/sakif/devpulse/internal/github"
	"github.com/sakif/devpulse/internal/handler"
	"github.com/sakif/devpulse/internal/middleware"
	"github.com/sakif/devpulse/internal/repository"
	"github.com/sakif/devpulse/internal/repository/mongodb"
	sqliteRepo "github.com/sakif/devpulse/internal/repository/sqlite"
	"github.com/sakif/devpulse/internal/service"
	"github.com/sakif/devpulse/internal/validate"
)

const (
	shutdownTimeout = 30 * time.Second
	connectTimeout  = 10 * time.Second
	janitorInterval = time.Minute
)

// Server owns the router and the store. The store is closed when Start
// returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
	states *service.StateManager
}

// New opens the configured store and wires every route.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := NewWithStore(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore wires the server around an already open store. Tests use it
// with an in-memory SQLite store.
func NewWithStore(cfg *config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}
	return s, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		if cfg.SQLitePath != ":memory:" {
			// 0755 = owner rwx, others rx
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("server: creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("server: opening sqlite store: %w", err)
		}
		return db, nil
	case config.StoreMongo:
		store, err := mongodb.New(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("server: opening mongo store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("server: unknown store driver %q", cfg.StoreDriver)
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// ROUTES (all under /api/v1):
//
//	GET  /health                     public
//	POST /auth/register              public
//	POST /auth/login                 public
//	POST /auth/logout                session + CSRF
//	GET  /auth/me                    session
//	GET  /github/login               optional session
//	GET  /github/callback            public (state-checked)
//	GET  /dashboard                  session
//
// MIDDLEWARE ORDER:
// RequestID must precede Logger so every log line carries the id. CORS
// answers preflights before the routes see them. Recoverer is innermost so a
// panic still produces a logged 500.
func (s *Server) setupRoutes() error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL)
	if err != nil {
		return err
	}
	sessions := auth.NewSessionIssuer(tokens, cfg.CookieSecure)
	passwords := auth.NewPasswordService(cfg.BcryptCost)
	v, err := validate.New()
	if err != nil {
		return err
	}

	ghClient := github.NewClient(cfg.GitHubAPIURL, cfg.GitHubTimeout, s.logger)

	authService := service.NewAuthService(s.store, sessions, passwords, v, s.logger)
	s.states = service.NewStateManager(s.store, cfg.OAuthStateTTL, s.logger)
	dashboardService := service.NewDashboardService(ghClient, cfg.DashboardRepoLimit, cfg.DashboardWindow, s.logger)

	writeErr := func(w http.ResponseWriter, err error) { handler.WriteError(w, s.logger, err) }
	requireAccount := auth.RequireAccount(authService, writeErr)

	authHandler := handler.NewAuthHandler(authService, sessions, s.logger)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HandleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.With(requireAccount, auth.RequireCSRF(writeErr)).Post("/logout", authHandler.HandleLogout)
			r.With(requireAccount).Get("/me", authHandler.HandleMe)
		})

		r.Route("/github", func(r chi.Router) {
			if !cfg.GitHubConfigured() {
				s.logger.Warn("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set, GitHub sign-in is disabled")
				r.Get("/login", handler.HandleUnconfigured)
				r.Get("/callback", handler.HandleUnconfigured)
				return
			}

			provider := auth.NewGitHubProvider(
				cfg.GitHubClientID,
				cfg.GitHubClientSecret,
				cfg.GitHubRedirectURI,
				auth.WithHTTPClient(ghClient.HTTPClient()),
			)
			linker := service.NewGitHubLinker(s.states, provider, ghClient, s.store, sessions, s.logger)
			githubHandler := handler.NewGitHubHandler(linker, sessions, cfg.FrontendURL, s.logger)

			r.With(auth.OptionalAccount(authService)).Get("/login", githubHandler.HandleLogin)
			r.Get("/callback", githubHandler.HandleCallback)
		})

		r.With(requireAccount).Get("/dashboard", dashboardHandler.HandleDashboard)
	})

	return nil
}

// runJanitor purges expired OAuth states until ctx is done. The Mongo store
// also has a TTL index; SQLite relies on this loop alone.
func (s *Server) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.states.PurgeExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("purging oauth states failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Start runs the HTTP server and handles graceful shutdown.
//
// On SIGINT/SIGTERM it stops accepting connections, waits up to 30s for
// in-flight requests, stops the janitor and closes the store.
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Dashboard requests fan out to GitHub; leave room for GITHUB_TIMEOUT.
		WriteTimeout: s.config.GitHubTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go s.runJanitor(janitorCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("environment", s.config.Environment),
			slog.String("store", s.config.StoreDriver),
			slog.Bool("github", s.config.GitHubConfigured()),
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

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
