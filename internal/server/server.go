// Package server is the composition root: it wires the database, services,
// handlers and middleware into one chi router and runs the HTTP server with
// graceful shutdown.
//
// DEPENDENCY FLOW:
//
//	config → sqlite.DB (repository.Store) → services → handlers → routes
//
// Each layer only receives what it needs: services get the Store interface,
// handlers get services, and nothing below this package knows about routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/config"
	"github.com/sakif/flashcards/internal/handler"
	"github.com/sakif/flashcards/internal/middleware"
	"github.com/sakif/flashcards/internal/repository"
	"github.com/sakif/flashcards/internal/service"
)

// Store is what the server needs from the storage layer: the repositories
// plus health checking and shutdown. *sqlite.DB satisfies it.
type Store interface {
	repository.Store
	Ping(ctx context.Context) error
	Close() error
}

// Server holds the router and everything it owns.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	store     Store
	passwords *auth.PasswordService
}

// Option tweaks a Server before its routes are built.
type Option func(*Server)

// WithPasswordService overrides the bcrypt settings. Tests use it to drop
// to bcrypt.MinCost.
func WithPasswordService(ps *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = ps }
}

// New builds a Server on top of an open store. The server takes ownership
// of the store and closes it when Start returns.
func New(cfg *config.Config, store Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		store:     store,
		passwords: auth.NewPasswordService(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler (CORS included).
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	}).Handler(s.router)
}

// setupRoutes configures middleware and routes.
//
// ROUTES (trailing slashes are part of the URLs):
//
//	GET    /healthz
//	POST   /api/register/                     (rate limited)
//	POST   /api/token/                        (rate limited)
//	POST   /api/token/refresh/
//	--- bearer token required below ---
//	POST   /api/logout/
//	GET    /api/me/
//	GET    /api/collections/                  POST   /api/collections/
//	GET    /api/collections/{id}/             PUT/PATCH/DELETE same
//	POST   /api/collections/{id}/favorite/
//	GET    /api/public-collections/
//	GET    /api/cards/                        POST   /api/cards/
//	GET    /api/cards/{id}/                   PUT/PATCH/DELETE same
//
// MIDDLEWARE ORDER: RequestID → RealIP → Logger → Recoverer, so a panic is
// logged with its request id and status 500.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.AccessTokenTTL, s.config.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	authService := service.NewAuthService(s.store, tokens, s.passwords, s.logger)
	collectionService := service.NewCollectionService(s.store, s.logger)
	cardService := service.NewCardService(s.store, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	collectionHandler := handler.NewCollectionHandler(collectionService, s.logger)
	cardHandler := handler.NewCardHandler(cardService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	requireAuth := auth.RequireAuth(tokens, s.store.Users(), s.logger)
	throttle := middleware.RateLimit(s.config.AuthRateLimit, time.Minute)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.With(throttle).Post("/register/", authHandler.HandleRegister)
		r.With(throttle).Post("/token/", authHandler.HandleToken)
		r.Post("/token/refresh/", authHandler.HandleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/logout/", authHandler.HandleLogout)
			r.Get("/me/", authHandler.HandleMe)

			r.Route("/collections", func(r chi.Router) {
				r.Get("/", collectionHandler.HandleList)
				r.Post("/", collectionHandler.HandleCreate)
				r.Get("/{id}/", collectionHandler.HandleGet)
				r.Put("/{id}/", collectionHandler.HandleUpdate)
				r.Patch("/{id}/", collectionHandler.HandlePatch)
				r.Delete("/{id}/", collectionHandler.HandleDelete)
				r.Post("/{id}/favorite/", collectionHandler.HandleFavorite)
			})
			r.Get("/public-collections/", collectionHandler.HandlePublicList)

			r.Route("/cards", func(r chi.Router) {
				r.Get("/", cardHandler.HandleList)
				r.Post("/", cardHandler.HandleCreate)
				r.Get("/{id}/", cardHandler.HandleGet)
				r.Put("/{id}/", cardHandler.HandleUpdate)
				r.Patch("/{id}/", cardHandler.HandlePatch)
				r.Delete("/{id}/", cardHandler.HandleDelete)
			})
		})
	})

	return nil
}

// Start serves HTTP until ctx is cancelled (main cancels it on SIGINT or
// SIGTERM), then shuts down gracefully:
//  1. stop accepting connections
//  2. wait up to 30s for in-flight requests
//  3. close the database
func (s *Server) Start(ctx context.Context) error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
