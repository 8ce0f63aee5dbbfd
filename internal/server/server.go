package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/reelkeep/apiserver/config"
	"github.com/reelkeep/apiserver/internal/db"
	"github.com/reelkeep/apiserver/internal/handlers"
	"github.com/reelkeep/apiserver/internal/services"
	"github.com/reelkeep/apiserver/internal/storage"
	"github.com/reelkeep/apiserver/internal/store"
)

const janitorInterval = time.Hour

// Server wraps the HTTP server, router and the session janitor.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	logger     *slog.Logger
	sessions   *services.SessionService
	stop       chan struct{}
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if strings.TrimSpace(cfg.Session.Secret) == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)
	movieRepo := store.NewMovieRepository(dbConn)

	userService := services.NewUserService(userRepo, cfg.BcryptCost)
	sessionService := services.NewSessionService(sessionRepo, cfg.Session.Secret, cfg.Session.TTL)
	movieService := services.NewMovieService(movieRepo)

	var posters *storage.PosterStore
	if cfg.StorageBackend != config.StorageBackendNone {
		posters, err = storage.New(ctx, cfg)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		if err := posters.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, err
		}
	}

	authHandler := handlers.NewAuthHandler(userService, sessionService, cfg.Session.CookieSecure)
	movieHandler := handlers.NewMovieHandler(movieService, posters)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/movies", func(r chi.Router) {
		handlers.MovieRouter(r, movieHandler, authHandler.RequireAuth)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		logger:     logger,
		sessions:   sessionService,
		stop:       make(chan struct{}),
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server and the session janitor.
func (s *Server) Start() error {
	go s.janitor()
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the janitor and attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	close(s.stop)
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

// janitor prunes expired sessions on an interval. Resolve already prunes
// lazily, so this only bounds the garbage from sessions nobody presents
// again.
func (s *Server) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			pruned, err := s.sessions.DeleteExpired(ctx)
			cancel()
			if err != nil {
				s.logger.Error("session prune failed", "error", err)
				continue
			}
			if pruned > 0 {
				s.logger.Info("pruned expired sessions", "count", pruned)
			}
		}
	}
}
