package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/boogle-events/apiserver/config"
	"github.com/boogle-events/apiserver/internal/clock"
	"github.com/boogle-events/apiserver/internal/db"
	"github.com/boogle-events/apiserver/internal/handlers"
	"github.com/boogle-events/apiserver/internal/mq"
	"github.com/boogle-events/apiserver/internal/services"
	"github.com/boogle-events/apiserver/internal/storage"
	"github.com/boogle-events/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// requestTimeout bounds handler work. The write timeout leaves headroom so
// the timeout middleware can still send its 504 response.
const (
	requestTimeout = 30 * time.Second
	writeTimeout   = requestTimeout + 5*time.Second
)

// ErrMissingJWTSecret is returned by New when no signing secret is configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *mq.MQ
}

// Services bundles the use-cases the HTTP layer is built on.
type Services struct {
	Users     handlers.UserService
	Events    handlers.EventService
	Dashboard handlers.DashboardService
}

// New connects every collaborator named by cfg and constructs a Server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	media, err := openMedia(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	bus, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	eventRepo := store.NewEventRepository(dbConn)
	userRepo := store.NewUserRepository(dbConn)

	svc := Services{
		Users:     services.NewUserService(userRepo, media),
		Events:    services.NewEventService(eventRepo, media, bus, clock.NewSystem()),
		Dashboard: services.NewDashboardService(eventRepo),
	}
	router := NewRouter(svc, cfg.Auth)

	return &Server{
		httpServer: newHTTPServer(cfg.ServerPort, router),
		router:     router,
		db:         dbConn,
		bus:        bus,
	}, nil
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	if port == 0 {
		port = 4050
	}
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

// openMedia builds the media service. Without a storage backend uploads
// are rejected and image URLs must be supplied by clients.
func openMedia(ctx context.Context, cfg config.StorageConfig) (*services.MediaService, error) {
	st, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if st == nil {
		slog.Info("no storage backend configured, image uploads disabled")
		return services.NewMediaService(nil), nil
	}
	if err := st.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", st.Bucket(), err)
	}
	slog.Info("media storage ready", "backend", cfg.Backend, "bucket", st.Bucket())
	return services.NewMediaService(st), nil
}

// NewRouter mounts every route on a chi router with the standard middleware.
func NewRouter(svc Services, auth config.AuthConfig) *chi.Mux {
	authHandler := handlers.NewAuthHandler(svc.Users, auth.JWTSecret, auth.TokenTTL)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(requestTimeout),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/events", func(r chi.Router) {
		handlers.EventRouter(r, handlers.NewEventHandler(svc.Events), authHandler.RequireAuth)
	})
	router.Route("/dashboard", func(r chi.Router) {
		handlers.DashboardRouter(r, handlers.NewDashboardHandler(svc.Dashboard), authHandler.RequireAuth)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	slog.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the database and bus.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.bus != nil {
		if cerr := s.bus.Close(); cerr != nil {
			slog.Warn("failed to close message bus", "error", cerr)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
