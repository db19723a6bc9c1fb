// Package runtime wires configuration, storage, and the HTTP server
// into a runnable packmint process.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	app "github.com/voltpacks/packmint/internal/app"
	"github.com/voltpacks/packmint/internal/app/httpapi"
	"github.com/voltpacks/packmint/internal/app/storage"
	"github.com/voltpacks/packmint/internal/app/storage/postgres"
	"github.com/voltpacks/packmint/internal/app/storage/redis"
	"github.com/voltpacks/packmint/internal/config"
	"github.com/voltpacks/packmint/internal/middleware"
	"github.com/voltpacks/packmint/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server
// lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
	redis      *redis.Store
}

// NewApplication constructs a new application instance with default
// wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig constructs an application around an already
// loaded configuration.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	rt := &Application{cfg: cfg, log: log}

	store, err := rt.buildStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	application, err := app.New(cfg, app.Stores{Inventory: store}, log)
	if err != nil {
		rt.closeStores()
		return nil, fmt.Errorf("build application: %w", err)
	}
	rt.app = application

	handler := httpapi.NewHandler(application)
	if cfg.HTTPRateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTPRateLimit, cfg.HTTPRateLimit*2, log)
		limiter.StartCleanup(time.Minute)
		handler = limiter.Handler(handler)
	}
	if len(cfg.AllowedOrigins) > 0 {
		handler = middleware.NewCORS(cfg.AllowedOrigins).Handler(handler)
	}

	rt.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return rt, nil
}

// buildStore picks the inventory backend: postgres when a database URL
// is configured, redis when a redis URL is, in-memory otherwise.
func (a *Application) buildStore(cfg *config.Config, log *logger.Logger) (storage.KeyValueStore, error) {
	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store := postgres.New(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.db = db
		log.Info("inventory store: postgres")
		return store, nil

	case cfg.RedisURL != "":
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		store := redis.New(opts)
		a.redis = store
		log.Info("inventory store: redis")
		return store, nil

	default:
		log.Warn("no store configured; inventory will not survive restarts")
		return nil, nil
	}
}

// Run starts the application services and the HTTP server, blocking
// until the context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.cfg.Listen)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, the background services,
// and any open store connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var first error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		first = err
	}
	if err := a.app.Stop(shutdownCtx); err != nil && first == nil {
		first = err
	}
	a.closeStores()
	return first
}

func (a *Application) closeStores() {
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
}
