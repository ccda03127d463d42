// Package cli provides the startup plumbing shared by cmd/presupuesto,
// cmd/presupuesto-worker and cmd/presupuestoctl, and the presupuestoctl
// command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"presupuesto/internal/backend"
	"presupuesto/internal/cache"
	"presupuesto/internal/config"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
	"presupuesto/internal/spend"
	"presupuesto/internal/variance"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger initializes structured logging for a process component and
// sets it as the default logger.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	return log.Setup(cfg.SlogLevel(), component)
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App is a wired planning service with the resources it holds.
type App struct {
	Config  *config.Config
	Catalog config.Catalog
	Backend *backend.Result
	Service *services.PlanningService
	// Results is nil when the app was built without a result cache.
	Results *cache.LRU[[]variance.Summary]
}

// AppOptions tune Bootstrap.
type AppOptions struct {
	Now func() time.Time
	// Cached enables the variance result cache. Only the process that
	// performs writes can keep it coherent.
	Cached bool
}

// Bootstrap loads the brand catalog, opens the configured backend and builds
// the planning service over it.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger, opts AppOptions) (*App, error) {
	catalog, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger, opts.Now).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	app := &App{Config: cfg, Catalog: catalog, Backend: res}
	so := services.Options{Now: opts.Now}
	if cfg.SpendField != "" {
		field, err := spend.ParseField(cfg.SpendField)
		if err != nil {
			res.Close()
			return nil, err
		}
		so.SpendField = &field
	}
	if res.Publisher != nil {
		so.Publisher = res.Publisher
	}
	if opts.Cached {
		app.Results = cache.NewLRU[[]variance.Summary](cfg.CacheSize, cfg.CacheTTL)
		so.Cache = app.Results
	}
	app.Service = services.NewFromStore(res.Store, so)

	logger.InfoContext(ctx, "Planning service ready",
		"backend", bcfg.Type.String(),
		"brands", len(catalog.Brands),
		"cached", opts.Cached,
		"publisher", res.Publisher != nil)
	return app, nil
}

// Close releases the backend.
func (a *App) Close() error {
	if a == nil || a.Backend == nil {
		return nil
	}
	return a.Backend.Close()
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()
		logger.Info("Shutdown complete")
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
