package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"presupuesto/internal/cache"
	"presupuesto/internal/cli"
	apphttp "presupuesto/internal/http"
	"presupuesto/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.Setup(log.DefaultConfig().Level, log.ComponentApp).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	app, err := cli.Bootstrap(context.Background(), cfg, logger, cli.AppOptions{Cached: true})
	if err != nil {
		logger.Error("Failed to initialize application", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer app.Close()

	cacheManager := cache.NewManager(app.Results)

	srv := apphttp.NewServer(":"+cfg.Port, app.Service, apphttp.Options{
		Catalog: app.Catalog,
		Ping:    app.Backend.Ping,
		Logger:  logger.WithComponent(log.ComponentHTTP),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
	})
	cacheManager.Start(ctx, cfg.CacheTTL)

	logger.Info("Starting presupuesto server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"brands", len(app.Catalog.Brands))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
