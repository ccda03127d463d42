package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"presupuesto/internal/cli"
	"presupuesto/internal/config"
	"presupuesto/internal/log"
)

func main() {
	cli.LoadEnvFile()

	open := func(ctx context.Context) (*cli.App, error) {
		cfg, err := cli.LoadAndValidateConfig()
		if err != nil {
			return nil, err
		}
		logger := log.New(log.Config{
			Level:     cfg.SlogLevel(),
			Component: log.ComponentCLI,
			Output:    os.Stderr,
		})
		return cli.Bootstrap(ctx, cfg, logger, cli.AppOptions{})
	}

	root := cli.NewRootCommand(cli.CtlOptions{
		Open:        open,
		CatalogPath: config.Load().CatalogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		os.Exit(1)
	}
}
