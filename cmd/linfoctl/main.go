package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/bootstrap"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/cli"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup(logging.ParseLevel(cfg.LogLevel))

	open := func(ctx context.Context) (*cli.Deps, error) {
		app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
		if err != nil {
			return nil, err
		}
		return &cli.Deps{
			Roles: app.Auth,
			Sync:  app.Sync,
			Close: func() { app.Close(context.Background()) },
		}, nil
	}

	if err := cli.NewRootCommand(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
