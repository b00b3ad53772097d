package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Initialize context that cancelled on SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Getenv, os.Getwd, os.Args[1:]); err != nil {
		// Logger may be not initialized yet, so default one is used
		slog.Error("authkeeper stopped with error", "error", err.Error())
		cancel()
		os.Exit(1)
	}
}

// Config sources override each other in order: defaults, .env file, environment, flags
func run(ctx context.Context, getenv func(string) string, getwd func() (string, error), args []string) error {
	cfg := NewConfig()

	if err := cfg.LoadDotEnv(getwd); err != nil {
		return fmt.Errorf("error while loading .env file: %w", err)
	}
	cfg.LoadEnv(getenv)
	if err := cfg.ParseFlags(args); err != nil {
		return fmt.Errorf("error while parsing flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config is not valid: %w", err)
	}

	srv, err := NewServerApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("can't initialize app, sorry: %w", err)
	}

	if err := srv.Run(ctx); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}
