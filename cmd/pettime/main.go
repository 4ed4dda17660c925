package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pettime/companion/internal/app"
	"github.com/pettime/companion/internal/config"
	apperrors "github.com/pettime/companion/pkg/errors"
	"github.com/pettime/companion/pkg/logger"
)

const usage = `usage: pettime <command> [flags]

commands:
  login       -email -password
  register    -email -password -name
  logout
  whoami
  refresh
  pets
  pet         show|create|update|delete
  pet-types
  game-types
  activities  [-pet id]
  activity    start|finish
  doctor
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", apperrors.UserMessage(err, err.Error()))
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New("cli", cfg.LogLevel, cfg.LogFormat)
	log.Debug("starting pettime",
		slog.String("environment", cfg.Environment),
		slog.String("api_url", cfg.APIURL),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	// Create a context that is canceled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		if err := application.Close(context.Background()); err != nil {
			log.Warn("shutdown", slog.String("error", err.Error()))
		}
	}()

	// Every command starts from whatever session the cache holds.
	application.Session.LoadUser(ctx)

	cmd := &commands{app: application, out: stdout}
	return cmd.dispatch(ctx, args[0], args[1:])
}
