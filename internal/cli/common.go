// Package cli implements the requestmirror command line.
package cli

import (
	"fmt"
	"time"

	"github.com/aristath/requestmirror/internal/config"
	"github.com/aristath/requestmirror/internal/di"
	"github.com/aristath/requestmirror/pkg/logger"
	"github.com/rs/zerolog"
)

// loadConfig loads configuration and builds the logger from it.
// A fallback logger reports configuration errors.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		return nil, fallback, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.Pretty,
	})
	logger.SetGlobalLogger(log)
	return cfg, log, nil
}

// openStore opens the database and repositories without starting any service.
// Used by the read-only inspection commands.
func openStore(cfg *config.Config, log zerolog.Logger) (*di.Container, error) {
	container, err := di.InitializeDatabases(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := di.InitializeRepositories(container, log); err != nil {
		container.Close()
		return nil, err
	}
	return container, nil
}

// humanizeUntil renders the distance from now to t, e.g. "in 4m0s" or "3m12s ago".
func humanizeUntil(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := t.Sub(now).Round(time.Second)
	switch {
	case d > 0:
		return "in " + d.String()
	case d < 0:
		return (-d).String() + " ago"
	default:
		return "now"
	}
}
