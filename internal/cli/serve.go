package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/requestmirror/internal/di"
	"github.com/aristath/requestmirror/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mirror worker and the status server",
		Long: `Start the mirror: restore the persisted queue, seed the poll schedule,
run the worker loop, the maintenance cron and the HTTP status server
until SIGINT or SIGTERM is received.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, log, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().Msg("Starting requestmirror")

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to wire dependencies")
		return err
	}
	defer container.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Poll.TaskTimeout)
	slugs, err := di.ResolveTracks(ctx, cfg, container.Source, log)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve tracks")
		return err
	}

	if err := container.Worker.Bootstrap(slugs); err != nil {
		log.Error().Err(err).Msg("Failed to restore worker state")
		return err
	}

	srv := server.New(server.Config{
		Log:      log,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
		DataDir:  cfg.DataDir,
		DB:       container.DB,
		Status:   container.Worker,
		Queue:    container.Queue,
		Requests: container.RequestRepo,
		Metrics:  container.Metrics.Handler(),
		Bus:      container.EventBus,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	workerCtx, stopWorker := context.WithCancel(context.Background())
	go container.Worker.Run(workerCtx)
	container.Cron.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	// The worker finishes its current task before the database closes.
	container.Worker.Stop()
	stopWorker()
	container.Cron.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}
