package di

import (
	"context"
	"fmt"

	"github.com/aristath/requestmirror/internal/clients/discord"
	"github.com/aristath/requestmirror/internal/clients/exercism"
	"github.com/aristath/requestmirror/internal/config"
	"github.com/aristath/requestmirror/internal/events"
	"github.com/aristath/requestmirror/internal/metrics"
	"github.com/aristath/requestmirror/internal/queue"
	"github.com/aristath/requestmirror/internal/reliability"
	"github.com/aristath/requestmirror/internal/scheduler"
	"github.com/aristath/requestmirror/internal/work"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients, the task queue, the poll scheduler and the worker
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.Metrics = metrics.New()
	container.EventBus = events.NewBus(log)

	// External clients. Tests may pre-populate these with doubles.
	if container.Source == nil {
		container.Source = exercism.NewClient(cfg.ExercismAPIURL, cfg.ExercismToken, container.ClientDataRepo, log)
	}
	if container.Mirror == nil {
		container.Mirror = discord.NewClient(discord.Config{
			BaseURL:   cfg.DiscordAPIURL,
			Token:     cfg.DiscordToken,
			ChannelID: cfg.DiscordChannelID,
			GuildID:   cfg.DiscordGuildID,
			BotUserID: cfg.DiscordBotUserID,
		}, log)
	}

	container.Queue = queue.New(container.TaskRepo, log)
	container.PollScheduler = scheduler.NewPollScheduler(log)

	container.Worker = work.New(work.Config{
		PollMin:      cfg.Poll.Min,
		PollMax:      cfg.Poll.Max,
		HistorySize:  cfg.Poll.HistorySize,
		TickInterval: cfg.Poll.TickInterval,
		TaskTimeout:  cfg.Poll.TaskTimeout,
	}, work.Deps{
		Source:    container.Source,
		Mirror:    container.Mirror,
		Queue:     container.Queue,
		Scheduler: container.PollScheduler,
		Tracks:    container.TrackRepo,
		Requests:  container.RequestRepo,
		Metrics:   container.Metrics,
		Bus:       container.EventBus,
	}, log)

	container.Cron = scheduler.NewCron(log)

	if cfg.Backup != nil && cfg.Backup.Enabled {
		store, err := reliability.NewS3Store(context.Background(), cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			container.DB, store, cfg.DataDir, cfg.Backup.Retention, container.EventBus, log,
		)
	}

	log.Info().Msg("Services initialized")
	return nil
}
