package di

import (
	"fmt"

	"github.com/aristath/requestmirror/internal/config"
	"github.com/aristath/requestmirror/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the mirror database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// mirror.db - thread ids, mirrored requests, track activity, task queue
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileDurable, // the queue must survive power loss
		Name:    "mirror",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mirror database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply mirror schema: %w", err)
	}
	container.DB = db

	log.Info().Str("path", db.Path()).Msg("Database initialized")
	return container, nil
}
