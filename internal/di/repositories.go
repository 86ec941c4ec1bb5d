package di

import (
	"fmt"

	"github.com/aristath/requestmirror/internal/clientdata"
	"github.com/aristath/requestmirror/internal/modules/requests"
	"github.com/aristath/requestmirror/internal/modules/tracks"
	"github.com/aristath/requestmirror/internal/queue"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories on the container's database
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.DB == nil {
		return fmt.Errorf("container database is not initialized")
	}

	conn := container.DB.Conn()
	container.TrackRepo = tracks.NewRepository(conn, log)
	container.RequestRepo = requests.NewRepository(conn, log)
	container.TaskRepo = queue.NewRepository(conn)
	container.ClientDataRepo = clientdata.NewRepository(conn)

	log.Info().Msg("Repositories initialized")
	return nil
}
