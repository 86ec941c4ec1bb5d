package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aristath/requestmirror/internal/modules/tracks"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// TracksCmd returns the tracks command
func TracksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tracks",
		Short: "List tracks with their poll interval, last poll and thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			container, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer container.Close()

			all, err := container.TrackRepo.GetAll()
			if err != nil {
				return fmt.Errorf("failed to list tracks: %w", err)
			}
			counts, err := container.RequestRepo.CountByTrack()
			if err != nil {
				return fmt.Errorf("failed to count mirrored requests: %w", err)
			}

			renderTracks(os.Stdout, all, counts, time.Now())
			return nil
		},
	}
}

func renderTracks(w io.Writer, all []tracks.Track, mirrored map[string]int, now time.Time) {
	if len(all) == 0 {
		fmt.Fprintln(w, "No tracks yet")
		return
	}

	fmt.Fprintf(w, "Tracks (%d):\n", len(all))
	for _, t := range all {
		thread := color.New(color.FgRed).Sprint("no thread")
		if t.HasThread() {
			thread = color.New(color.FgGreen).Sprint(t.ThreadID)
		}

		interval := "-"
		if t.PollInterval > 0 {
			interval = t.PollInterval.Round(time.Second).String()
		}

		fmt.Fprintf(w, "  %-20s every %-8s polled %-12s mirrored %-4d %s\n",
			t.Slug, interval, humanizeUntil(t.LastPolledAt, now), mirrored[t.Slug], thread)
	}
}
