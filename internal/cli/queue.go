package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/aristath/requestmirror/internal/queue"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// QueueCmd returns the queue command
func QueueCmd() *cobra.Command {
	var track string

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List pending tasks of the persisted queue",
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

			tasks, err := container.TaskRepo.List()
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}
			if track != "" {
				tasks = filterTasks(tasks, track)
			}

			renderQueue(os.Stdout, tasks, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVarP(&track, "track", "t", "", "Only show tasks of this track")

	return cmd
}

func filterTasks(tasks []queue.Task, track string) []queue.Task {
	out := tasks[:0:0]
	for _, t := range tasks {
		if t.Target.TrackSlug == track {
			out = append(out, t)
		}
	}
	return out
}

func renderQueue(w io.Writer, tasks []queue.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "Queue is empty")
		return
	}

	sorted := append([]queue.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScheduledAt.Before(sorted[j].ScheduledAt)
	})

	fmt.Fprintf(w, "Pending tasks (%d):\n", len(sorted))
	for _, t := range sorted {
		due := humanizeUntil(t.ScheduledAt, now)
		if !t.ScheduledAt.After(now) {
			due = color.New(color.FgGreen).Sprint("due")
		}

		target := t.Target.TrackSlug
		if t.Target.RequestID != "" {
			target += "/" + t.Target.RequestID
		}

		line := fmt.Sprintf("  %-14s %-40s %s", t.Kind, target, due)
		if t.Attempts > 0 {
			line += color.New(color.FgYellow).Sprintf(" (attempts: %d)", t.Attempts)
		}
		fmt.Fprintln(w, line)
	}
}
