// Package main is the entry point for requestmirror, which mirrors open
// mentoring requests of every tracked language into per-track chat threads.
//
// Without a subcommand the mirror is served (see "serve").
package main

import (
	"fmt"
	"os"

	"github.com/aristath/requestmirror/internal/cli"
	"github.com/spf13/cobra"
)

func main() {
	serveCmd := cli.ServeCmd()

	rootCmd := &cobra.Command{
		Use:   "requestmirror",
		Short: "Mirror mentoring requests into per-track threads",
		Long: `requestmirror polls the mentoring request queue of every track and keeps
one message per open request in the track's thread, adding and removing
messages as requests come and go.`,
		SilenceUsage: true,
		RunE:         serveCmd.RunE,
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cli.QueueCmd())
	rootCmd.AddCommand(cli.TracksCmd())
	rootCmd.AddCommand(cli.BackupCmd())
	rootCmd.AddCommand(cli.JobCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
