package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/aristath/requestmirror/internal/di"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// JobCmd returns the job command
func JobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job [name]",
		Short: "Run one maintenance job now, or list the registered jobs",
		Long: `Run a registered cron job immediately, outside its schedule.
Without a name the registered jobs are listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			container, jobs, err := di.Wire(cfg, log)
			if err != nil {
				return err
			}
			defer container.Close()

			if len(args) == 0 {
				renderJobs(os.Stdout, jobs)
				return nil
			}

			job, ok := jobs.Find(args[0])
			if !ok {
				return fmt.Errorf("unknown job %q (run \"job\" to list them)", args[0])
			}
			if err := container.Cron.RunNow(job); err != nil {
				fmt.Printf("%s %s: %v\n", color.New(color.FgRed).Sprint("FAILED"), job.Name(), err)
				return err
			}
			fmt.Printf("%s %s\n", color.New(color.FgGreen).Sprint("OK"), job.Name())
			return nil
		},
	}
}

func renderJobs(w io.Writer, jobs *di.JobInstances) {
	fmt.Fprintln(w, "Registered jobs:")
	for _, job := range jobs.All() {
		fmt.Fprintf(w, "  %s\n", job.Name())
	}
}
