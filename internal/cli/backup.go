package cli

import (
	"context"
	"fmt"

	"github.com/aristath/requestmirror/internal/di"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// BackupCmd returns the backup command
func BackupCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create one backup now and rotate old archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Backup.Enabled {
				return fmt.Errorf("backups are disabled (set BACKUP_ENABLED=true)")
			}

			container, _, err := di.Wire(cfg, log)
			if err != nil {
				return err
			}
			defer container.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			svc := container.BackupService

			if list {
				backups, err := svc.ListBackups(ctx)
				if err != nil {
					return err
				}
				for _, b := range backups {
					fmt.Printf("  %s  %s  %d bytes\n", b.Timestamp.Format("2006-01-02 15:04:05"), b.Key, b.SizeBytes)
				}
				return nil
			}

			info, err := svc.CreateAndUpload(ctx)
			if err != nil {
				fmt.Printf("%s %v\n", color.New(color.FgRed).Sprint("FAILED"), err)
				return err
			}
			fmt.Printf("%s %s (%d bytes)\n", color.New(color.FgGreen).Sprint("UPLOADED"), info.Key, info.SizeBytes)

			deleted, err := svc.Rotate(ctx)
			if err != nil {
				return fmt.Errorf("rotation failed: %w", err)
			}
			if deleted > 0 {
				fmt.Printf("Rotated %d old backup(s)\n", deleted)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List stored backups instead of creating one")

	return cmd
}
