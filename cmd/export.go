package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"eventsphere/config"
	"eventsphere/db"
	"eventsphere/models"
	"eventsphere/utils"
)

func newExportCommand(opts *globalOptions) *cobra.Command {
	var eventID, outDir string
	cmd := &cobra.Command{
		Use:   "export-attendees",
		Short: "Write an event's attendee list to a CSV report",
		Long: `Write the attendees of one event to <out>/attendees_<event>_<unix>.csv
and print the path. The directory defaults to REPORTS_DIR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.ReportsDir
			}

			ctx := cmd.Context()
			logger := config.NewLogger(cfg.Logging)
			store, err := db.Open(ctx, cfg.Store, logger)
			if err != nil {
				return fmt.Errorf("store: %w", err)
			}
			defer store.Close(context.Background())

			path, err := exportAttendees(ctx, store, eventID, outDir, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "event id (required)")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: REPORTS_DIR)")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func exportAttendees(ctx context.Context, store *models.Store, eventID, dir string, now time.Time) (string, error) {
	if _, err := store.Events.GetByID(ctx, eventID); err != nil {
		return "", fmt.Errorf("event %s: %w", eventID, err)
	}
	attendees, err := store.Registrations.ListAttendees(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("list attendees: %w", err)
	}
	return utils.WriteAttendeesFile(dir, eventID, attendees, now)
}
