package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/phenoscribe/phenoscribe/internal/config"
	"github.com/phenoscribe/phenoscribe/internal/journal"
	"github.com/phenoscribe/phenoscribe/internal/pipeline"
)

var (
	eventsRunID string
	eventsLimit int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List journal events recorded for a run",
	Long: `Reads the processing journal and prints the timeline of one run:
failed transcriptions, failed sessions, and any other recorded events.
The run identifier is printed by "run" in each session's processing report.`,
	RunE: func(cobraCmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		logger := pipeline.NewLogger(cfg.Telemetry, verbose)

		jnl, err := journal.Open(cobraCmd.Context(), cfg.Journal, cfg.OutputDir, logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jnl.Close()

		events, err := jnl.ListRunEvents(cobraCmd.Context(), eventsRunID, eventsLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Printf("No events recorded for run %s\n", eventsRunID)
			return nil
		}
		for _, evt := range events {
			fmt.Printf("%s  %-22s  session=%s", evt.CreatedAt.Format(time.RFC3339), evt.Type, evt.SessionID)
			if evt.RecordingID != "" {
				fmt.Printf("  recording=%s", evt.RecordingID)
			}
			if evt.Detail != "" {
				fmt.Printf("  %s", evt.Detail)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsRunID, "run", "", "run identifier")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "maximum events to list")
	_ = eventsCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(eventsCmd)
}
