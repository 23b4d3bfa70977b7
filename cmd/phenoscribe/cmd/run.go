package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phenoscribe/phenoscribe/internal/config"
	"github.com/phenoscribe/phenoscribe/internal/journal"
	"github.com/phenoscribe/phenoscribe/internal/media"
	"github.com/phenoscribe/phenoscribe/internal/pipeline"
	"github.com/phenoscribe/phenoscribe/internal/transcribe"
)

var sessionName string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process all discovered sessions",
	RunE: func(cobraCmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		logger := pipeline.NewLogger(cfg.Telemetry, verbose)

		ctx, stop := signal.NotifyContext(cobraCmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownTelemetry, metricsHandler, err := pipeline.SetupTelemetry(cfg.Telemetry, logger)
		if err != nil {
			return fmt.Errorf("failed to setup telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown error", slog.String("error", err.Error()))
			}
		}()

		// Long batch runs can expose metrics while they work.
		if cfg.Telemetry.PrometheusBind != "" && metricsHandler != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metricsHandler)
			server := &http.Server{
				Addr:              cfg.Telemetry.PrometheusBind,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Warn("metrics server failed", slog.String("error", err.Error()))
				}
			}()
			defer server.Close()
		}

		transcriber, err := transcribe.NewExecTranscriber(cfg.Transcriber)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		prober := media.NewFileProber(cfg.Audio.FFprobePath, logger)
		normalizer := media.NewNormalizer(cfg.Audio, logger)

		jnl, err := journal.Open(ctx, cfg.Journal, cfg.OutputDir, logger)
		if err != nil {
			logger.Warn("journal unavailable, continuing without it", slog.String("error", err.Error()))
			jnl, _ = journal.Open(ctx, config.JournalConfig{Enabled: false}, cfg.OutputDir, logger)
		}
		defer jnl.Close()

		runner := pipeline.NewRunner(cfg, logger, transcriber, prober, normalizer, jnl)
		if sessionName != "" {
			runner.SetSessionFilter(sessionName)
		}

		summary, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Successfully processed: %d/%d sessions\n", summary.Succeeded, summary.Attempted)
		fmt.Printf("Output directory: %s\n", cfg.OutputDir)
		if summary.Succeeded != summary.Attempted {
			return fmt.Errorf("%d of %d sessions failed", summary.Attempted-summary.Succeeded, summary.Attempted)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&sessionName, "session", "", "process only the named session")
	rootCmd.AddCommand(runCmd)
}
