package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phenoscribe/phenoscribe/internal/config"
	"github.com/phenoscribe/phenoscribe/internal/media"
	"github.com/phenoscribe/phenoscribe/internal/pairing"
	"github.com/phenoscribe/phenoscribe/internal/pipeline"
	"github.com/phenoscribe/phenoscribe/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List discovered sessions and their pairing preview",
	Long: `Scans the input directory and shows, per session, how many recordings
would be paired with video timestamps and how many would be orphaned,
without transcribing anything.`,
	RunE: func(*cobra.Command, []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		logger := pipeline.NewLogger(cfg.Telemetry, verbose)
		prober := media.NewFileProber(cfg.Audio.FFprobePath, logger)
		resolver := pairing.NewResolver(cfg.Audio.Extensions, cfg.Audio.IgnoreFiles, prober.CreationTime, logger)

		excludes := []string{filepath.Base(cfg.OutputDir), filepath.Base(cfg.WorkDir)}
		mode, sessions, err := session.Discover(cfg.InputDir, cfg.Audio.Extensions, cfg.Audio.IgnoreFiles, excludes)
		if err != nil {
			return err
		}

		fmt.Printf("Found %d session(s) (%s mode)\n\n", len(sessions), mode)
		for _, sess := range sessions {
			paired, orphans, err := resolver.Resolve(sess.Path)
			if err != nil {
				fmt.Printf("%s: unreadable (%v)\n", sess.Name, err)
				continue
			}
			fmt.Printf("%s\n", sess.Name)
			fmt.Printf("  Path:     %s\n", sess.Path)
			if sess.VideoPath != "" {
				fmt.Printf("  Video:    %s\n", filepath.Base(sess.VideoPath))
			}
			fmt.Printf("  Paired:   %d\n", len(paired))
			fmt.Printf("  Orphaned: %d\n", len(orphans))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
