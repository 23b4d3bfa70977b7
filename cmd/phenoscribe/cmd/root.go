package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "phenoscribe",
	Short: "Transcribe interview session recordings with video timestamps",
	Long: `phenoscribe ingests session folders of short audio recordings paired
with JSON timestamp metadata, normalizes the audio, transcribes it with a
Whisper-style model, and emits per-recording and combined transcripts
annotated with quality signals and video-relative timestamps.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
