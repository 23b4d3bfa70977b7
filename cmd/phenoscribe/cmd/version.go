package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phenoscribe/phenoscribe/internal/config"
)

var version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("phenoscribe %s (pipeline %s)\n", version, config.PipelineVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
