// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gitlab-review-stats",
	Short: "A CLI tool to measure merge request review durations.",
	Long: `gitlab-review-stats exports merged GitLab merge requests over a time
window and computes how long each one stayed open, both wall-clock and
business-hours only, with per-project and overall statistics.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadEnvFiles)

	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}

// loadEnvFiles picks up GITLAB_TOKEN and friends from a local .env file when
// present. A missing file is fine.
func loadEnvFiles() {
	godotenv.Load(".env")
}
