package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "activator",
	Short: "Keep an LLM API usage window on a predictable cadence",
	Long: `activator sends a small activation request to an OpenAI-compatible or
Anthropic API right away and then on a fixed interval (or cron schedule), so the
provider's usage window resets at times you choose.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}
