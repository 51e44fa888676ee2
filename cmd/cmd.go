package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nlpforge/bpetrain/envconfig"
	"github.com/nlpforge/bpetrain/logutil"
	"github.com/nlpforge/bpetrain/version"
)

func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:     "bpetrain",
		Short:   "Byte pair encoding vocabulary trainer",
		Version: version.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
		},
	}

	rootCmd.AddCommand(
		NewTrainCmd(),
		NewEnvCmd(),
	)

	return rootCmd
}
