package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/dirjobs/am"
	"github.com/teranos/dirjobs/cmd/dirjobs/commands"
	"github.com/teranos/dirjobs/logger"
)

var rootCmd = &cobra.Command{
	Use:   "dirjobs",
	Short: "dirjobs - directory job coordinator",
	Long: `dirjobs - background jobs against directory server connections.

Jobs declare the objects they lock and the connections they need. Jobs of
the same type whose locks overlap never run together; bulk jobs batch their
change notifications into one event after the batch.

Available commands:
  am      - Show and validate configuration ("I am")
  pulse   - Run demo jobs and inspect job history
  version - Show build information

Examples:
  dirjobs am show              # Show current configuration
  dirjobs pulse demo -v        # Run simulated jobs with lifecycle logging
  dirjobs pulse history        # List recently finished jobs`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 'am show' output must stay machine-readable
		if cmd.Name() == "show" {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if !cmd.Flags().Changed("json-logs") {
			if cfg, err := am.Load(); err == nil {
				jsonLogs = cfg.Log.JSON
			}
		}
		if err := logger.InitializeWithLevel(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
