package cmd

import (
	"github.com/encodeous/babelcore/core"
	"github.com/encodeous/babelcore/state"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run babelcore",
	Long:  `Runs the routing core on the current host until it receives SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log")
		return core.Bootstrap(state.ConfigPath, logPath, verbose)
	},
	GroupID: "babel",
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringP("log", "l", "", "Also write logs to this file, overrides log_path")
}
