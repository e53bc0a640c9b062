package cmd

import (
	"os"

	"github.com/encodeous/babelcore/state"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "babelcore",
	Short: "Babel routing core",
	Long: `babelcore holds the route table of a Babel router and authenticates its packets.
Packets are authenticated with HMAC-SHA256 or keyed BLAKE2s-128 as described in RFC 8967.`,
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
	rootCmd.AddGroup(&cobra.Group{
		ID:    "auth",
		Title: "Authentication",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "babel",
		Title: "Babel Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&state.ConfigPath, "config", "c", state.ConfigPath, "node config")
}
