// file: cmd/relp-cli/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"
	"relp-ingest/cmd/relp-cli/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "relp-cli",
	Short: "A CLI for checking configuration and sending test events to a relpd listener.",
	Long: `relp-cli is a command-line companion to the relpd daemon. It validates
configuration files offline and speaks the RELP protocol as a client, so a
listener can be exercised end to end without a real syslog sender: open
negotiation, optional TLS and deflate compression, event delivery with
acknowledgements, and orderly session close.`,
	// If a subcommand is not provided, default to showing help.
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Add all subcommands from the cmd package
	cmd.AddCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, so we just need to exit
		os.Exit(1)
	}
}
