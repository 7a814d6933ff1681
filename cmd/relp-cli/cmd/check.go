// file: cmd/relp-cli/cmd/check.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"relp-ingest/config"
)

var checkCmd = &cobra.Command{
	Use:   "check --config <config.yaml>",
	Short: "Validate a relpd configuration file",
	Long: `The check command loads a configuration file the same way relpd does,
applies defaults and runs full validation, then prints a summary of the
listeners that would be registered. It never binds a socket, so it is safe
to run on a host where relpd is already listening.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		fmt.Printf("configuration OK: %s\n", configPath)
		fmt.Printf("  input name:  %s\n", cfg.Input.Name)
		fmt.Printf("  on error:    %s\n", cfg.Input.OnError)
		fmt.Printf("  family:      %s\n", cfg.Network.Family)
		fmt.Printf("  pipeline:    %s\n", cfg.Pipeline.Mode)

		total := len(cfg.Input.Listeners) + len(cfg.Input.Ports)
		fmt.Printf("  listeners:   %d\n", total)
		for _, lst := range cfg.Input.Listeners {
			state := "plain"
			if lst.TLS.Enable {
				state = "tls"
				if lst.TLS.Compression {
					state = "tls+compression"
				}
			}
			port := lst.Port
			if port == "" {
				port = "(missing port - listener will be skipped)"
			}
			fmt.Printf("    - port %s (%s)\n", port, state)
		}
		for _, port := range cfg.Input.Ports {
			fmt.Printf("    - port %s (plain, legacy form)\n", port)
		}

		if cfg.Routing.Target != "" {
			fmt.Printf("  ruleset:     %s (fallback %s)\n", cfg.Routing.Target, cfg.Routing.Default)
		} else {
			fmt.Printf("  ruleset:     %s (default)\n", cfg.Routing.Default)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().String("config", "config/config.yaml", "Path to the configuration file to validate")
}
