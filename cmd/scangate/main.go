// Command scangate runs the security-scanner execution gateway: a circuit
// breaker and resource-limited process engine fronted by stdio, HTTP/SSE,
// and MCP transports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFlag string

const appVersion = "0.1.0"

func version() string { return appVersion }

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scangate",
		Short: "Security-scanner execution gateway",
	}
	cmd.PersistentFlags().StringVar(&cfgFlag, "config", "", "path to scangate.yaml (defaults to $SCANGATE_CONFIG or ./scangate.yaml)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(doctorCmd())
	cmd.AddCommand(toolsCmd())
	return cmd
}

// resolveConfigPath mirrors the host's config-resolution precedence: an
// explicit --config flag, then SCANGATE_CONFIG, then a local scangate.yaml.
func resolveConfigPath() string {
	if cfgFlag != "" {
		return cfgFlag
	}
	if env := os.Getenv("SCANGATE_CONFIG"); env != "" {
		return env
	}
	return "scangate.yaml"
}
