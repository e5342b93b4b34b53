package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/scangate/internal/breaker"
	"github.com/nextlevelbuilder/scangate/internal/config"
	"github.com/nextlevelbuilder/scangate/internal/toolreg"
)

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the scanner tool registry",
	}
	cmd.AddCommand(toolsListCmd())
	return cmd
}

type toolEntry struct {
	Name              string  `json:"name"`
	Command           string  `json:"command"`
	Enabled           bool    `json:"enabled"`
	ConcurrencyCap    int     `json:"concurrency_cap"`
	DefaultTimeoutSec float64 `json:"default_timeout_sec"`
}

func toolsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every registered tool and its current enabled state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			tools := toolreg.New(toolreg.Filter{Include: cfg.Tools.Include, Exclude: cfg.Tools.Exclude}, breaker.Config{
				FailureThreshold:  cfg.Breaker.FailureThreshold,
				InitialRecovery:   cfg.Breaker.RecoveryTimeout,
				TimeoutMultiplier: cfg.Breaker.TimeoutMultiplier,
				MaxRecovery:       cfg.Breaker.MaxTimeout,
				SuccessThreshold:  cfg.Breaker.SuccessThreshold,
				MaxHalfOpenCalls:  cfg.Breaker.MaxHalfOpenCalls,
				JitterFraction:    cfg.Breaker.JitterFraction,
			})

			var entries []toolEntry
			for _, d := range tools.List() {
				entries = append(entries, toolEntry{
					Name:              d.Name,
					Command:           d.Command,
					Enabled:           tools.Enabled(d.Name),
					ConcurrencyCap:    d.ConcurrencyCap,
					DefaultTimeoutSec: d.DefaultTimeoutSec,
				})
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(entries, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "NAME\tCOMMAND\tENABLED\tCONCURRENCY\tTIMEOUT_SEC\n")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%.0f\n", e.Name, e.Command, e.Enabled, e.ConcurrencyCap, e.DefaultTimeoutSec)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
