package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/skylift/config"
)

// validateCmd validates a config file without touching any cloud project.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a skylift configuration file without running anything.

This command parses the YAML, expands environment variables, and
validates all fields. It's useful for CI/CD pipelines or pre-flight
checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  skylift validate -c skylift.yaml
  skylift validate --config /etc/skylift/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	gated := 0
	for _, c := range cfg.Clusters {
		if c.RequiresApproval {
			gated++
		}
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Project:       %s\n", cfg.ProjectID)
	fmt.Printf("  Region/zone:   %s / %s\n", cfg.Region, cfg.Zone)
	fmt.Printf("  Pipeline:      %s\n", cfg.Pipeline)
	fmt.Printf("  Clusters:      %d (%d approval-gated)\n", len(cfg.Clusters), gated)
	if cfg.Template.Repo != "" {
		fmt.Printf("  Template:      %s -> %s\n", cfg.Template.Repo, cfg.Template.Workdir)
	} else {
		fmt.Printf("  Template:      none (infrastructure only)\n")
	}
	fmt.Printf("  Poll interval: %s\n", cfg.Poll.Interval.Duration())

	return nil
}
