// Package main is the entry point for the skylift CLI.
//
// Skylift can be driven either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone
// binary approach.
//
// Usage:
//
//	skylift up -c config.yaml       # Bootstrap the demo
//	skylift down -c config.yaml     # Tear the demo down
//	skylift validate -c config.yaml # Validate configuration
//	skylift version                 # Show version info
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/skylift"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "skylift",
	Short: "Bootstrap a Cloud Deploy continuous-delivery demo",
	Long: `Skylift bootstraps a Google Cloud Deploy continuous-delivery demo.

It enables the required cloud APIs, provisions GKE clusters and an
Artifact Registry repository, builds the demo images with skaffold,
applies a delivery pipeline, creates a release, and waits for every
stage's rollout to succeed.

Quick start:
  1. Create a config file (skylift.yaml)
  2. Run: skylift up -c skylift.yaml

Example config:
  project_id: my-demo-project
  region: us-central1
  zone: us-central1-a
  repository: cd-demo
  pipeline: cd-demo-pipeline
  clusters:
    - name: staging
    - name: prod
      requires_approval: true
  template:
    repo: https://github.com/example/cd-demo-template.git
    workdir: ${DEMO_WORKDIR:-/tmp/cd-demo}`,
	// No Run/RunE means this just shows help when called without subcommands
}

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Execute runs the root command and maps errors to exit codes:
// 0 success, 1 invalid config or missing prerequisite, 2 a fatal step
// failed after cloud mutations may have happened.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var be *skylift.BootstrapError
		if errors.As(err, &be) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this skylift binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("skylift %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
