package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/skylift"
	"github.com/jpalmerr/skylift/config"
)

// downCmd tears the demo down.
var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Tear the demo down",
	Long: `Delete everything "skylift up" created: the delivery pipeline, the
clusters, the image repository, the build bucket, and the local template
working directory.

Every deletion is best-effort: resources that are already gone are
skipped, and one failed deletion does not stop the rest.

Example:
  skylift down -c skylift.yaml`,
	RunE: runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)

	downCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = downCmd.MarkFlagRequired("config")

	downCmd.SilenceUsage = true
}

func runDown(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := config.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts,
		skylift.WithLogger(logger),
		skylift.WithEventCallback(printEvent),
	)

	s, err := skylift.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create skylift: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Teardown(ctx); err != nil {
		return err
	}

	stepOK.Println("teardown complete")
	return nil
}
