package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/skylift"
	"github.com/jpalmerr/skylift/config"
)

var (
	stepOK   = color.New(color.FgGreen)
	stepWarn = color.New(color.FgYellow)
	stepBad  = color.New(color.FgRed, color.Bold)
	pollLine = color.New(color.FgCyan)
)

// upCmd bootstraps the demo.
var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Bootstrap the demo",
	Long: `Bootstrap the Cloud Deploy demo described by the config file.

The command provisions infrastructure, builds and deploys the demo, and
waits for every stage's rollout to succeed. It is safe to re-run: create
steps tolerate resources that already exist.

Exit codes:
  0 - Bootstrap succeeded
  1 - Invalid config or a required tool is missing (nothing was changed)
  2 - A fatal step failed part-way; diagnostics are printed to stderr

Example:
  skylift up -c skylift.yaml
  skylift up -c skylift.yaml --plan`,
	RunE: runUp,
}

func init() {
	rootCmd.AddCommand(upCmd)

	upCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = upCmd.MarkFlagRequired("config")
	upCmd.Flags().Bool("plan", false, "print the planned steps and exit without running anything")

	upCmd.SilenceUsage = true
}

func runUp(cmd *cobra.Command, args []string) error {
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

	if planOnly, _ := cmd.Flags().GetBool("plan"); planOnly {
		printPlan(s.Plan())
		return nil
	}

	// cancel the flow on SIGINT/SIGTERM; in-flight polls resolve as
	// timed out and the flow aborts
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Bootstrap(ctx); err != nil {
		var be *skylift.BootstrapError
		if errors.As(err, &be) && be.Diagnostics != "" {
			stepBad.Fprintln(os.Stderr, "recent steps:")
			fmt.Fprintln(os.Stderr, be.Diagnostics)
		}
		return err
	}

	stepOK.Println("bootstrap complete")
	return nil
}

// printEvent renders one progress event as a terminal line.
func printEvent(ev skylift.Event) {
	switch ev.Kind {
	case skylift.EventPoll:
		pollLine.Printf("  %s: %s (attempt %d, %s)\n",
			ev.Step, ev.Status, ev.Attempt, ev.Elapsed.Round(time.Second))
	case skylift.EventStep:
		if ev.Err != nil {
			if ev.Policy == skylift.BestEffort {
				stepWarn.Printf("~ %s: %v\n", ev.Step, ev.Err)
			} else {
				stepBad.Printf("x %s: %v\n", ev.Step, ev.Err)
			}
			return
		}
		stepOK.Printf("+ %s (%s)\n", ev.Step, ev.Duration.Round(time.Millisecond))
	}
}

// printPlan renders the planned steps without running anything.
func printPlan(steps []skylift.StepInfo) {
	for _, st := range steps {
		marker := stepOK
		if st.Policy == skylift.BestEffort {
			marker = stepWarn
		}
		marker.Printf("%-18s", st.Name)
		fmt.Printf(" [%s] %s\n", st.Policy, st.Detail)
	}
}
