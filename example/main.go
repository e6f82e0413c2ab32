// Command example bootstraps a two-stage Cloud Deploy demo with the
// skylift SDK directly, without a config file.
//
// Run with a real project:
//
//	go run ./example -project my-demo-project
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/skylift"
)

func main() {
	project := flag.String("project", "", "Google Cloud project ID (required)")
	flag.Parse()

	if *project == "" {
		flag.Usage()
		os.Exit(1)
	}

	staging, err := skylift.NewCluster("staging")
	if err != nil {
		log.Fatal(err)
	}
	prod, err := skylift.NewCluster("prod",
		skylift.WithNodeCount(2),
		skylift.WithApproval(),
	)
	if err != nil {
		log.Fatal(err)
	}

	s, err := skylift.New(
		skylift.WithProject(*project),
		skylift.WithRegion("us-central1"),
		skylift.WithZone("us-central1-a"),
		skylift.WithRepository("cd-demo"),
		skylift.WithPipeline("cd-demo-pipeline"),
		skylift.WithCluster(staging),
		skylift.WithCluster(prod),
		skylift.WithTemplate("https://github.com/GoogleCloudPlatform/cloud-deploy-tutorials.git", "/tmp/cd-demo"),
		skylift.WithEventCallback(func(ev skylift.Event) {
			if ev.Kind == skylift.EventPoll {
				fmt.Printf("  %s: %s (%s)\n", ev.Step, ev.Status, ev.Elapsed.Round(time.Second))
				return
			}
			if ev.Err != nil {
				fmt.Printf("x %s: %v\n", ev.Step, ev.Err)
				return
			}
			fmt.Printf("+ %s\n", ev.Step)
		}),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Bootstrap(ctx); err != nil {
		var be *skylift.BootstrapError
		if errors.As(err, &be) && be.Diagnostics != "" {
			fmt.Fprintln(os.Stderr, "recent steps:")
			fmt.Fprintln(os.Stderr, be.Diagnostics)
		}
		log.Fatal(err)
	}

	fmt.Println("demo is up")
}
