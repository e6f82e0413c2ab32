// Package skylift bootstraps a Google Cloud Deploy continuous-delivery
// demo end to end: it enables the required cloud APIs, provisions GKE
// clusters and an Artifact Registry repository, builds and pushes the
// demo images with skaffold, applies a delivery pipeline, creates a
// release, and polls each stage's rollout to completion, approving
// gated stages and promoting between targets along the way.
//
// All cloud interaction happens through external CLIs (gcloud, gsutil,
// kubectl, skaffold, git) behind the [Runner] interface, so the whole
// flow can be exercised in tests with a fake runner and no cloud
// project.
//
// # Quick start
//
//	staging, _ := skylift.NewCluster("staging")
//	prod, _ := skylift.NewCluster("prod", skylift.WithApproval())
//
//	s, err := skylift.New(
//	    skylift.WithProject("my-demo-project"),
//	    skylift.WithRegion("us-central1"),
//	    skylift.WithZone("us-central1-a"),
//	    skylift.WithRepository("cd-demo"),
//	    skylift.WithPipeline("cd-demo-pipeline"),
//	    skylift.WithCluster(staging),
//	    skylift.WithCluster(prod),
//	    skylift.WithTemplate("https://github.com/example/cd-demo.git", "/tmp/cd-demo"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Bootstrap(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Watches
//
// The reusable primitive underneath the flow is the [Watch]: a probe
// command, a [StatusExtractor], and success/failure predicates, driven
// by [Skylift.Poll] until the first predicate matches or the timeout
// elapses. The builders [ClusterRunning], [RolloutSucceeded], and
// [RolloutPendingApproval] cover the three call sites of the bootstrap
// flow; custom watches poll anything whose status a CLI can print.
//
// # Progress
//
// The flow is synchronous and single-threaded. Progress is delivered
// through [WithEventCallback] as [Event] values after every step and
// every poll iteration; there are no background goroutines or spinners.
package skylift
