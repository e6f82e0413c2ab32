package skylift

import (
	"errors"
	"log/slog"
	"time"
)

// skyliftConfig holds mutable state during [Skylift] construction.
type skyliftConfig struct {
	projectID     string
	region        string
	zone          string
	repository    string
	bucket        string
	pipeline      string
	releasePrefix string
	autoApprove   bool

	clusters        []Cluster
	templateRepo    string
	templateWorkdir string

	pollInterval    time.Duration
	clusterTimeout  time.Duration
	rolloutTimeout  time.Duration
	approvalTimeout time.Duration
	probeTimeout    time.Duration

	logger    *slog.Logger
	runner    Runner
	callbacks []func(Event)
}

// Option is a function that configures a [Skylift] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*skyliftConfig) error

// WithProject sets the Google Cloud project everything is created in.
// Required.
func WithProject(projectID string) Option {
	return func(cfg *skyliftConfig) error {
		if projectID == "" {
			return errors.New("project ID cannot be empty")
		}
		cfg.projectID = projectID
		return nil
	}
}

// WithRegion sets the Google Cloud region (e.g. "us-central1"). Required.
func WithRegion(region string) Option {
	return func(cfg *skyliftConfig) error {
		if region == "" {
			return errors.New("region cannot be empty")
		}
		cfg.region = region
		return nil
	}
}

// WithZone sets the compute zone. Must be the region plus a single zone
// letter (e.g. "us-central1-a"). Required.
func WithZone(zone string) Option {
	return func(cfg *skyliftConfig) error {
		if zone == "" {
			return errors.New("zone cannot be empty")
		}
		cfg.zone = zone
		return nil
	}
}

// WithRepository sets the Artifact Registry repository name for demo
// images. Required.
func WithRepository(repository string) Option {
	return func(cfg *skyliftConfig) error {
		if repository == "" {
			return errors.New("repository cannot be empty")
		}
		cfg.repository = repository
		return nil
	}
}

// WithBucket sets the Cloud Build staging bucket name.
//
// Defaults to "<project>_cloudbuild" if not specified.
func WithBucket(bucket string) Option {
	return func(cfg *skyliftConfig) error {
		if bucket == "" {
			return errors.New("bucket cannot be empty")
		}
		cfg.bucket = bucket
		return nil
	}
}

// WithPipeline sets the Cloud Deploy delivery pipeline identifier.
// Required.
func WithPipeline(pipeline string) Option {
	return func(cfg *skyliftConfig) error {
		if pipeline == "" {
			return errors.New("pipeline cannot be empty")
		}
		cfg.pipeline = pipeline
		return nil
	}
}

// WithReleasePrefix sets the prefix for generated release names. Each
// bootstrap run appends a short random suffix so re-runs never collide.
//
// Defaults to "rel".
func WithReleasePrefix(prefix string) Option {
	return func(cfg *skyliftConfig) error {
		if !clusterNamePattern.MatchString(prefix) {
			return errors.New("invalid release prefix: " + prefix)
		}
		cfg.releasePrefix = prefix
		return nil
	}
}

// WithAutoApprove controls the best-effort approval step. When enabled
// (the default), a rollout observed in PENDING_APPROVAL on an
// approval-gated target is approved automatically; when disabled, the
// flow waits for a manual approval until the rollout timeout elapses.
func WithAutoApprove(enabled bool) Option {
	return func(cfg *skyliftConfig) error {
		cfg.autoApprove = enabled
		return nil
	}
}

// WithCluster registers a [Cluster] to provision and target. Clusters
// are registered in pipeline order: the first receives the initial
// release, each subsequent one is promoted to after the prior stage's
// rollout succeeded. At least one cluster is required.
func WithCluster(c Cluster) Option {
	return func(cfg *skyliftConfig) error {
		if c.Name() == "" {
			return errors.New("cluster must be created with NewCluster")
		}
		cfg.clusters = append(cfg.clusters, c)
		return nil
	}
}

// WithTemplate sets the demo template: the git repository to clone and
// the local working directory to clone it into. Without a template, the
// flow provisions infrastructure only and skips the build/deploy phases.
func WithTemplate(repo, workdir string) Option {
	return func(cfg *skyliftConfig) error {
		if repo == "" {
			return errors.New("template repo cannot be empty")
		}
		if workdir == "" {
			return errors.New("template workdir cannot be empty")
		}
		cfg.templateRepo = repo
		cfg.templateWorkdir = workdir
		return nil
	}
}

// WithPollInterval sets the sleep between status checks for every watch
// the bootstrap flow runs. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *skyliftConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithClusterTimeout bounds each cluster-readiness wait.
// Defaults to 15 minutes.
//
// Returns an error if the duration is negative.
func WithClusterTimeout(d time.Duration) Option {
	return func(cfg *skyliftConfig) error {
		if d < 0 {
			return errors.New("cluster timeout cannot be negative")
		}
		cfg.clusterTimeout = d
		return nil
	}
}

// WithRolloutTimeout bounds each rollout-completion wait.
// Defaults to 10 minutes.
//
// Returns an error if the duration is negative.
func WithRolloutTimeout(d time.Duration) Option {
	return func(cfg *skyliftConfig) error {
		if d < 0 {
			return errors.New("rollout timeout cannot be negative")
		}
		cfg.rolloutTimeout = d
		return nil
	}
}

// WithApprovalTimeout bounds the pending-approval detection wait. A
// timeout here is benign: it means no approval gate materialised.
// Defaults to 30 seconds.
//
// Returns an error if the duration is negative.
func WithApprovalTimeout(d time.Duration) Option {
	return func(cfg *skyliftConfig) error {
		if d < 0 {
			return errors.New("approval timeout cannot be negative")
		}
		cfg.approvalTimeout = d
		return nil
	}
}

// WithProbeTimeout bounds each individual status-describe invocation, so
// one hung CLI call cannot stall a polling loop. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithProbeTimeout(d time.Duration) Option {
	return func(cfg *skyliftConfig) error {
		if d <= 0 {
			return errors.New("probe timeout must be positive")
		}
		cfg.probeTimeout = d
		return nil
	}
}

// WithLogger sets the structured logger for the flow.
// Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *skyliftConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithRunner substitutes the command executor. The default shells out
// via os/exec; tests inject a fake to drive orchestration flows without
// touching any cloud project.
func WithRunner(r Runner) Option {
	return func(cfg *skyliftConfig) error {
		if r == nil {
			return errors.New("runner cannot be nil")
		}
		cfg.runner = r
		return nil
	}
}

// WithEventCallback registers a callback invoked synchronously for every
// step outcome and poll iteration. May be given multiple times; callbacks
// fire in registration order. See [Event].
//
// Nil callbacks are silently ignored.
func WithEventCallback(cb func(Event)) Option {
	return func(cfg *skyliftConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}
