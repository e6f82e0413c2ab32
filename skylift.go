package skylift

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/skylift/internal/journal"
	"github.com/jpalmerr/skylift/internal/poller"
	"github.com/jpalmerr/skylift/internal/runner"
)

// Defaults applied by [New] when the corresponding option is not given.
const (
	defaultClusterTimeout  = 15 * time.Minute
	defaultRolloutTimeout  = 10 * time.Minute
	defaultApprovalTimeout = 30 * time.Second
	defaultReleasePrefix   = "rel"
)

// diagnosticDepth is how many recent journal entries a [BootstrapError]
// carries.
const diagnosticDepth = 10

var (
	// projectPattern matches valid Google Cloud project identifiers.
	projectPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{4,28}[a-z0-9]$`)

	// regionPattern matches region identifiers like "us-central1".
	regionPattern = regexp.MustCompile(`^[a-z]+-[a-z]+[0-9]+$`)

	// zonePattern matches a region followed by a single zone letter.
	zonePattern = regexp.MustCompile(`^[a-z]+-[a-z]+[0-9]+-[a-z]$`)
)

// Skylift orchestrates the Cloud Deploy demo bootstrap: enable APIs,
// provision clusters, build and push the demo images, apply the delivery
// pipeline, create a release, and poll each stage's rollout to
// completion.
//
// Skylift is immutable after creation via [New]. All cloud interaction
// goes through its [Runner] as external CLI invocations; substitute a
// fake with [WithRunner] to exercise the flow in tests. The flow itself
// is synchronous and single-threaded: [Skylift.Bootstrap] blocks the
// calling goroutine, and progress is reported through [WithEventCallback]
// rather than background goroutines.
type Skylift struct {
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
	poller    *poller.Poller
	journal   *journal.Journal
	callbacks []func(Event)

	// lookTools is swapped in tests to avoid PATH dependence.
	lookTools func(names ...string) error
}

// New creates a [Skylift] with the given options.
//
// Required: [WithProject], [WithRegion], [WithZone], [WithRepository],
// [WithPipeline], and at least one [WithCluster]. The zone must be the
// region plus a single zone letter. Cluster names and targets must be
// unique.
//
// Example:
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
func New(opts ...Option) (*Skylift, error) {
	cfg := &skyliftConfig{
		releasePrefix:   defaultReleasePrefix,
		autoApprove:     true,
		pollInterval:    defaultWatchInterval,
		clusterTimeout:  defaultClusterTimeout,
		rolloutTimeout:  defaultRolloutTimeout,
		approvalTimeout: defaultApprovalTimeout,
		probeTimeout:    defaultWatchDescribeTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.bucket == "" {
		cfg.bucket = cfg.projectID + "_cloudbuild"
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.runner == nil {
		cfg.runner = NewExecRunner()
	}

	return &Skylift{
		projectID:       cfg.projectID,
		region:          cfg.region,
		zone:            cfg.zone,
		repository:      cfg.repository,
		bucket:          cfg.bucket,
		pipeline:        cfg.pipeline,
		releasePrefix:   cfg.releasePrefix,
		autoApprove:     cfg.autoApprove,
		clusters:        append([]Cluster(nil), cfg.clusters...),
		templateRepo:    cfg.templateRepo,
		templateWorkdir: cfg.templateWorkdir,
		pollInterval:    cfg.pollInterval,
		clusterTimeout:  cfg.clusterTimeout,
		rolloutTimeout:  cfg.rolloutTimeout,
		approvalTimeout: cfg.approvalTimeout,
		probeTimeout:    cfg.probeTimeout,
		logger:          cfg.logger,
		runner:          cfg.runner,
		poller:          poller.New(cfg.logger),
		journal:         journal.New(),
		callbacks:       append([]func(Event){}, cfg.callbacks...),
		lookTools:       runner.CheckTools,
	}, nil
}

// validateConfig checks cross-field constraints before construction.
func validateConfig(cfg *skyliftConfig) error {
	if cfg.projectID == "" {
		return fmt.Errorf("project is required (WithProject)")
	}
	if !projectPattern.MatchString(cfg.projectID) {
		return fmt.Errorf("%q is not a valid Google Cloud project ID", cfg.projectID)
	}
	if cfg.region == "" {
		return fmt.Errorf("region is required (WithRegion)")
	}
	if !regionPattern.MatchString(cfg.region) {
		return fmt.Errorf("%q is not a valid region", cfg.region)
	}
	if cfg.zone == "" {
		return fmt.Errorf("zone is required (WithZone)")
	}
	if !zonePattern.MatchString(cfg.zone) || !strings.HasPrefix(cfg.zone, cfg.region+"-") {
		return fmt.Errorf("zone %q is not a zone of region %q", cfg.zone, cfg.region)
	}
	if cfg.repository == "" {
		return fmt.Errorf("repository is required (WithRepository)")
	}
	if cfg.pipeline == "" {
		return fmt.Errorf("pipeline is required (WithPipeline)")
	}
	if len(cfg.clusters) == 0 {
		return fmt.Errorf("at least one cluster is required (WithCluster)")
	}

	names := make(map[string]struct{}, len(cfg.clusters))
	targets := make(map[string]struct{}, len(cfg.clusters))
	for _, c := range cfg.clusters {
		if _, dup := names[c.Name()]; dup {
			return fmt.Errorf("duplicate cluster name %q", c.Name())
		}
		names[c.Name()] = struct{}{}
		if _, dup := targets[c.Target()]; dup {
			return fmt.Errorf("duplicate target %q", c.Target())
		}
		targets[c.Target()] = struct{}{}
	}
	return nil
}

// Poll drives one [Watch] to resolution through the configured [Runner].
//
// Each iteration runs the watch's probe with the watch's describe budget,
// applies its extractor (or [DefaultExtractor]), and tests the success
// and failure predicates in that order; the first match resolves the
// result immediately. A probe that cannot be started or times out is
// observed as [StatusUnknown] and retried. Context cancellation resolves
// as timed out with the elapsed time.
//
// Poll blocks the calling goroutine for up to the watch's timeout and
// never returns a Go error for ordinary non-success status: inspect the
// [PollResult] variant.
func (s *Skylift) Poll(ctx context.Context, w Watch) PollResult {
	probe := w.Probe()
	extract := w.Extractor()
	if extract == nil {
		extract = DefaultExtractor
	}

	spec := poller.Spec{
		Name: w.Name(),
		Describe: func(ctx context.Context) (string, error) {
			res := s.runner.Run(ctx, Command{
				Name:    w.Name(),
				Tool:    probe.Tool,
				Args:    probe.Args,
				Timeout: w.DescribeTimeout(),
			})
			if res.ExitCode < 0 && res.Err != nil {
				// could not start or timed out: transient, retried
				return "", res.Err
			}
			return string(extract(res.Stdout, res.ExitCode)), nil
		},
		Success: func(status string) bool {
			return w.Success()(Status(status))
		},
		Interval: w.Interval(),
		Timeout:  w.Timeout(),
		OnPoll: func(o poller.Observation) {
			s.emit(Event{
				Kind:    EventPoll,
				Step:    o.Name,
				Status:  Status(o.Status),
				Attempt: o.Attempt,
				Elapsed: o.Elapsed,
				Err:     o.Err,
			})
			if cb := w.OnPoll(); cb != nil {
				cb(Observation{
					Watch:   o.Name,
					Status:  Status(o.Status),
					Attempt: o.Attempt,
					Elapsed: o.Elapsed,
					Err:     o.Err,
				})
			}
		},
	}
	if failure := w.Failure(); failure != nil {
		spec.Failure = func(status string) bool {
			return failure(Status(status))
		}
	}

	r := s.poller.Poll(ctx, spec)

	var outcome Outcome
	switch r.Outcome {
	case poller.Succeeded:
		outcome = OutcomeSucceeded
	case poller.Failed:
		outcome = OutcomeFailed
	default:
		outcome = OutcomeTimedOut
	}
	return PollResult{
		Watch:      r.Name,
		Outcome:    outcome,
		LastStatus: Status(r.LastStatus),
		Reason:     r.Reason,
		Elapsed:    r.Elapsed,
		Attempts:   r.Attempts,
	}
}

// Bootstrap runs the full demo bootstrap flow.
//
// Phases, in order: prerequisite tool check, infrastructure provisioning,
// cluster-readiness polling, kubectl credentials, template clone and
// render, image build, pipeline apply, IAM repair, release creation, and
// per-stage rollout polling with promotion between stages. A release is
// promoted to the next target only after the prior stage's rollout
// polled SUCCEEDED.
//
// A missing tool returns an error wrapping [ErrMissingTool] before any
// cloud mutation. A fatal step failure returns a [*BootstrapError]
// carrying recent journal diagnostics. Best-effort steps (approval, IAM
// repair) log a warning and never fail the flow.
func (s *Skylift) Bootstrap(ctx context.Context) error {
	if err := s.checkPrerequisites(); err != nil {
		return err
	}

	s.logger.Info("bootstrap starting",
		"project", s.projectID,
		"region", s.region,
		"clusters", len(s.clusters),
	)

	if err := s.runSteps(ctx, s.provisioningSteps()); err != nil {
		return err
	}
	if err := s.waitForClusters(ctx); err != nil {
		return err
	}
	if err := s.runSteps(ctx, s.credentialSteps()); err != nil {
		return err
	}

	if s.templateRepo == "" {
		s.logger.Info("no template configured, infrastructure-only bootstrap complete")
		return nil
	}

	if err := s.runSteps(ctx, s.templateSteps()); err != nil {
		return err
	}
	if err := s.buildImages(ctx); err != nil {
		return err
	}
	if err := s.runSteps(ctx, s.pipelineSteps()); err != nil {
		return err
	}
	s.repairDeployRoles(ctx)

	release := s.releasePrefix + "-" + uuid.NewString()[:8]
	if err := s.runSteps(ctx, []step{s.releaseStep(release)}); err != nil {
		return err
	}
	if err := s.rolloutStages(ctx, release); err != nil {
		return err
	}

	s.logger.Info("bootstrap complete", "release", release)
	return nil
}

// Teardown removes everything Bootstrap created, in reverse order.
//
// Every teardown step is best-effort: resources that are already gone,
// or that fail to delete, are logged and skipped. Teardown returns an
// error only when a prerequisite tool is missing.
func (s *Skylift) Teardown(ctx context.Context) error {
	if err := s.lookTools("gcloud", "gsutil"); err != nil {
		return fmt.Errorf("prerequisite check failed: %w", err)
	}

	s.logger.Info("teardown starting", "project", s.projectID)
	// all steps are best-effort, so this never returns an error
	_ = s.runSteps(ctx, s.teardownSteps())
	s.logger.Info("teardown complete")
	return nil
}

// checkPrerequisites verifies every external tool the flow will invoke
// is on PATH, before anything is mutated.
func (s *Skylift) checkPrerequisites() error {
	tools := []string{"gcloud", "gsutil", "kubectl"}
	if s.templateRepo != "" {
		tools = append(tools, "git", "skaffold")
	}
	if err := s.lookTools(tools...); err != nil {
		return fmt.Errorf("prerequisite check failed: %w", err)
	}
	return nil
}

// waitForClusters polls every cluster until RUNNING.
func (s *Skylift) waitForClusters(ctx context.Context) error {
	for _, c := range s.clusters {
		w, err := ClusterRunning(c.Name(), s.zone, s.projectID,
			WithInterval(s.pollInterval),
			WithTimeout(s.clusterTimeout),
			WithDescribeTimeout(s.probeTimeout),
		)
		if err != nil {
			return s.fatal("wait-cluster", err)
		}

		res := s.Poll(ctx, w)
		s.recordPoll(res)
		if !res.Succeeded() {
			return s.fatal("wait-cluster", fmt.Errorf(
				"cluster %s %s after %s (last status %s)",
				c.Name(), res.Outcome, res.Elapsed.Round(time.Second), res.LastStatus,
			))
		}
		s.logger.Info("cluster ready", "cluster", c.Name(), "attempts", res.Attempts)
	}
	return nil
}

// buildImages runs the skaffold build. On failure it records the five
// most recent cloud builds as diagnostic context before aborting, since
// the build log lives server-side.
func (s *Skylift) buildImages(ctx context.Context) error {
	st := s.buildStep()
	if err := s.execute(ctx, st); err != nil {
		s.collectBuildDiagnostics(ctx)
		return s.fatal(st.name, err)
	}
	return nil
}

// collectBuildDiagnostics records recent cloud builds into the journal.
func (s *Skylift) collectBuildDiagnostics(ctx context.Context) {
	cmd := s.gcloud("list-builds", "builds", "list", "--limit", "5")
	res := s.runner.Run(ctx, cmd)

	entry := journal.Entry{
		Step:     "list-builds",
		Detail:   cmd.String(),
		Status:   "ok",
		ExitCode: res.ExitCode,
		Duration: res.Latency,
	}
	if !res.Ok() {
		entry.Status = "failed"
		entry.Err = firstLine(res.Stderr)
	} else {
		s.logger.Error("recent cloud builds", "output", strings.TrimSpace(string(res.Stdout)))
	}
	s.journal.Record(entry)
}

// rolloutStages polls every stage's rollout to completion, approving
// gated stages when auto-approve is on and promoting the release to the
// next target after each success.
func (s *Skylift) rolloutStages(ctx context.Context, release string) error {
	for i, c := range s.clusters {
		if c.RequiresApproval() && s.autoApprove {
			s.approveIfPending(ctx, release, c)
		}

		w, err := RolloutSucceeded(release, c.Target(), s.pipeline, s.region, s.projectID,
			WithInterval(s.pollInterval),
			WithTimeout(s.rolloutTimeout),
			WithDescribeTimeout(s.probeTimeout),
		)
		if err != nil {
			return s.fatal("wait-rollout", err)
		}

		res := s.Poll(ctx, w)
		s.recordPoll(res)
		if !res.Succeeded() {
			reason := res.Reason
			if reason == "" {
				reason = fmt.Sprintf("%s after %s", res.Outcome, res.Elapsed.Round(time.Second))
			}
			return s.fatal("wait-rollout", fmt.Errorf(
				"rollout to %s did not succeed: %s (last status %s)",
				c.Target(), reason, res.LastStatus,
			))
		}
		s.logger.Info("rollout succeeded", "target", c.Target(), "attempts", res.Attempts)

		if i+1 < len(s.clusters) {
			next := s.clusters[i+1].Target()
			promote := step{
				name:    "promote-release",
				policy:  Fatal,
				command: s.promoteCommand(release, next),
			}
			if err := s.runSteps(ctx, []step{promote}); err != nil {
				return err
			}
		}
	}
	return nil
}

// approveIfPending watches briefly for the stage's rollout to park in
// PENDING_APPROVAL and approves it when it does. Everything here is
// best-effort: a manual approval still unblocks the subsequent rollout
// wait if this path goes wrong.
func (s *Skylift) approveIfPending(ctx context.Context, release string, c Cluster) {
	w, err := RolloutPendingApproval(release, c.Target(), s.pipeline, s.region, s.projectID,
		WithInterval(s.pollInterval),
		WithTimeout(s.approvalTimeout),
		WithDescribeTimeout(s.probeTimeout),
	)
	if err != nil {
		s.logger.Warn("approval watch setup failed", "target", c.Target(), "error", err)
		return
	}

	res := s.Poll(ctx, w)
	s.recordPoll(res)
	if !res.Succeeded() {
		// timed out: no approval gate materialised; failed: the rollout
		// is already terminal. Either way there is nothing to approve.
		s.logger.Info("no pending approval detected", "target", c.Target(), "status", res.LastStatus)
		return
	}

	listRes := s.runner.Run(ctx, s.listRolloutsCommand(release, c.Target()))
	rollout := firstLine(listRes.Stdout)
	if !listRes.Ok() || rollout == "" {
		s.logger.Warn("could not resolve rollout name for approval", "target", c.Target())
		return
	}

	approve := step{
		name:    "approve-rollout",
		policy:  BestEffort,
		command: s.approveCommand(rollout),
	}
	_ = s.runSteps(ctx, []step{approve})
}

// repairDeployRoles grants the default compute service account the roles
// Cloud Deploy's runtime needs. Projects created before these defaults
// changed are missing them; everything here is best-effort because
// correctly configured projects do not need it.
func (s *Skylift) repairDeployRoles(ctx context.Context) {
	res := s.runner.Run(ctx, s.describeProjectNumberCommand())
	number := firstLine(res.Stdout)
	if !res.Ok() || number == "" {
		s.logger.Warn("could not resolve project number, skipping IAM repair")
		return
	}

	member := fmt.Sprintf("serviceAccount:%s-compute@developer.gserviceaccount.com", number)
	for _, role := range []string{"roles/clouddeploy.jobRunner", "roles/container.developer"} {
		bind := step{
			name:    "bind-iam-role",
			policy:  BestEffort,
			command: s.bindRoleCommand(member, role),
		}
		_ = s.runSteps(ctx, []step{bind})
	}
}

// runSteps executes steps in order, applying each step's policy: a fatal
// failure aborts with a [*BootstrapError], a best-effort failure logs a
// warning and continues.
func (s *Skylift) runSteps(ctx context.Context, steps []step) error {
	for _, st := range steps {
		if err := s.execute(ctx, st); err != nil {
			if st.policy == BestEffort {
				s.logger.Warn("best-effort step failed", "step", st.name, "error", err)
				continue
			}
			return s.fatal(st.name, err)
		}
	}
	return nil
}

// execute runs one step, records its journal entry, and emits an event.
// It returns an error on failure regardless of the step's policy; the
// caller applies the policy.
func (s *Skylift) execute(ctx context.Context, st step) error {
	start := time.Now()

	if st.local != nil {
		err := st.local(ctx)
		s.finishStep(st, "(local)", "ok", 0, time.Since(start), err)
		return err
	}

	s.logger.Debug("running step", "step", st.name, "command", st.command.String())
	res := s.runner.Run(ctx, st.command)

	if !res.Ok() && st.allowExisting && alreadyExists(res) {
		s.logger.Info("resource already exists, skipping", "step", st.name)
		s.finishStep(st, st.command.String(), "skipped", res.ExitCode, res.Latency, nil)
		return nil
	}
	if !res.Ok() {
		err := res.Err
		if err == nil {
			err = fmt.Errorf("exited %d", res.ExitCode)
		}
		if detail := firstLine(res.Stderr); detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		s.finishStep(st, st.command.String(), "ok", res.ExitCode, res.Latency, err)
		return err
	}

	s.finishStep(st, st.command.String(), "ok", 0, res.Latency, nil)
	return nil
}

// finishStep records the journal entry and event for one executed step.
func (s *Skylift) finishStep(st step, detail, status string, exitCode int, d time.Duration, err error) {
	entry := journal.Entry{
		Step:     st.name,
		Detail:   detail,
		Status:   status,
		ExitCode: exitCode,
		Duration: d,
	}
	if err != nil {
		entry.Status = "failed"
		entry.Err = err.Error()
	}
	s.journal.Record(entry)

	s.emit(Event{
		Kind:     EventStep,
		Step:     st.name,
		Policy:   st.policy,
		Duration: d,
		Err:      err,
	})
}

// recordPoll journals the outcome of one completed watch.
func (s *Skylift) recordPoll(res PollResult) {
	entry := journal.Entry{
		Step:     res.Watch,
		Detail:   fmt.Sprintf("%d attempts", res.Attempts),
		Status:   res.Outcome.String(),
		Duration: res.Elapsed,
		Err:      res.Reason,
	}
	s.journal.Record(entry)
}

// fatal wraps a step failure with recent journal diagnostics.
func (s *Skylift) fatal(stepName string, err error) error {
	return &BootstrapError{
		Step:        stepName,
		Diagnostics: s.journal.Render(diagnosticDepth),
		err:         err,
	}
}

// emit delivers an event to every registered callback, recovering any
// callback panic so user code cannot abort the flow.
func (s *Skylift) emit(ev Event) {
	for _, cb := range s.callbacks {
		s.invokeCallbackSafe(cb, ev)
	}
}

func (s *Skylift) invokeCallbackSafe(cb func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("event callback panic",
				"step", ev.Step,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(ev)
}

// alreadyExists reports whether a failed command's output indicates the
// resource it tried to create is already there. gcloud prints
// "already exists" or the API's ALREADY_EXISTS code; git clone prints
// "already exists and is not an empty directory".
func alreadyExists(res CommandResult) bool {
	if bytes.Contains(res.Stderr, []byte("ALREADY_EXISTS")) {
		return true
	}
	combined := strings.ToLower(string(res.Stderr) + string(res.Stdout))
	return strings.Contains(combined, "already exists")
}

// firstLine returns the first non-empty trimmed line of b.
func firstLine(b []byte) string {
	for _, line := range strings.Split(string(b), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
