package skylift

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Policy is the explicit failure policy of a bootstrap step.
//
// The shell tooling this replaces mixed `exit 1`, `|| true`, and
// `|| echo warning` inline; here every call site carries one uniform,
// explicit flag instead.
type Policy int

const (
	// Fatal aborts the whole flow when the step fails.
	Fatal Policy = iota

	// BestEffort logs a warning when the step fails and continues.
	BestEffort
)

// String returns a short name for the policy.
func (p Policy) String() string {
	if p == BestEffort {
		return "best-effort"
	}
	return "fatal"
}

// step is one unit of bootstrap work: either an external command or a
// local function. Exactly one of command/local is set.
type step struct {
	name    string
	policy  Policy
	command Command
	local   func(ctx context.Context) error

	// allowExisting treats an "already exists" failure as success, so
	// re-running the bootstrap against a half-provisioned project is
	// idempotent for the create steps.
	allowExisting bool
}

// StepInfo describes one planned bootstrap step for display purposes.
type StepInfo struct {
	// Name is the logical operation name (e.g. "create-cluster").
	Name string

	// Policy is the step's failure policy.
	Policy Policy

	// Detail is a human-readable rendering of what will run.
	Detail string
}

// Timeouts for the slow external operations. Everything else uses the
// runner default.
const (
	createClusterTimeout = 5 * time.Minute
	buildImagesTimeout   = 20 * time.Minute
	createReleaseTimeout = 10 * time.Minute
	deleteClusterTimeout = 5 * time.Minute
)

// requiredServices are the cloud APIs the demo depends on.
var requiredServices = []string{
	"container.googleapis.com",
	"artifactregistry.googleapis.com",
	"cloudbuild.googleapis.com",
	"clouddeploy.googleapis.com",
	"storage.googleapis.com",
}

// info converts a step to its display form.
func (st step) info() StepInfo {
	detail := st.command.String()
	if st.local != nil {
		detail = "(local)"
	}
	return StepInfo{Name: st.name, Policy: st.policy, Detail: detail}
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Tool + " " + strings.Join(c.Args, " "))
}

// gcloud builds a gcloud Command with the project flag appended.
func (s *Skylift) gcloud(name string, args ...string) Command {
	return Command{
		Name: name,
		Tool: "gcloud",
		Args: append(args, "--project", s.projectID),
	}
}

// provisioningSteps are the infrastructure creation steps, in order.
func (s *Skylift) provisioningSteps() []step {
	steps := []step{
		{
			name:    "enable-services",
			policy:  Fatal,
			command: s.gcloud("enable-services", append([]string{"services", "enable"}, requiredServices...)...),
		},
		{
			name:   "create-repository",
			policy: Fatal,
			command: s.gcloud("create-repository",
				"artifacts", "repositories", "create", s.repository,
				"--repository-format", "docker",
				"--location", s.region,
			),
			allowExisting: true,
		},
		{
			name:   "create-bucket",
			policy: Fatal,
			command: Command{
				Name: "create-bucket",
				Tool: "gsutil",
				Args: []string{"mb", "-p", s.projectID, "-l", s.region, "gs://" + s.bucket},
			},
			allowExisting: true,
		},
	}

	for _, c := range s.clusters {
		cmd := s.gcloud("create-cluster",
			"container", "clusters", "create", c.Name(),
			"--zone", s.zone,
			"--num-nodes", fmt.Sprintf("%d", c.NodeCount()),
			"--machine-type", c.MachineType(),
			"--async",
		)
		cmd.Timeout = createClusterTimeout
		steps = append(steps, step{
			name:          "create-cluster",
			policy:        Fatal,
			command:       cmd,
			allowExisting: true,
		})
	}
	return steps
}

// credentialSteps fetch kubectl credentials for every cluster.
func (s *Skylift) credentialSteps() []step {
	steps := make([]step, 0, len(s.clusters))
	for _, c := range s.clusters {
		steps = append(steps, step{
			name:   "get-credentials",
			policy: Fatal,
			command: s.gcloud("get-credentials",
				"container", "clusters", "get-credentials", c.Name(),
				"--zone", s.zone,
			),
		})
	}
	return steps
}

// templateSteps clone the demo template and render its placeholders.
func (s *Skylift) templateSteps() []step {
	return []step{
		{
			name:   "clone-template",
			policy: Fatal,
			command: Command{
				Name: "clone-template",
				Tool: "git",
				Args: []string{"clone", "--depth", "1", s.templateRepo, s.templateWorkdir},
			},
			allowExisting: true,
		},
		{
			name:   "render-templates",
			policy: Fatal,
			local:  s.renderTemplates,
		},
	}
}

// buildStep builds and pushes the demo images with skaffold.
func (s *Skylift) buildStep() step {
	return step{
		name:   "build-images",
		policy: Fatal,
		command: Command{
			Name: "build-images",
			Tool: "skaffold",
			Args: []string{
				"build",
				"--default-repo", s.imageRepo(),
				"--push",
				"--file-output", "artifacts.json",
			},
			Dir:     s.templateWorkdir,
			Timeout: buildImagesTimeout,
		},
	}
}

// pipelineSteps apply the delivery pipeline and its targets.
func (s *Skylift) pipelineSteps() []step {
	apply := s.gcloud("apply-pipeline",
		"deploy", "apply",
		"--file", "clouddeploy.yaml",
		"--region", s.region,
	)
	apply.Dir = s.templateWorkdir
	steps := []step{{name: "apply-pipeline", policy: Fatal, command: apply}}

	for _, c := range s.clusters {
		cmd := s.gcloud("apply-target",
			"deploy", "apply",
			"--file", fmt.Sprintf("target-%s.yaml", c.Target()),
			"--region", s.region,
		)
		cmd.Dir = s.templateWorkdir
		steps = append(steps, step{name: "apply-target", policy: Fatal, command: cmd})
	}
	return steps
}

// releaseStep creates the release that starts the first rollout.
func (s *Skylift) releaseStep(release string) step {
	cmd := s.gcloud("create-release",
		"deploy", "releases", "create", release,
		"--delivery-pipeline", s.pipeline,
		"--region", s.region,
		"--build-artifacts", "artifacts.json",
	)
	cmd.Dir = s.templateWorkdir
	cmd.Timeout = createReleaseTimeout
	return step{name: "create-release", policy: Fatal, command: cmd}
}

// describeProjectNumberCommand fetches the numeric project ID, needed to
// name the default compute service account for IAM repair.
func (s *Skylift) describeProjectNumberCommand() Command {
	return s.gcloud("describe-project",
		"projects", "describe", s.projectID,
		"--format", "value(projectNumber)",
	)
}

// bindRoleCommand grants one role to a member on the project.
func (s *Skylift) bindRoleCommand(member, role string) Command {
	return Command{
		Name: "bind-iam-role",
		Tool: "gcloud",
		Args: []string{
			"projects", "add-iam-policy-binding", s.projectID,
			"--member", member,
			"--role", role,
			"--quiet",
		},
	}
}

// listRolloutsCommand resolves the newest rollout of the release on the
// given target to its resource name.
func (s *Skylift) listRolloutsCommand(release, target string) Command {
	return s.gcloud("list-rollouts",
		"deploy", "rollouts", "list",
		"--release", release,
		"--delivery-pipeline", s.pipeline,
		"--region", s.region,
		"--filter", "targetId="+target,
		"--sort-by", "~createTime",
		"--limit", "1",
		"--format", "value(name)",
	)
}

// approveCommand approves a rollout by resource name.
func (s *Skylift) approveCommand(rollout string) Command {
	return s.gcloud("approve-rollout",
		"deploy", "rollouts", "approve", rollout,
		"--delivery-pipeline", s.pipeline,
		"--region", s.region,
		"--quiet",
	)
}

// promoteCommand promotes the release to the given target.
func (s *Skylift) promoteCommand(release, target string) Command {
	return s.gcloud("promote-release",
		"deploy", "releases", "promote",
		"--release", release,
		"--delivery-pipeline", s.pipeline,
		"--region", s.region,
		"--to-target", target,
		"--quiet",
	)
}

// teardownSteps mirror provisioning in reverse. Every step is
// best-effort: teardown keeps going no matter what is already gone.
func (s *Skylift) teardownSteps() []step {
	var steps []step

	if s.templateRepo != "" {
		del := s.gcloud("delete-pipeline",
			"deploy", "delivery-pipelines", "delete", s.pipeline,
			"--region", s.region,
			"--force",
			"--quiet",
		)
		steps = append(steps, step{name: "delete-pipeline", policy: BestEffort, command: del})
	}

	for _, c := range s.clusters {
		cmd := s.gcloud("delete-cluster",
			"container", "clusters", "delete", c.Name(),
			"--zone", s.zone,
			"--quiet",
			"--async",
		)
		cmd.Timeout = deleteClusterTimeout
		steps = append(steps, step{name: "delete-cluster", policy: BestEffort, command: cmd})
	}

	steps = append(steps,
		step{
			name:   "delete-repository",
			policy: BestEffort,
			command: s.gcloud("delete-repository",
				"artifacts", "repositories", "delete", s.repository,
				"--location", s.region,
				"--quiet",
			),
		},
		step{
			name:   "delete-bucket",
			policy: BestEffort,
			command: Command{
				Name: "delete-bucket",
				Tool: "gsutil",
				Args: []string{"-m", "rm", "-r", "gs://" + s.bucket},
			},
		},
	)

	if s.templateWorkdir != "" {
		workdir := s.templateWorkdir
		steps = append(steps, step{
			name:   "remove-workdir",
			policy: BestEffort,
			local: func(ctx context.Context) error {
				return os.RemoveAll(workdir)
			},
		})
	}
	return steps
}

// imageRepo is the Artifact Registry docker repo URL images push to.
func (s *Skylift) imageRepo() string {
	return fmt.Sprintf("%s-docker.pkg.dev/%s/%s", s.region, s.projectID, s.repository)
}

// templatePlaceholders maps the template tokens to their rendered values.
func (s *Skylift) templatePlaceholders() []string {
	return []string{
		"$PROJECT_ID", s.projectID,
		"$REGION", s.region,
		"$ZONE", s.zone,
		"$PIPELINE_ID", s.pipeline,
		"$IMAGE_REPO", s.imageRepo(),
	}
}

// renderTemplates substitutes the well-known placeholders in every YAML
// file at the top level of the cloned template workdir. The heavy
// lifting of manifest semantics stays with the external deploy service;
// this is plain token substitution, same as the sed calls it replaces.
func (s *Skylift) renderTemplates(ctx context.Context) error {
	replacer := strings.NewReplacer(s.templatePlaceholders()...)

	entries, err := os.ReadDir(s.templateWorkdir)
	if err != nil {
		return fmt.Errorf("failed to read template workdir: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(s.templateWorkdir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", name, err)
		}

		rendered := replacer.Replace(string(data))
		if rendered == string(data) {
			continue // nothing to substitute
		}
		if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("failed to write rendered template %s: %w", name, err)
		}
	}
	return nil
}

// Plan returns the ordered list of bootstrap steps [Skylift.Bootstrap]
// would run, for display (e.g. a dry-run listing). Polling waits and the
// dynamic approval/promotion commands are summarised as placeholders
// because their arguments depend on runtime state.
func (s *Skylift) Plan() []StepInfo {
	var infos []StepInfo
	add := func(steps ...step) {
		for _, st := range steps {
			infos = append(infos, st.info())
		}
	}

	add(s.provisioningSteps()...)
	for _, c := range s.clusters {
		infos = append(infos, StepInfo{
			Name:   "wait-cluster",
			Policy: Fatal,
			Detail: fmt.Sprintf("poll %s until RUNNING", c.Name()),
		})
	}
	add(s.credentialSteps()...)

	if s.templateRepo != "" {
		add(s.templateSteps()...)
		add(s.buildStep())
		add(s.pipelineSteps()...)
		infos = append(infos, StepInfo{Name: "bind-iam-role", Policy: BestEffort, Detail: "repair deploy service account roles"})
		add(s.releaseStep(s.releasePrefix + "-<suffix>"))
		for i, c := range s.clusters {
			if c.RequiresApproval() && s.autoApprove {
				infos = append(infos, StepInfo{
					Name:   "approve-rollout",
					Policy: BestEffort,
					Detail: fmt.Sprintf("approve %s rollout if PENDING_APPROVAL", c.Target()),
				})
			}
			infos = append(infos, StepInfo{
				Name:   "wait-rollout",
				Policy: Fatal,
				Detail: fmt.Sprintf("poll %s rollout until SUCCEEDED", c.Target()),
			})
			if i < len(s.clusters)-1 {
				infos = append(infos, StepInfo{
					Name:   "promote-release",
					Policy: Fatal,
					Detail: "promote to " + s.clusters[i+1].Target(),
				})
			}
		}
	}
	return infos
}
