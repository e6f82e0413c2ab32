// Package config provides YAML configuration parsing for skylift.
//
// This package enables running skylift as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	project_id: my-demo-project
//	region: us-central1
//	zone: us-central1-a
//	repository: cd-demo
//	pipeline: cd-demo-pipeline
//
//	clusters:
//	  - name: staging
//	    target: staging
//	  - name: prod
//	    target: prod
//	    requires_approval: true
//
//	template:
//	  repo: https://github.com/example/cd-demo-template.git
//	  workdir: ${DEMO_WORKDIR:-/tmp/cd-demo}
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval. This prevents
// hammering the cloud APIs with overly aggressive status checks.
const minPollInterval = 1 * time.Second

// Defaults applied by Parse when a field is unset.
const (
	defaultPollInterval    = 10 * time.Second
	defaultClusterTimeout  = 15 * time.Minute
	defaultRolloutTimeout  = 10 * time.Minute
	defaultApprovalTimeout = 30 * time.Second
	defaultDescribeTimeout = 30 * time.Second
	defaultReleasePrefix   = "rel"
	defaultNodeCount       = 1
	defaultMachineType     = "e2-standard-2"
)

// Config is the root configuration structure for skylift.
//
// It maps directly to the YAML configuration file structure and is
// immutable by convention once loaded: every component receives it (or a
// slice of it) explicitly instead of reading process environment at use
// sites. Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// ProjectID is the Google Cloud project everything is created in.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}.
	ProjectID string `yaml:"project_id"`

	// Region is the Google Cloud region (e.g. "us-central1").
	Region string `yaml:"region"`

	// Zone is the compute zone. Must be the region plus a single zone
	// letter (e.g. "us-central1-a").
	Zone string `yaml:"zone"`

	// Repository is the Artifact Registry repository name for demo images.
	Repository string `yaml:"repository"`

	// Bucket is the Cloud Build staging bucket name.
	// Defaults to "<project_id>_cloudbuild".
	Bucket string `yaml:"bucket"`

	// Pipeline is the Cloud Deploy delivery pipeline identifier.
	Pipeline string `yaml:"pipeline"`

	// ReleasePrefix is the prefix for generated release names. A short
	// random suffix is appended per run. Defaults to "rel".
	ReleasePrefix string `yaml:"release_prefix"`

	// AutoApprove enables the best-effort approval step: when a rollout
	// parks in PENDING_APPROVAL, skylift approves it. Defaults to true.
	AutoApprove *bool `yaml:"auto_approve"`

	// Clusters are the GKE clusters to provision, in pipeline order.
	// Exactly the first cluster receives the initial release; later
	// targets are promoted to after the prior stage succeeds.
	Clusters []ClusterConfig `yaml:"clusters"`

	// Template describes the demo source template to clone and render.
	Template TemplateConfig `yaml:"template"`

	// Poll tunes the polling loops.
	Poll PollConfig `yaml:"poll"`
}

// ClusterConfig defines one GKE cluster and its Cloud Deploy target.
type ClusterConfig struct {
	// Name is the GKE cluster name.
	Name string `yaml:"name"`

	// Target is the Cloud Deploy target identifier bound to this cluster.
	// Defaults to the cluster name.
	Target string `yaml:"target"`

	// NodeCount is the initial node count. Defaults to 1.
	NodeCount int `yaml:"node_count"`

	// MachineType is the node machine type. Defaults to "e2-standard-2".
	MachineType string `yaml:"machine_type"`

	// RequiresApproval marks the target as requiring rollout approval.
	RequiresApproval bool `yaml:"requires_approval"`
}

// TemplateConfig describes the demo template repository.
type TemplateConfig struct {
	// Repo is the git URL of the template repository.
	// Supports environment variable substitution.
	Repo string `yaml:"repo"`

	// Workdir is the local directory the template is cloned into.
	// Supports environment variable substitution.
	Workdir string `yaml:"workdir"`
}

// PollConfig tunes the three polling loops and the per-describe budget.
type PollConfig struct {
	// Interval is the sleep between status checks. Defaults to 10s.
	Interval Duration `yaml:"interval"`

	// ClusterTimeout bounds each cluster-readiness wait. Defaults to 15m.
	ClusterTimeout Duration `yaml:"cluster_timeout"`

	// RolloutTimeout bounds each rollout-completion wait. Defaults to 10m.
	RolloutTimeout Duration `yaml:"rollout_timeout"`

	// ApprovalTimeout bounds the pending-approval detection wait. A
	// timeout here is not an error, it means no approval was needed.
	// Defaults to 30s.
	ApprovalTimeout Duration `yaml:"approval_timeout"`

	// DescribeTimeout bounds each individual status-describe call, so one
	// hung CLI invocation cannot stall the loop. Defaults to 30s.
	DescribeTimeout Duration `yaml:"describe_timeout"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// projectIDPattern matches valid Google Cloud project identifiers.
var projectIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{4,28}[a-z0-9]$`)

// regionPattern matches region identifiers like "us-central1".
var regionPattern = regexp.MustCompile(`^[a-z]+-[a-z]+[0-9]+$`)

// zonePattern matches zone identifiers: a region followed by a single
// zone letter, like "us-central1-a".
var zonePattern = regexp.MustCompile(`^[a-z]+-[a-z]+[0-9]+-[a-z]$`)

// resourceNamePattern matches repository/pipeline/cluster/target names.
var resourceNamePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in ProjectID, Template.Repo, and
// Template.Workdir. Defaults are applied for Bucket, ReleasePrefix,
// AutoApprove, per-cluster fields, and all poll timings.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = Duration(defaultPollInterval)
	}
	if cfg.Poll.ClusterTimeout == 0 {
		cfg.Poll.ClusterTimeout = Duration(defaultClusterTimeout)
	}
	if cfg.Poll.RolloutTimeout == 0 {
		cfg.Poll.RolloutTimeout = Duration(defaultRolloutTimeout)
	}
	if cfg.Poll.ApprovalTimeout == 0 {
		cfg.Poll.ApprovalTimeout = Duration(defaultApprovalTimeout)
	}
	if cfg.Poll.DescribeTimeout == 0 {
		cfg.Poll.DescribeTimeout = Duration(defaultDescribeTimeout)
	}
	if cfg.ReleasePrefix == "" {
		cfg.ReleasePrefix = defaultReleasePrefix
	}
	if cfg.AutoApprove == nil {
		yes := true
		cfg.AutoApprove = &yes
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	expanded, err := expandEnvVars(c.ProjectID)
	if err != nil {
		return fmt.Errorf("project_id: %w", err)
	}
	c.ProjectID = expanded

	if c.ProjectID == "" {
		return errors.New("project_id is required")
	}
	if !projectIDPattern.MatchString(c.ProjectID) {
		return fmt.Errorf("project_id %q is not a valid Google Cloud project ID", c.ProjectID)
	}

	if c.Region == "" {
		return errors.New("region is required")
	}
	if !regionPattern.MatchString(c.Region) {
		return fmt.Errorf("region %q is not a valid region (expected e.g. \"us-central1\")", c.Region)
	}

	if c.Zone == "" {
		return errors.New("zone is required")
	}
	if !zonePattern.MatchString(c.Zone) {
		return fmt.Errorf("zone %q is not a valid zone (expected e.g. \"us-central1-a\")", c.Zone)
	}
	if !strings.HasPrefix(c.Zone, c.Region+"-") {
		return fmt.Errorf("zone %q is not in region %q", c.Zone, c.Region)
	}

	if c.Repository == "" {
		return errors.New("repository is required")
	}
	if !resourceNamePattern.MatchString(c.Repository) {
		return fmt.Errorf("repository %q is not a valid repository name", c.Repository)
	}

	if c.Bucket == "" {
		c.Bucket = c.ProjectID + "_cloudbuild"
	}

	if c.Pipeline == "" {
		return errors.New("pipeline is required")
	}
	if !resourceNamePattern.MatchString(c.Pipeline) {
		return fmt.Errorf("pipeline %q is not a valid pipeline name", c.Pipeline)
	}

	if !resourceNamePattern.MatchString(c.ReleasePrefix) {
		return fmt.Errorf("release_prefix %q is not a valid release name prefix", c.ReleasePrefix)
	}

	if len(c.Clusters) == 0 {
		return errors.New("at least one cluster must be defined")
	}
	seen := make(map[string]struct{}, len(c.Clusters))
	for i := range c.Clusters {
		cl := &c.Clusters[i]

		if cl.Name == "" {
			return fmt.Errorf("clusters[%d]: name is required", i)
		}
		if !resourceNamePattern.MatchString(cl.Name) {
			return fmt.Errorf("clusters[%d]: %q is not a valid cluster name", i, cl.Name)
		}
		if _, dup := seen[cl.Name]; dup {
			return fmt.Errorf("clusters[%d]: duplicate cluster name %q", i, cl.Name)
		}
		seen[cl.Name] = struct{}{}

		if cl.Target == "" {
			cl.Target = cl.Name
		}
		if !resourceNamePattern.MatchString(cl.Target) {
			return fmt.Errorf("clusters[%d] (%s): %q is not a valid target name", i, cl.Name, cl.Target)
		}
		if cl.NodeCount == 0 {
			cl.NodeCount = defaultNodeCount
		}
		if cl.NodeCount < 0 {
			return fmt.Errorf("clusters[%d] (%s): node_count cannot be negative", i, cl.Name)
		}
		if cl.MachineType == "" {
			cl.MachineType = defaultMachineType
		}
	}

	if c.Template.Repo != "" {
		expanded, err := expandEnvVars(c.Template.Repo)
		if err != nil {
			return fmt.Errorf("template.repo: %w", err)
		}
		c.Template.Repo = expanded
	}
	if c.Template.Workdir != "" {
		expanded, err := expandEnvVars(c.Template.Workdir)
		if err != nil {
			return fmt.Errorf("template.workdir: %w", err)
		}
		c.Template.Workdir = expanded
	}
	if c.Template.Repo != "" && c.Template.Workdir == "" {
		return errors.New("template.workdir is required when template.repo is set")
	}

	if c.Poll.Interval.Duration() < minPollInterval {
		return fmt.Errorf("poll.interval must be at least %s, got %s", minPollInterval, c.Poll.Interval.Duration())
	}
	for name, d := range map[string]Duration{
		"poll.cluster_timeout":  c.Poll.ClusterTimeout,
		"poll.rollout_timeout":  c.Poll.RolloutTimeout,
		"poll.approval_timeout": c.Poll.ApprovalTimeout,
	} {
		if d.Duration() < 0 {
			return fmt.Errorf("%s cannot be negative, got %s", name, d.Duration())
		}
	}
	if c.Poll.DescribeTimeout.Duration() < time.Second {
		return fmt.Errorf("poll.describe_timeout must be at least 1s, got %s", c.Poll.DescribeTimeout.Duration())
	}

	return nil
}

// AutoApproveEnabled reports whether the best-effort approval step runs.
func (c *Config) AutoApproveEnabled() bool {
	return c.AutoApprove == nil || *c.AutoApprove
}
