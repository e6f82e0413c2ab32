package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
project_id: my-demo-project
region: us-central1
zone: us-central1-a
repository: cd-demo
pipeline: cd-demo-pipeline
clusters:
  - name: staging
  - name: prod
    requires_approval: true
`

// TestParse_AppliesDefaults verifies every optional field gets its
// documented default.
func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Bucket != "my-demo-project_cloudbuild" {
		t.Errorf("expected derived bucket, got %q", cfg.Bucket)
	}
	if cfg.ReleasePrefix != "rel" {
		t.Errorf("expected release prefix \"rel\", got %q", cfg.ReleasePrefix)
	}
	if !cfg.AutoApproveEnabled() {
		t.Error("expected auto-approve on by default")
	}
	if cfg.Poll.Interval.Duration() != 10*time.Second {
		t.Errorf("expected 10s poll interval, got %s", cfg.Poll.Interval.Duration())
	}
	if cfg.Poll.ClusterTimeout.Duration() != 15*time.Minute {
		t.Errorf("expected 15m cluster timeout, got %s", cfg.Poll.ClusterTimeout.Duration())
	}
	if cfg.Poll.ApprovalTimeout.Duration() != 30*time.Second {
		t.Errorf("expected 30s approval timeout, got %s", cfg.Poll.ApprovalTimeout.Duration())
	}

	staging := cfg.Clusters[0]
	if staging.Target != "staging" {
		t.Errorf("expected target to default to cluster name, got %q", staging.Target)
	}
	if staging.NodeCount != 1 {
		t.Errorf("expected default node count 1, got %d", staging.NodeCount)
	}
	if staging.MachineType != "e2-standard-2" {
		t.Errorf("expected default machine type, got %q", staging.MachineType)
	}
	if staging.RequiresApproval {
		t.Error("staging should not require approval")
	}
	if !cfg.Clusters[1].RequiresApproval {
		t.Error("prod should require approval")
	}
}

// TestParse_ValidationErrors exercises the rejection paths.
func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "missing project",
			mutate:  func(y string) string { return strings.Replace(y, "project_id: my-demo-project", "", 1) },
			wantErr: "project_id is required",
		},
		{
			name:    "invalid project",
			mutate:  func(y string) string { return strings.Replace(y, "my-demo-project", "Bad_Project!", 1) },
			wantErr: "not a valid Google Cloud project ID",
		},
		{
			name:    "zone outside region",
			mutate:  func(y string) string { return strings.Replace(y, "us-central1-a", "europe-west1-b", 1) },
			wantErr: "not in region",
		},
		{
			name:    "malformed zone",
			mutate:  func(y string) string { return strings.Replace(y, "us-central1-a", "us-central1-abc", 1) },
			wantErr: "not a valid zone",
		},
		{
			name:    "missing repository",
			mutate:  func(y string) string { return strings.Replace(y, "repository: cd-demo\n", "", 1) },
			wantErr: "repository is required",
		},
		{
			name:    "missing pipeline",
			mutate:  func(y string) string { return strings.Replace(y, "pipeline: cd-demo-pipeline\n", "", 1) },
			wantErr: "pipeline is required",
		},
		{
			name:    "no clusters",
			mutate:  func(y string) string { return y[:strings.Index(y, "clusters:")] },
			wantErr: "at least one cluster",
		},
		{
			name:    "duplicate cluster",
			mutate:  func(y string) string { return y + "  - name: staging\n" },
			wantErr: "duplicate cluster name",
		},
		{
			name:    "template repo without workdir",
			mutate:  func(y string) string { return y + "template:\n  repo: https://example.com/x.git\n" },
			wantErr: "template.workdir is required",
		},
		{
			name:    "interval too small",
			mutate:  func(y string) string { return y + "poll:\n  interval: 100ms\n" },
			wantErr: "poll.interval must be at least",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(minimalYAML)))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

// TestParse_EnvExpansion verifies ${VAR} and ${VAR:-default} handling in
// project and template fields.
func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("SKYLIFT_TEST_PROJECT", "env-project-id")

	yaml := strings.Replace(minimalYAML, "my-demo-project", "${SKYLIFT_TEST_PROJECT}", 1) +
		"template:\n  repo: https://example.com/x.git\n  workdir: ${SKYLIFT_TEST_WORKDIR:-/tmp/demo}\n"

	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ProjectID != "env-project-id" {
		t.Errorf("expected expanded project ID, got %q", cfg.ProjectID)
	}
	if cfg.Template.Workdir != "/tmp/demo" {
		t.Errorf("expected default workdir, got %q", cfg.Template.Workdir)
	}
}

// TestParse_EnvExpansion_MissingVar verifies a reference to an unset
// variable without a default is an error.
func TestParse_EnvExpansion_MissingVar(t *testing.T) {
	yaml := strings.Replace(minimalYAML, "my-demo-project", "${SKYLIFT_DEFINITELY_UNSET_VAR}", 1)

	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected an error for an unset variable")
	}
	if !strings.Contains(err.Error(), "SKYLIFT_DEFINITELY_UNSET_VAR") {
		t.Errorf("expected the error to name the variable, got %q", err.Error())
	}
}

// TestParse_InvalidDuration verifies duration parse failures are surfaced.
func TestParse_InvalidDuration(t *testing.T) {
	yaml := minimalYAML + "poll:\n  interval: not-a-duration\n"

	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("expected an invalid duration error, got %q", err.Error())
	}
}

// TestParse_AutoApproveDisabled verifies an explicit false is honoured.
func TestParse_AutoApproveDisabled(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + "auto_approve: false\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AutoApproveEnabled() {
		t.Error("expected auto-approve to be disabled")
	}
}

// TestLoad verifies the file path round trip and the missing-file error.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skylift.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ProjectID != "my-demo-project" {
		t.Errorf("unexpected project ID %q", cfg.ProjectID)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
