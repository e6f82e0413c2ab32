package skylift

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestPlan_ListsEveryPhase verifies the dry-run listing covers the whole
// flow in order, with the right policies.
func TestPlan_ListsEveryPhase(t *testing.T) {
	r := &fakeRunner{}
	s := newTestSkylift(t, r, WithTemplate("https://example.com/demo.git", t.TempDir()))

	infos := s.Plan()

	var names []string
	policies := make(map[string]Policy)
	for _, st := range infos {
		names = append(names, st.Name)
		policies[st.Name] = st.Policy
	}

	for _, want := range []string{
		"enable-services", "create-repository", "create-bucket", "create-cluster",
		"wait-cluster", "get-credentials", "clone-template", "render-templates",
		"build-images", "apply-pipeline", "apply-target", "bind-iam-role",
		"create-release", "approve-rollout", "wait-rollout", "promote-release",
	} {
		if indexOf(names, want) < 0 {
			t.Errorf("expected step %q in the plan, got %v", want, names)
		}
	}

	if policies["bind-iam-role"] != BestEffort {
		t.Error("IAM repair should be best-effort")
	}
	if policies["approve-rollout"] != BestEffort {
		t.Error("approval should be best-effort")
	}
	if policies["create-release"] != Fatal {
		t.Error("release creation should be fatal")
	}

	// two clusters means exactly one promotion
	promotions := 0
	for _, n := range names {
		if n == "promote-release" {
			promotions++
		}
	}
	if promotions != 1 {
		t.Errorf("expected exactly 1 promotion for 2 clusters, got %d", promotions)
	}

	if indexOf(names, "promote-release") > indexOf(names, "approve-rollout") {
		t.Error("expected approval of the gated second stage after promotion")
	}
}

// TestPlan_InfrastructureOnly verifies the plan omits the deploy phases
// without a template.
func TestPlan_InfrastructureOnly(t *testing.T) {
	r := &fakeRunner{}
	s := newTestSkylift(t, r)

	for _, st := range s.Plan() {
		switch st.Name {
		case "clone-template", "build-images", "apply-pipeline", "create-release", "wait-rollout":
			t.Errorf("unexpected step %q without a template", st.Name)
		}
	}
}

// TestRenderTemplates verifies placeholder substitution touches YAML
// files only and is idempotent.
func TestRenderTemplates(t *testing.T) {
	dir := t.TempDir()
	manifest := "pipeline: $PIPELINE_ID\nproject: $PROJECT_ID\nrepo: $IMAGE_REPO\n"
	if err := os.WriteFile(filepath.Join(dir, "clouddeploy.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("$PROJECT_ID stays"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &fakeRunner{}
	s := newTestSkylift(t, r, WithTemplate("https://example.com/demo.git", dir))

	if err := s.renderTemplates(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rendered, err := os.ReadFile(filepath.Join(dir, "clouddeploy.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	got := string(rendered)
	if !strings.Contains(got, "pipeline: cd-demo-pipeline") {
		t.Errorf("pipeline placeholder not rendered: %q", got)
	}
	if !strings.Contains(got, "project: my-demo-project") {
		t.Errorf("project placeholder not rendered: %q", got)
	}
	if !strings.Contains(got, "us-central1-docker.pkg.dev/my-demo-project/cd-demo") {
		t.Errorf("image repo placeholder not rendered: %q", got)
	}
	if strings.Contains(got, "$") {
		t.Errorf("unrendered placeholder remains: %q", got)
	}

	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(readme) != "$PROJECT_ID stays" {
		t.Error("non-YAML files should not be touched")
	}

	// second render is a no-op
	if err := s.renderTemplates(context.Background()); err != nil {
		t.Fatalf("re-render failed: %v", err)
	}
}

// TestRenderTemplates_MissingWorkdir verifies a useful error when the
// clone never happened.
func TestRenderTemplates_MissingWorkdir(t *testing.T) {
	r := &fakeRunner{}
	s := newTestSkylift(t, r, WithTemplate("https://example.com/demo.git", filepath.Join(t.TempDir(), "missing")))

	if err := s.renderTemplates(context.Background()); err == nil {
		t.Error("expected an error for a missing workdir")
	}
}

// TestTeardownSteps verifies reverse order and the all-best-effort rule.
func TestTeardownSteps(t *testing.T) {
	r := &fakeRunner{}
	s := newTestSkylift(t, r, WithTemplate("https://example.com/demo.git", t.TempDir()))

	steps := s.teardownSteps()
	if len(steps) == 0 {
		t.Fatal("expected teardown steps")
	}

	for _, st := range steps {
		if st.policy != BestEffort {
			t.Errorf("teardown step %q should be best-effort", st.name)
		}
	}

	// pipeline goes before clusters, clusters before the repository
	var names []string
	for _, st := range steps {
		names = append(names, st.name)
	}
	if indexOf(names, "delete-pipeline") > indexOf(names, "delete-cluster") {
		t.Error("expected the pipeline to be deleted before the clusters")
	}
	if indexOf(names, "delete-cluster") > indexOf(names, "delete-repository") {
		t.Error("expected the clusters to be deleted before the repository")
	}
}

// TestAlreadyExists covers the tolerated already-exists shapes.
func TestAlreadyExists(t *testing.T) {
	tests := []struct {
		name   string
		result CommandResult
		want   bool
	}{
		{"api code", CommandResult{Stderr: []byte("ERROR: ALREADY_EXISTS: resource exists")}, true},
		{"gcloud message", CommandResult{Stderr: []byte("ERROR: resource already exists")}, true},
		{"git clone", CommandResult{Stderr: []byte("fatal: destination path '/tmp/x' already exists and is not an empty directory.")}, true},
		{"stdout message", CommandResult{Stdout: []byte("Already exists")}, true},
		{"unrelated failure", CommandResult{Stderr: []byte("PERMISSION_DENIED")}, false},
		{"empty output", CommandResult{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := alreadyExists(tt.result); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestFirstLine verifies trimming and blank-line skipping.
func TestFirstLine(t *testing.T) {
	if got := firstLine([]byte("\n\n  value  \nsecond\n")); got != "value" {
		t.Errorf("expected \"value\", got %q", got)
	}
	if got := firstLine(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

// TestCommandString verifies the log rendering.
func TestCommandString(t *testing.T) {
	c := Command{Tool: "gcloud", Args: []string{"deploy", "apply"}}
	if got := c.String(); got != "gcloud deploy apply" {
		t.Errorf("unexpected rendering %q", got)
	}
}

// TestPolicyString verifies the policy names used in plans and logs.
func TestPolicyString(t *testing.T) {
	if Fatal.String() != "fatal" || BestEffort.String() != "best-effort" {
		t.Error("unexpected policy names")
	}
}
