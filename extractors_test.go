package skylift

import (
	"strings"
	"testing"
)

// TestValueExtractor covers the --format=value(...) projection cases.
func TestValueExtractor(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		exitCode int
		want     Status
	}{
		{"plain value", "RUNNING\n", 0, StatusRunning},
		{"lowercase is normalised", "running\n", 0, StatusRunning},
		{"leading blank lines skipped", "\n\n  succeeded  \n", 0, StatusSucceeded},
		{"nonzero exit", "RUNNING\n", 1, StatusUnknown},
		{"empty output", "", 0, StatusUnknown},
		{"whitespace only", "   \n\t\n", 0, StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValueExtractor([]byte(tt.output), tt.exitCode); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestJSONFieldExtractor covers dot-path navigation, the list-output
// array case, and the failure modes.
func TestJSONFieldExtractor(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		output   string
		exitCode int
		want     Status
	}{
		{"top-level field", "state", `{"state": "SUCCEEDED"}`, 0, StatusSucceeded},
		{"nested field", "status.phase", `{"status": {"phase": "running"}}`, 0, StatusRunning},
		{"array takes first element", "state", `[{"state": "PENDING_APPROVAL"}, {"state": "SUCCEEDED"}]`, 0, StatusPendingApproval},
		{"empty array", "state", `[]`, 0, StatusUnknown},
		{"missing field", "state", `{"other": "x"}`, 0, StatusUnknown},
		{"non-string value", "state", `{"state": 42}`, 0, StatusUnknown},
		{"invalid json", "state", `not json`, 0, StatusUnknown},
		{"nonzero exit", "state", `{"state": "SUCCEEDED"}`, 1, StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extract := JSONFieldExtractor(tt.path)
			if got := extract([]byte(tt.output), tt.exitCode); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestRegexExtractor verifies capture-group extraction and the invalid
// pattern error.
func TestRegexExtractor(t *testing.T) {
	extract, err := RegexExtractor(`state:\s*(\w+)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := extract([]byte("name: x\nstate: succeeded\n"), 0); got != StatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %q", got)
	}
	if got := extract([]byte("no match here"), 0); got != StatusUnknown {
		t.Errorf("expected UNKNOWN for no match, got %q", got)
	}
	if got := extract([]byte("state: succeeded"), 2); got != StatusUnknown {
		t.Errorf("expected UNKNOWN for nonzero exit, got %q", got)
	}

	if _, err := RegexExtractor(`(unclosed`); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}

// TestMustRegexExtractor verifies the panic on an invalid pattern.
func TestMustRegexExtractor(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic")
		}
		if !strings.Contains(r.(string), "invalid regex") {
			t.Errorf("unexpected panic message %v", r)
		}
	}()
	MustRegexExtractor(`(unclosed`)
}

// TestExitCodeExtractor verifies the exit-code-only mapping.
func TestExitCodeExtractor(t *testing.T) {
	if got := ExitCodeExtractor(nil, 0); got != Status("OK") {
		t.Errorf("expected OK, got %q", got)
	}
	if got := ExitCodeExtractor([]byte("ignored"), 7); got != Status("ERROR") {
		t.Errorf("expected ERROR, got %q", got)
	}
}

// TestFirstMatch verifies in-order fallback and the all-unknown case.
func TestFirstMatch(t *testing.T) {
	unknown := func([]byte, int) Status { return StatusUnknown }
	fixed := func(s Status) StatusExtractor {
		return func([]byte, int) Status { return s }
	}

	extract := FirstMatch(unknown, fixed(StatusRunning), fixed(StatusFailed))
	if got := extract(nil, 0); got != StatusRunning {
		t.Errorf("expected the first definitive status, got %q", got)
	}

	if got := FirstMatch(unknown, unknown)(nil, 0); got != StatusUnknown {
		t.Errorf("expected UNKNOWN when nothing matches, got %q", got)
	}
}

// TestDefaultExtractor verifies the documented fallback chain: JSON
// state, then JSON status, then the raw value line.
func TestDefaultExtractor(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Status
	}{
		{"deploy json", `{"state": "IN_PROGRESS"}`, StatusInProgress},
		{"gke json", `{"status": "PROVISIONING"}`, StatusProvisioning},
		{"plain value", "RUNNING\n", StatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultExtractor([]byte(tt.output), 0); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
