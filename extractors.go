package skylift

import (
	"encoding/json"
	"regexp"
	"strings"
)

// StatusExtractor is a function type that determines the [Status] of a
// watched resource from the output of its describe command.
//
// StatusExtractor follows functional programming principles: it is a pure
// function where the same inputs always produce the same output. This
// makes extractors easy to test, compose, and reason about.
//
// Parameters:
//   - output: the captured stdout of the describe command
//   - exitCode: the command's exit code
//
// Returns the determined [Status] value, normalised to upper case.
// Extractors never return an error; anything unparseable is
// [StatusUnknown], which matches no sensible predicate and therefore
// keeps the polling loop going. That is the tolerant behavior the
// bootstrap flow relies on when a status fetch flakes.
//
// Several built-in extractors are provided: [ValueExtractor],
// [JSONFieldExtractor], [RegexExtractor], [ExitCodeExtractor], and
// [FirstMatch] for composition.
type StatusExtractor func(output []byte, exitCode int) Status

// ValueExtractor is a [StatusExtractor] for commands invoked with
// gcloud's --format='value(...)' projection: the status is the first
// non-empty line of output, upper-cased.
//
// Returns [StatusUnknown] if the command exited nonzero or produced no
// usable line.
var ValueExtractor StatusExtractor = func(output []byte, exitCode int) Status {
	if exitCode != 0 {
		return StatusUnknown
	}
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return Status(strings.ToUpper(line))
		}
	}
	return StatusUnknown
}

// JSONFieldExtractor returns a [StatusExtractor] that extracts status from
// a JSON field using dot notation to navigate nested objects. It suits
// commands invoked with --format=json.
//
// The path parameter specifies the field to extract using dot notation.
// For example, "status.phase" navigates to {"status": {"phase": "..."}}.
// If the top-level document is a JSON array (as produced by gcloud list
// commands), the first element is used.
//
// Returns [StatusUnknown] if the command exited nonzero, JSON parsing
// fails, or the field doesn't exist.
//
// Example:
//
//	// For output: [{"state": "SUCCEEDED", ...}]
//	extractor := skylift.JSONFieldExtractor("state")
func JSONFieldExtractor(path string) StatusExtractor {
	parts := strings.Split(path, ".")

	return func(output []byte, exitCode int) Status {
		if exitCode != 0 {
			return StatusUnknown
		}

		var data interface{}
		if err := json.Unmarshal(output, &data); err != nil {
			return StatusUnknown
		}

		// gcloud list commands emit a top-level array; use the newest entry
		if arr, ok := data.([]interface{}); ok {
			if len(arr) == 0 {
				return StatusUnknown
			}
			data = arr[0]
		}

		value := extractJSONPath(data, parts)
		if value == "" {
			return StatusUnknown
		}
		return Status(strings.ToUpper(value))
	}
}

// extractJSONPath walks a JSON structure using dot notation parts.
func extractJSONPath(data interface{}, parts []string) string {
	current := data

	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = obj[part]
		if !ok {
			return ""
		}
	}

	s, ok := current.(string)
	if !ok {
		return ""
	}
	return s
}

// RegexExtractor returns a [StatusExtractor] that matches the command
// output against a regular expression pattern.
//
// The pattern must contain at least one capture group. The first capture
// group becomes the status, upper-cased. Returns [StatusUnknown] when the
// command exited nonzero or no match is found.
//
// Returns an error if the pattern is invalid.
//
// Example:
//
//	// Match 'state: SUCCEEDED' style describe output
//	extractor, err := skylift.RegexExtractor(`state:\s*(\w+)`)
func RegexExtractor(pattern string) (StatusExtractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	return func(output []byte, exitCode int) Status {
		if exitCode != 0 {
			return StatusUnknown
		}
		matches := re.FindSubmatch(output)
		if len(matches) < 2 {
			return StatusUnknown
		}
		return Status(strings.ToUpper(string(matches[1])))
	}, nil
}

// MustRegexExtractor is like [RegexExtractor] but panics if the pattern
// is invalid.
//
// Use this for compile-time constant patterns where you want to fail fast
// on invalid regex. For runtime patterns, use [RegexExtractor] instead.
func MustRegexExtractor(pattern string) StatusExtractor {
	extractor, err := RegexExtractor(pattern)
	if err != nil {
		panic("skylift: invalid regex pattern: " + err.Error())
	}
	return extractor
}

// ExitCodeExtractor is a [StatusExtractor] that ignores output entirely
// and maps the exit code: zero becomes "OK", any nonzero exit becomes
// "ERROR".
//
// This is useful for existence probes where the command's success is the
// whole answer (e.g. describing a resource to see whether it exists yet).
var ExitCodeExtractor StatusExtractor = func(output []byte, exitCode int) Status {
	if exitCode == 0 {
		return Status("OK")
	}
	return Status("ERROR")
}

// FirstMatch returns a [StatusExtractor] that tries multiple extractors
// in order, returning the first result that is not [StatusUnknown].
//
// This is useful for composing extractors with fallback behavior. Each
// extractor is tried in sequence until one returns a definitive status.
//
// If all extractors return [StatusUnknown], FirstMatch returns
// [StatusUnknown].
//
// Example:
//
//	// Try a JSON state field first, fall back to the raw value line
//	extractor := skylift.FirstMatch(
//	    skylift.JSONFieldExtractor("state"),
//	    skylift.ValueExtractor,
//	)
func FirstMatch(extractors ...StatusExtractor) StatusExtractor {
	return func(output []byte, exitCode int) Status {
		for _, extractor := range extractors {
			status := extractor(output, exitCode)
			if status != StatusUnknown {
				return status
			}
		}
		return StatusUnknown
	}
}

// DefaultExtractor is the [StatusExtractor] used when no extractor is
// specified on a [Watch].
//
// DefaultExtractor uses [FirstMatch] to try:
//  1. [JSONFieldExtractor] with path "state" (Cloud Deploy describe/list output)
//  2. [JSONFieldExtractor] with path "status" (GKE describe output)
//  3. [ValueExtractor] (plain --format=value output)
var DefaultExtractor = FirstMatch(
	JSONFieldExtractor("state"),
	JSONFieldExtractor("status"),
	ValueExtractor,
)
