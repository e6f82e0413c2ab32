package poller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// statusSequence returns a describe func that yields the given statuses
// in order, repeating the last one forever.
func statusSequence(statuses ...string) func(context.Context) (string, error) {
	i := 0
	return func(context.Context) (string, error) {
		s := statuses[i]
		if i < len(statuses)-1 {
			i++
		}
		return s, nil
	}
}

func is(want string) func(string) bool {
	return func(s string) bool { return s == want }
}

// TestPoll_ImmediateSuccess verifies that a status matching the success
// predicate on the first describe resolves the poll at once, without any
// interval sleep. The huge interval would hang the test if a sleep
// happened.
func TestPoll_ImmediateSuccess(t *testing.T) {
	p := New(nil)

	result := p.Poll(context.Background(), Spec{
		Name:     "cluster",
		Describe: statusSequence("RUNNING"),
		Success:  is("RUNNING"),
		Interval: time.Hour,
		Timeout:  time.Hour,
	})

	if result.Outcome != Succeeded {
		t.Fatalf("expected Succeeded, got %v", result.Outcome)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
	if result.LastStatus != "RUNNING" {
		t.Errorf("expected last status RUNNING, got %q", result.LastStatus)
	}
}

// TestPoll_SucceedsAfterProgression verifies the loop keeps polling
// through intermediate statuses until the success predicate matches.
func TestPoll_SucceedsAfterProgression(t *testing.T) {
	p := New(nil)

	result := p.Poll(context.Background(), Spec{
		Name:     "cluster",
		Describe: statusSequence("PROVISIONING", "PROVISIONING", "RUNNING"),
		Success:  is("RUNNING"),
		Interval: time.Millisecond,
		Timeout:  time.Second,
	})

	if result.Outcome != Succeeded {
		t.Fatalf("expected Succeeded, got %v (reason %q)", result.Outcome, result.Reason)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
}

// TestPoll_FailureCondition verifies a status matching the failure
// predicate resolves the poll as Failed immediately with a reason.
func TestPoll_FailureCondition(t *testing.T) {
	p := New(nil)

	result := p.Poll(context.Background(), Spec{
		Name:     "rollout",
		Describe: statusSequence("FAILED"),
		Success:  is("SUCCEEDED"),
		Failure:  is("FAILED"),
		Interval: time.Hour,
		Timeout:  time.Hour,
	})

	if result.Outcome != Failed {
		t.Fatalf("expected Failed, got %v", result.Outcome)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
	if result.Reason == "" {
		t.Error("expected a failure reason")
	}
	if result.LastStatus != "FAILED" {
		t.Errorf("expected last status FAILED, got %q", result.LastStatus)
	}
}

// TestPoll_SuccessCheckedBeforeFailure verifies that when both predicates
// match the same status, success wins.
func TestPoll_SuccessCheckedBeforeFailure(t *testing.T) {
	p := New(nil)

	always := func(string) bool { return true }
	result := p.Poll(context.Background(), Spec{
		Name:     "ambiguous",
		Describe: statusSequence("DONE"),
		Success:  always,
		Failure:  always,
		Interval: time.Hour,
		Timeout:  time.Hour,
	})

	if result.Outcome != Succeeded {
		t.Fatalf("expected Succeeded when both predicates match, got %v", result.Outcome)
	}
}

// TestPoll_Timeout verifies a never-matching status resolves as TimedOut
// once the budget elapses, reporting the elapsed time and last status.
func TestPoll_Timeout(t *testing.T) {
	p := New(nil)

	result := p.Poll(context.Background(), Spec{
		Name:     "rollout",
		Describe: statusSequence("IN_PROGRESS"),
		Success:  is("SUCCEEDED"),
		Interval: 5 * time.Millisecond,
		Timeout:  30 * time.Millisecond,
	})

	if result.Outcome != TimedOut {
		t.Fatalf("expected TimedOut, got %v", result.Outcome)
	}
	if result.LastStatus != "IN_PROGRESS" {
		t.Errorf("expected last status IN_PROGRESS, got %q", result.LastStatus)
	}
	if result.Elapsed < 30*time.Millisecond {
		t.Errorf("expected elapsed >= timeout, got %s", result.Elapsed)
	}
	if result.Attempts < 2 {
		t.Errorf("expected multiple attempts before timing out, got %d", result.Attempts)
	}
}

// TestPoll_ZeroTimeoutPollsOnce verifies the one-shot mode: a zero
// timeout makes exactly one describe call.
func TestPoll_ZeroTimeoutPollsOnce(t *testing.T) {
	p := New(nil)

	calls := 0
	result := p.Poll(context.Background(), Spec{
		Name: "detect",
		Describe: func(context.Context) (string, error) {
			calls++
			return "IN_PROGRESS", nil
		},
		Success:  is("PENDING_APPROVAL"),
		Interval: time.Millisecond,
		Timeout:  0,
	})

	if result.Outcome != TimedOut {
		t.Fatalf("expected TimedOut, got %v", result.Outcome)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 describe call, got %d", calls)
	}
}

// TestPoll_ZeroTimeoutCanSucceed verifies one-shot mode still resolves
// success when the single observation matches.
func TestPoll_ZeroTimeoutCanSucceed(t *testing.T) {
	p := New(nil)

	result := p.Poll(context.Background(), Spec{
		Name:     "detect",
		Describe: statusSequence("PENDING_APPROVAL"),
		Success:  is("PENDING_APPROVAL"),
		Interval: time.Millisecond,
		Timeout:  0,
	})

	if result.Outcome != Succeeded {
		t.Fatalf("expected Succeeded, got %v", result.Outcome)
	}
}

// TestPoll_TransientErrorsContinue verifies describe errors are tolerated
// as UNKNOWN and the loop keeps going until a real status arrives.
func TestPoll_TransientErrorsContinue(t *testing.T) {
	p := New(nil)

	calls := 0
	var observed []string
	result := p.Poll(context.Background(), Spec{
		Name: "flaky",
		Describe: func(context.Context) (string, error) {
			calls++
			if calls <= 2 {
				return "", errors.New("connection reset")
			}
			return "RUNNING", nil
		},
		Success:  is("RUNNING"),
		Interval: time.Millisecond,
		Timeout:  time.Second,
		OnPoll: func(o Observation) {
			observed = append(observed, o.Status)
		},
	})

	if result.Outcome != Succeeded {
		t.Fatalf("expected Succeeded, got %v (reason %q)", result.Outcome, result.Reason)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if len(observed) != 3 || observed[0] != StatusUnknown || observed[1] != StatusUnknown {
		t.Errorf("expected UNKNOWN observations for failed describes, got %v", observed)
	}
}

// TestPoll_AlwaysErroringTimesOut verifies a describe that never stops
// failing resolves as TimedOut with UNKNOWN, not as an error.
func TestPoll_AlwaysErroringTimesOut(t *testing.T) {
	p := New(nil)

	result := p.Poll(context.Background(), Spec{
		Name: "dead",
		Describe: func(context.Context) (string, error) {
			return "", errors.New("permission denied")
		},
		Success:  is("RUNNING"),
		Interval: 2 * time.Millisecond,
		Timeout:  20 * time.Millisecond,
	})

	if result.Outcome != TimedOut {
		t.Fatalf("expected TimedOut, got %v", result.Outcome)
	}
	if result.LastStatus != StatusUnknown {
		t.Errorf("expected last status UNKNOWN, got %q", result.LastStatus)
	}
}

// TestPoll_PermanentErrorFailsImmediately verifies a Permanent-wrapped
// describe error resolves as Failed without retrying.
func TestPoll_PermanentErrorFailsImmediately(t *testing.T) {
	p := New(nil)

	calls := 0
	result := p.Poll(context.Background(), Spec{
		Name: "misconfigured",
		Describe: func(context.Context) (string, error) {
			calls++
			return "", Permanent(errors.New("no such delivery pipeline"))
		},
		Success:  is("SUCCEEDED"),
		Interval: time.Millisecond,
		Timeout:  time.Second,
	})

	if result.Outcome != Failed {
		t.Fatalf("expected Failed, got %v", result.Outcome)
	}
	if calls != 1 {
		t.Errorf("expected 1 describe call, got %d", calls)
	}
	if result.Reason != "no such delivery pipeline" {
		t.Errorf("unexpected reason %q", result.Reason)
	}
}

// TestPoll_ContextCancellation verifies cancelling the context resolves
// the poll as TimedOut instead of blocking out the full timeout.
func TestPoll_ContextCancellation(t *testing.T) {
	p := New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result := p.Poll(ctx, Spec{
		Name:     "cancelled",
		Describe: statusSequence("IN_PROGRESS"),
		Success:  is("SUCCEEDED"),
		Interval: time.Hour,
		Timeout:  time.Hour,
	})

	if result.Outcome != TimedOut {
		t.Fatalf("expected TimedOut on cancellation, got %v", result.Outcome)
	}
	if time.Since(start) > time.Second {
		t.Errorf("poll did not return promptly after cancellation")
	}
}

// TestPoll_InvalidSpec verifies a spec without describe or success
// resolves as Failed without any external call.
func TestPoll_InvalidSpec(t *testing.T) {
	p := New(nil)

	result := p.Poll(context.Background(), Spec{Name: "broken"})
	if result.Outcome != Failed {
		t.Fatalf("expected Failed for invalid spec, got %v", result.Outcome)
	}
	if result.Reason == "" {
		t.Error("expected a reason for the invalid spec failure")
	}
}

// TestPoll_PanickingDescribeIsTransient verifies a panicking describe is
// recovered and treated like a transient failure.
func TestPoll_PanickingDescribeIsTransient(t *testing.T) {
	p := New(nil)

	calls := 0
	result := p.Poll(context.Background(), Spec{
		Name: "panicky",
		Describe: func(context.Context) (string, error) {
			calls++
			if calls == 1 {
				panic("boom")
			}
			return "RUNNING", nil
		},
		Success:  is("RUNNING"),
		Interval: time.Millisecond,
		Timeout:  time.Second,
	})

	if result.Outcome != Succeeded {
		t.Fatalf("expected Succeeded after recovered panic, got %v", result.Outcome)
	}
	if result.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", result.Attempts)
	}
}

// TestPoll_PanickingPredicateIsNonMatch verifies a panicking predicate is
// recovered and treated as not matching.
func TestPoll_PanickingPredicateIsNonMatch(t *testing.T) {
	p := New(nil)

	result := p.Poll(context.Background(), Spec{
		Name:     "panicky",
		Describe: statusSequence("RUNNING"),
		Success:  func(string) bool { panic("bad predicate") },
		Interval: time.Millisecond,
		Timeout:  0,
	})

	if result.Outcome != TimedOut {
		t.Fatalf("expected TimedOut when predicate panics, got %v", result.Outcome)
	}
}

// TestPoll_ObservationNumbering verifies OnPoll receives 1-based attempt
// numbers and monotonically non-decreasing elapsed times.
func TestPoll_ObservationNumbering(t *testing.T) {
	p := New(nil)

	var observations []Observation
	p.Poll(context.Background(), Spec{
		Name:     "observed",
		Describe: statusSequence("PROVISIONING", "RUNNING"),
		Success:  is("RUNNING"),
		Interval: time.Millisecond,
		Timeout:  time.Second,
		OnPoll: func(o Observation) {
			observations = append(observations, o)
		},
	})

	if len(observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(observations))
	}
	for i, o := range observations {
		if o.Attempt != i+1 {
			t.Errorf("observation %d: expected attempt %d, got %d", i, i+1, o.Attempt)
		}
		if o.Name != "observed" {
			t.Errorf("observation %d: unexpected name %q", i, o.Name)
		}
	}
	if observations[1].Elapsed < observations[0].Elapsed {
		t.Error("elapsed time went backwards between observations")
	}
}

// TestPermanent verifies the wrapper's nil handling and detection through
// additional error wrapping.
func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if IsPermanent(errors.New("plain")) {
		t.Error("plain errors should not be permanent")
	}

	wrapped := fmt.Errorf("context: %w", Permanent(errors.New("inner")))
	if !IsPermanent(wrapped) {
		t.Error("Permanent should be detectable through wrapping")
	}
	if wrapped.Error() != "context: inner" {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
}
