// Package pipeline runs the generate, refine, verify, review and correct loop
// over a single shared state.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyProblem is returned when a run is started without a problem.
var ErrEmptyProblem = errors.New("problem statement is empty")

// State is the record threaded through every step of one run. Only the
// orchestrator mutates it, by merging step deltas.
type State struct {
	Problem    string   `json:"problem"`
	Artifact   string   `json:"artifact,omitempty"`
	Critique   string   `json:"critique,omitempty"`
	Verdict    string   `json:"verdict,omitempty"`
	Iterations int      `json:"iterations"`
	Failure    *Failure `json:"failure,omitempty"`
}

// NewState creates the initial state for problem.
func NewState(problem string) (*State, error) {
	if strings.TrimSpace(problem) == "" {
		return nil, ErrEmptyProblem
	}
	return &State{Problem: problem}, nil
}

// Failed reports whether the run has a terminal failure.
func (s *State) Failed() bool {
	return s.Failure != nil
}

// Snapshot returns a copy that shares nothing mutable with s.
func (s *State) Snapshot() State {
	c := *s
	if s.Failure != nil {
		f := *s.Failure
		c.Failure = &f
	}
	return c
}

// Delta is a step's partial update. Nil fields are left unchanged.
type Delta struct {
	Artifact           *string
	Critique           *string
	Verdict            *string
	IncrementIteration bool
}

// IsEmpty reports whether d changes nothing.
func (d Delta) IsEmpty() bool {
	return d.Artifact == nil && d.Critique == nil && d.Verdict == nil && !d.IncrementIteration
}

// FailureKind classifies why a run stopped.
type FailureKind string

const (
	KindOracleError        FailureKind = "oracle_error"
	KindMalformedResponse  FailureKind = "malformed_response"
	KindReviewerRejected   FailureKind = "reviewer_rejected"
	KindReviewerError      FailureKind = "reviewer_error"
	KindRecursionLimit     FailureKind = "recursion_limit"
	KindInvariantViolation FailureKind = "invariant_violation"
)

// Canonical failure reasons.
const (
	ReasonGenerationFailed   = "generation failed"
	ReasonRefinementFailed   = "refinement failed"
	ReasonVerificationFailed = "verification failed"
	ReasonCorrectionFailed   = "correction failed"
	ReasonReviewerRejected   = "reviewer rejected critique"
	ReasonReviewerError      = "reviewer unavailable"
	ReasonRecursionLimit     = "recursion limit exceeded"
	ReasonInvariantViolation = "invariant violation"
)

// Failure is a step failure carried as data.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Step   StepName    `json:"step"`
	Reason string      `json:"reason"`
	Err    error       `json:"-"`
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Reason, f.Err)
	}
	return f.Reason
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Detail is the cause text, suitable for reports.
func (f *Failure) Detail() string {
	if f == nil {
		return ""
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return ""
}

func newFailure(kind FailureKind, step StepName, reason string, err error) *Failure {
	return &Failure{Kind: kind, Step: step, Reason: reason, Err: err}
}

// merge applies d produced by step to s after checking the state invariants.
// On violation s is left unchanged.
func (s *State) merge(step StepName, d Delta) *Failure {
	if err := validateDelta(step, d); err != nil {
		return newFailure(KindInvariantViolation, step, ReasonInvariantViolation, err)
	}
	if d.Artifact == nil && s.Artifact == "" {
		return newFailure(KindInvariantViolation, step, ReasonInvariantViolation,
			fmt.Errorf("%s left the run without an artifact", step))
	}
	if d.Artifact != nil {
		s.Artifact = *d.Artifact
	}
	if d.Critique != nil {
		s.Critique = *d.Critique
		s.Verdict = *d.Verdict
	}
	if d.IncrementIteration {
		s.Iterations++
	}
	return nil
}

func validateDelta(step StepName, d Delta) error {
	if d.Artifact != nil && strings.TrimSpace(*d.Artifact) == "" {
		return errors.New("delta sets an empty artifact")
	}
	if (d.Critique == nil) != (d.Verdict == nil) {
		return errors.New("critique and verdict must be set together")
	}
	if step == StepVerify {
		if d.Critique == nil || !d.IncrementIteration {
			return errors.New("verification must set critique, verdict and the iteration count")
		}
		if strings.TrimSpace(*d.Verdict) == "" {
			return errors.New("verification produced an empty verdict")
		}
		return nil
	}
	if d.IncrementIteration {
		return fmt.Errorf("%s may not advance the iteration count", step)
	}
	if d.Critique != nil {
		return fmt.Errorf("%s may not set critique or verdict", step)
	}
	return nil
}
