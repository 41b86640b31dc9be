package persistence

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when no archived run matches an id.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRunID is returned when an id prefix matches several runs.
var ErrAmbiguousRunID = errors.New("run id prefix is ambiguous")

// Run is one archived run.
//
//nolint:govet // field order follows the table
type Run struct {
	ID            string    `json:"id"`
	Problem       string    `json:"problem"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	Reason        string    `json:"reason"`
	Artifact      string    `json:"artifact,omitempty"`
	Critique      string    `json:"critique,omitempty"`
	Verdict       string    `json:"verdict,omitempty"`
	Iterations    int       `json:"iterations"`
	FailureKind   string    `json:"failure_kind,omitempty"`
	FailureStep   string    `json:"failure_step,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	FailureDetail string    `json:"failure_detail,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Failed reports whether the run ended with a failure.
func (r *Run) Failed() bool {
	return r.FailureKind != ""
}

// Duration is the wall time of the run.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunStep is one step execution of an archived run.
type RunStep struct {
	RunID     string        `json:"run_id"`
	Seq       int           `json:"seq"`
	Step      string        `json:"step"`
	Outcome   string        `json:"outcome"`
	Detail    string        `json:"detail,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
