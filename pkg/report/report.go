// Package report turns a finished run into the summary shown to the user.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"proofloop/pkg/persistence"
	"proofloop/pkg/pipeline"
)

// Status is the headline outcome.
type Status string

const (
	StatusAccepted  Status = "ACCEPTED"
	StatusExhausted Status = "BUDGET EXHAUSTED"
	StatusFailed    Status = "FAILED"
)

// FailureInfo describes why a run failed.
type FailureInfo struct {
	Kind   string `json:"kind"`
	Step   string `json:"step"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// StepLine is one row of the step table.
type StepLine struct {
	Seq      int           `json:"seq"`
	Step     string        `json:"step"`
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration_ns"`
	Detail   string        `json:"detail,omitempty"`
}

// Report is the final summary of a run. It always carries the last artifact,
// verdict and critique, even when the run failed.
type Report struct {
	RunID      string        `json:"run_id"`
	Status     Status        `json:"status"`
	Reason     string        `json:"reason"`
	Provider   string        `json:"provider,omitempty"`
	Model      string        `json:"model,omitempty"`
	Problem    string        `json:"problem"`
	Artifact   string        `json:"artifact,omitempty"`
	Verdict    string        `json:"verdict,omitempty"`
	Critique   string        `json:"critique,omitempty"`
	Iterations int           `json:"iterations"`
	Failure    *FailureInfo  `json:"failure,omitempty"`
	Steps      []StepLine    `json:"steps"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// StatusFor maps a termination reason to its headline status.
func StatusFor(reason string) Status {
	switch reason {
	case string(pipeline.ReasonAccepted):
		return StatusAccepted
	case string(pipeline.ReasonBudgetExhausted):
		return StatusExhausted
	default:
		return StatusFailed
	}
}

// Build summarizes a finished run.
func Build(res *pipeline.Result, provider, model string) Report {
	st := res.State
	r := Report{
		RunID:      res.RunID,
		Status:     StatusFor(string(res.Reason)),
		Reason:     string(res.Reason),
		Provider:   provider,
		Model:      model,
		Problem:    st.Problem,
		Artifact:   st.Artifact,
		Verdict:    st.Verdict,
		Critique:   st.Critique,
		Iterations: st.Iterations,
		StartedAt:  res.StartedAt,
		Duration:   res.Duration(),
		Steps:      make([]StepLine, 0, len(res.Steps)),
	}
	if f := st.Failure; f != nil {
		r.Failure = &FailureInfo{Kind: string(f.Kind), Step: string(f.Step), Reason: f.Reason, Detail: f.Detail()}
	}
	for _, s := range res.Steps {
		r.Steps = append(r.Steps, StepLine{
			Seq: s.Seq, Step: string(s.Step), Outcome: s.Outcome, Duration: s.Duration, Detail: s.Detail,
		})
	}
	return r
}

// FromArchive rebuilds a report from an archived run.
func FromArchive(run *persistence.Run, steps []*persistence.RunStep) Report {
	r := Report{
		RunID:      run.ID,
		Status:     StatusFor(run.Reason),
		Reason:     run.Reason,
		Provider:   run.Provider,
		Model:      run.Model,
		Problem:    run.Problem,
		Artifact:   run.Artifact,
		Verdict:    run.Verdict,
		Critique:   run.Critique,
		Iterations: run.Iterations,
		StartedAt:  run.StartedAt,
		Duration:   run.Duration(),
		Steps:      make([]StepLine, 0, len(steps)),
	}
	if run.Failed() {
		r.Failure = &FailureInfo{
			Kind: run.FailureKind, Step: run.FailureStep, Reason: run.FailureReason, Detail: run.FailureDetail,
		}
	}
	for _, s := range steps {
		r.Steps = append(r.Steps, StepLine{
			Seq: s.Seq, Step: s.Step, Outcome: s.Outcome, Duration: s.Duration, Detail: s.Detail,
		})
	}
	return r
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
