package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofloop/pkg/persistence"
	"proofloop/pkg/pipeline"
)

func failedResult() *pipeline.Result {
	start := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	return &pipeline.Result{
		RunID: "run-42",
		State: pipeline.State{
			Problem:    "Prove it.",
			Artifact:   "## Summary\n\nA generated but unverified proof.",
			Critique:   "- gap in step 2",
			Verdict:    "The solution contains a Critical Error.",
			Iterations: 1,
			Failure: &pipeline.Failure{
				Kind:   pipeline.KindOracleError,
				Step:   pipeline.StepCorrect,
				Reason: pipeline.ReasonCorrectionFailed,
				Err:    errors.New("rate limited"),
			},
		},
		Reason: pipeline.ReasonFailed,
		Steps: []pipeline.StepRecord{
			{Seq: 1, Step: pipeline.StepGenerate, Outcome: pipeline.OutcomeOK, Duration: time.Second},
			{Seq: 2, Step: pipeline.StepCorrect, Outcome: pipeline.OutcomeFailed, Detail: "correction failed: rate limited"},
		},
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
	}
}

func TestBuildKeepsPartialProgress(t *testing.T) {
	r := Build(failedResult(), "google", "gemini-2.5-pro")

	assert.Equal(t, StatusFailed, r.Status)
	assert.Contains(t, r.Artifact, "unverified proof")
	assert.Equal(t, "The solution contains a Critical Error.", r.Verdict)
	require.NotNil(t, r.Failure)
	assert.Equal(t, "oracle_error", r.Failure.Kind)
	assert.Equal(t, "CORRECT", r.Failure.Step)
	assert.Equal(t, "rate limited", r.Failure.Detail)
	assert.Equal(t, 90*time.Second, r.Duration)
	assert.Len(t, r.Steps, 2)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusAccepted, StatusFor("accepted"))
	assert.Equal(t, StatusExhausted, StatusFor("budget_exhausted"))
	assert.Equal(t, StatusFailed, StatusFor("failed"))
	assert.Equal(t, StatusFailed, StatusFor(""))
}

func TestRenderPlain(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, Build(failedResult(), "google", "gemini-2.5-pro"), Options{ShowSteps: true})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "FINAL RESULTS")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "Model: google/gemini-2.5-pro")
	assert.Contains(t, out, "Iterations: 1")
	assert.Contains(t, out, "correction failed (oracle_error at CORRECT)")
	assert.Contains(t, out, "Details: rate limited")
	assert.Contains(t, out, "- gap in step 2")
	assert.Contains(t, out, "GENERATE")
	assert.Contains(t, out, "A generated but unverified proof.")
	assert.NotContains(t, out, "\x1b[", "plain output must not contain ANSI escapes")
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	r := Build(failedResult(), "", "")
	require.NoError(t, Render(&buf, r, Options{Markdown: true, Width: 60}))
	assert.Contains(t, buf.String(), "unverified proof")
	assert.NotContains(t, buf.String(), "Model:")
}

func TestRenderWithoutArtifact(t *testing.T) {
	res := failedResult()
	res.State.Artifact = ""
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(res, "", ""), Options{}))
	assert.Contains(t, buf.String(), "(no solution was produced)")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Build(failedResult(), "google", "gemini-2.5-pro")))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "FAILED", decoded["status"])
	assert.Equal(t, "run-42", decoded["run_id"])
	failure, ok := decoded["failure"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "correction failed", failure["reason"])
}

func TestFromArchive(t *testing.T) {
	run := &persistence.Run{
		ID: "abc", Reason: "budget_exhausted", Iterations: 3, Verdict: "still wrong",
		StartedAt: time.Unix(0, 0), FinishedAt: time.Unix(60, 0),
	}
	steps := []*persistence.RunStep{{Seq: 1, Step: "GENERATE", Outcome: "ok"}}

	r := FromArchive(run, steps)
	assert.Equal(t, StatusExhausted, r.Status)
	assert.Nil(t, r.Failure)
	assert.Equal(t, time.Minute, r.Duration)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, "GENERATE", r.Steps[0].Step)
}
