package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestNewState(t *testing.T) {
	_, err := NewState("")
	assert.ErrorIs(t, err, ErrEmptyProblem)

	s, err := NewState(testProblem)
	require.NoError(t, err)
	assert.Equal(t, testProblem, s.Problem)
	assert.Zero(t, s.Iterations)
	assert.False(t, s.Failed())
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name    string
		start   State
		step    StepName
		delta   Delta
		wantErr bool
		want    State
	}{
		{
			name:  "generate sets artifact",
			start: State{Problem: "p"},
			step:  StepGenerate,
			delta: Delta{Artifact: ptr("a1")},
			want:  State{Problem: "p", Artifact: "a1"},
		},
		{
			name:  "verify sets critique and counts",
			start: State{Problem: "p", Artifact: "a1"},
			step:  StepVerify,
			delta: Delta{Critique: ptr("- gap"), Verdict: ptr(rejectVerdict), IncrementIteration: true},
			want:  State{Problem: "p", Artifact: "a1", Critique: "- gap", Verdict: rejectVerdict, Iterations: 1},
		},
		{
			name:  "empty delta keeps artifact",
			start: State{Problem: "p", Artifact: "a1"},
			step:  StepRefine,
			want:  State{Problem: "p", Artifact: "a1"},
		},
		{
			name:    "generate without artifact",
			start:   State{Problem: "p"},
			step:    StepGenerate,
			wantErr: true,
		},
		{
			name:    "blank artifact",
			start:   State{Problem: "p", Artifact: "a1"},
			step:    StepCorrect,
			delta:   Delta{Artifact: ptr("   ")},
			wantErr: true,
		},
		{
			name:    "critique without verdict",
			start:   State{Problem: "p", Artifact: "a1"},
			step:    StepVerify,
			delta:   Delta{Critique: ptr("x"), IncrementIteration: true},
			wantErr: true,
		},
		{
			name:    "verify without increment",
			start:   State{Problem: "p", Artifact: "a1"},
			step:    StepVerify,
			delta:   Delta{Critique: ptr("x"), Verdict: ptr("y")},
			wantErr: true,
		},
		{
			name:    "correct increments",
			start:   State{Problem: "p", Artifact: "a1"},
			step:    StepCorrect,
			delta:   Delta{Artifact: ptr("a2"), IncrementIteration: true},
			wantErr: true,
		},
		{
			name:    "human gate sets verdict",
			start:   State{Problem: "p", Artifact: "a1"},
			step:    StepHumanGate,
			delta:   Delta{Critique: ptr("x"), Verdict: ptr("y")},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.start
			f := s.merge(tt.step, tt.delta)
			if tt.wantErr {
				require.NotNil(t, f)
				assert.Equal(t, KindInvariantViolation, f.Kind)
				assert.Equal(t, tt.step, f.Step)
				assert.Equal(t, tt.start, s, "state must be unchanged on violation")
				return
			}
			require.Nil(t, f)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestFailureError(t *testing.T) {
	cause := errors.New("timeout")
	f := newFailure(KindOracleError, StepVerify, ReasonVerificationFailed, cause)
	assert.Equal(t, "verification failed: timeout", f.Error())
	assert.ErrorIs(t, f, cause)
	assert.Equal(t, "timeout", f.Detail())

	plain := newFailure(KindReviewerRejected, StepHumanGate, ReasonReviewerRejected, nil)
	assert.Equal(t, ReasonReviewerRejected, plain.Error())
	assert.Empty(t, plain.Detail())

	var pf *Failure
	require.ErrorAs(t, error(f), &pf)
	assert.Equal(t, StepVerify, pf.Step)
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := State{Artifact: "a", Failure: &Failure{Reason: "r"}}
	c := s.Snapshot()
	c.Failure.Reason = "changed"
	c.Artifact = "b"
	assert.Equal(t, "r", s.Failure.Reason)
	assert.Equal(t, "a", s.Artifact)
}

func TestDeltaIsEmpty(t *testing.T) {
	assert.True(t, Delta{}.IsEmpty())
	assert.False(t, Delta{IncrementIteration: true}.IsEmpty())
	assert.False(t, Delta{Artifact: ptr("a")}.IsEmpty())
}
