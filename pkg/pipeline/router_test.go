package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyVerdict(t *testing.T) {
	tests := []struct {
		verdict string
		want    Classification
	}{
		{"The solution is correct.", Accept},
		{"THE SOLUTION IS CORRECT", Accept},
		{"The proof is correct.", Accept},
		{"After careful review, the solution is completely correct.", Accept},
		{"The solution is   correct.", Accept},
		{"The solution contains a Critical Error.", Reject},
		{"The solution is incorrect.", Reject},
		{"The solution is not correct.", Reject},
		{"", Reject},
		{"Correct.", Reject},
		{"The solution's approach is viable but contains several Justification Gaps.", Reject},

		// Mixed verdicts that a plain substring check would accept.
		{"The solution is correct except for one error.", Reject},
		{"The solution is correct, but the final step has a gap.", Reject},
		{"The solution is correct; however the bound in Lemma 2 is invalid.", Reject},
		{"The solution is correct unless n is even.", Reject},
		{"The solution is partially correct.", Reject},
		{"The solution isn't correct.", Reject},
		{"The solution is correct and contains no errors.", Reject},
	}
	for _, tt := range tests {
		t.Run(tt.verdict, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyVerdict(tt.verdict))
		})
	}
}

func TestClassifyVerdictWordBoundaries(t *testing.T) {
	// "nothing" and "errand" must not trip the negation terms "not" and "error".
	assert.Equal(t, Accept, ClassifyVerdict("Nothing to add: the solution is correct."))
	assert.Equal(t, Accept, ClassifyVerdict("The proof is correct, as is the errand."))
}

func TestAfterVerify(t *testing.T) {
	budget := DefaultBudget()
	tests := []struct {
		name  string
		state State
		want  Decision
	}{
		{"accept", State{Verdict: acceptVerdict, Iterations: 1}, Decision{Next: StateTerminated, Reason: ReasonAccepted}},
		{"accept at budget", State{Verdict: acceptVerdict, Iterations: 3}, Decision{Next: StateTerminated, Reason: ReasonAccepted}},
		{"reject with budget left", State{Verdict: rejectVerdict, Iterations: 2}, Decision{Next: StepHumanGate}},
		{"reject at budget", State{Verdict: rejectVerdict, Iterations: 3}, Decision{Next: StateTerminated, Reason: ReasonBudgetExhausted}},
		{"reject past budget", State{Verdict: rejectVerdict, Iterations: 4}, Decision{Next: StateTerminated, Reason: ReasonBudgetExhausted}},
		{"failure wins", State{Verdict: acceptVerdict, Iterations: 1, Failure: &Failure{Kind: KindOracleError}}, Decision{Next: StateTerminated, Reason: ReasonFailed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AfterVerify(tt.state, budget)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, AfterVerify(tt.state, budget), "decision must be idempotent")
		})
	}
}

func TestAfterVerifyIgnoresUnrelatedFields(t *testing.T) {
	a := State{Problem: "p1", Artifact: "first artifact", Critique: "- one", Verdict: rejectVerdict, Iterations: 1}
	b := State{Problem: "p2", Artifact: "a completely different artifact", Critique: "- two", Verdict: rejectVerdict, Iterations: 1}
	assert.Equal(t, AfterVerify(a, DefaultBudget()), AfterVerify(b, DefaultBudget()))
}

func TestAfterVerifyDoesNotMutate(t *testing.T) {
	s := State{Verdict: rejectVerdict, Iterations: 1, Artifact: "x"}
	before := s
	AfterVerify(s, DefaultBudget())
	assert.Equal(t, before, s)
}

func TestAfterHumanGate(t *testing.T) {
	assert.Equal(t, Decision{Next: StepCorrect}, AfterHumanGate(State{Iterations: 1}))

	rejected := State{Failure: &Failure{Kind: KindReviewerRejected, Reason: ReasonReviewerRejected}}
	d := AfterHumanGate(rejected)
	assert.True(t, d.Terminates())
	assert.Equal(t, ReasonFailed, d.Reason)
}

func TestRouterUsesClassifier(t *testing.T) {
	r := Router{Budget: Budget{MaxIterations: 1}, Classify: func(string) Classification { return Reject }}
	assert.Equal(t, ReasonBudgetExhausted, r.AfterVerify(State{Verdict: acceptVerdict, Iterations: 1}).Reason)

	var zero Router
	assert.Equal(t, ReasonAccepted, zero.AfterVerify(State{Verdict: acceptVerdict}).Reason)
}
