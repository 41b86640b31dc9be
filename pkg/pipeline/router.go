package pipeline

import (
	"regexp"
	"strings"
)

// Classification is the accept/reject reading of a verdict sentence.
type Classification string

const (
	Accept Classification = "ACCEPT"
	Reject Classification = "REJECT"
)

// Classifier maps a verdict sentence to a Classification.
type Classifier func(verdict string) Classification

// TerminationReason records why a run ended.
type TerminationReason string

const (
	ReasonNone            TerminationReason = ""
	ReasonAccepted        TerminationReason = "accepted"
	ReasonBudgetExhausted TerminationReason = "budget_exhausted"
	ReasonFailed          TerminationReason = "failed"
)

// DefaultMaxIterations is the verification budget.
const DefaultMaxIterations = 3

// Budget bounds the correction loop.
type Budget struct {
	MaxIterations int
}

// DefaultBudget allows three verifications.
func DefaultBudget() Budget {
	return Budget{MaxIterations: DefaultMaxIterations}
}

// Decision is the router's choice of next state. Reason is set only when
// Next is StateTerminated.
type Decision struct {
	Next   StepName
	Reason TerminationReason
}

// Terminates reports whether d ends the run.
func (d Decision) Terminates() bool {
	return d.Next == StateTerminated
}

func terminate(reason TerminationReason) Decision {
	return Decision{Next: StateTerminated, Reason: reason}
}

//nolint:gochecknoglobals // fixed phrase lists
var (
	affirmativePhrases = []string{
		"solution is correct",
		"proof is correct",
		"solution is fully correct",
		"solution is complete and correct",
		"solution is completely correct",
	}
	negationPattern = regexp.MustCompile(
		`\b(incorrect|error|errors|not|isn't|gap|gaps|invalid|flaw|flawed|incomplete|partial|partially|except|but|however|unless)\b`)
)

// ClassifyVerdict accepts a verdict only when it contains an affirmative
// correctness phrase and no negation or qualifier word. Anything else,
// including mixed verdicts such as "correct except for one error", rejects.
func ClassifyVerdict(verdict string) Classification {
	v := strings.ToLower(strings.Join(strings.Fields(verdict), " "))
	affirmative := false
	for _, p := range affirmativePhrases {
		if strings.Contains(v, p) {
			affirmative = true
			break
		}
	}
	if !affirmative {
		return Reject
	}
	if negationPattern.MatchString(v) {
		return Reject
	}
	return Accept
}

// Router holds the two routing decisions. Both are pure functions of the
// state they are given.
type Router struct {
	Budget   Budget
	Classify Classifier
}

// NewRouter returns a router using ClassifyVerdict.
func NewRouter(b Budget) Router {
	return Router{Budget: b, Classify: ClassifyVerdict}
}

// AfterVerify terminates on failure, on acceptance, or when the budget is
// spent; otherwise it sends the critique to the human gate.
func (r Router) AfterVerify(s State) Decision {
	if s.Failure != nil {
		return terminate(ReasonFailed)
	}
	classify := r.Classify
	if classify == nil {
		classify = ClassifyVerdict
	}
	if classify(s.Verdict) == Accept {
		return terminate(ReasonAccepted)
	}
	if s.Iterations >= r.Budget.MaxIterations {
		return terminate(ReasonBudgetExhausted)
	}
	return Decision{Next: StepHumanGate}
}

// AfterHumanGate terminates when the reviewer rejected, otherwise corrects.
func (r Router) AfterHumanGate(s State) Decision {
	return AfterHumanGate(s)
}

// AfterVerify is Router.AfterVerify with the default classifier.
func AfterVerify(s State, b Budget) Decision {
	return NewRouter(b).AfterVerify(s)
}

// AfterHumanGate routes on the reviewer's decision, recorded as a failure on rejection.
func AfterHumanGate(s State) Decision {
	if s.Failure != nil {
		return terminate(ReasonFailed)
	}
	return Decision{Next: StepCorrect}
}
