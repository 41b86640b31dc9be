package pipeline

import "fmt"

// This file is the canonical transition table of the solve pipeline.
// Conditional edges out of VERIFY and HUMAN_GATE are chosen by the router;
// every state may also end in TERMINATED on a fatal failure.

// StepName is both a pipeline step and the FSM state in which it runs.
type StepName string

const (
	StepGenerate    StepName = "GENERATE"
	StepRefine      StepName = "REFINE"
	StepVerify      StepName = "VERIFY"
	StepHumanGate   StepName = "HUMAN_GATE"
	StepCorrect     StepName = "CORRECT"
	StateTerminated StepName = "TERMINATED"
)

func (s StepName) String() string {
	return string(s)
}

// InitialState is where every run starts.
const InitialState = StepGenerate

//nolint:gochecknoglobals // canonical table
var pipelineTransitions = map[StepName][]StepName{
	// GENERATE always hands its artifact to REFINE.
	StepGenerate: {StepRefine, StateTerminated},

	// REFINE failures are non-fatal, so REFINE normally continues to VERIFY.
	StepRefine: {StepVerify, StateTerminated},

	// VERIFY goes to the human gate while the verdict rejects and budget remains.
	StepVerify: {StepHumanGate, StateTerminated},

	// HUMAN_GATE proceeds to CORRECT on approval.
	StepHumanGate: {StepCorrect, StateTerminated},

	// CORRECT always loops back to VERIFY.
	StepCorrect: {StepVerify, StateTerminated},

	StateTerminated: {},
}

// ValidNextStates returns the allowed next states for a given state.
func ValidNextStates(from StepName) []StepName {
	return pipelineTransitions[from]
}

// IsValidTransition checks a transition against the canonical table.
func IsValidTransition(from, to StepName) bool {
	for _, s := range ValidNextStates(from) {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalState reports whether state ends a run.
func IsTerminalState(state StepName) bool {
	return state == StateTerminated
}

// GetAllStates returns every state in deterministic order.
func GetAllStates() []StepName {
	return []StepName{StepGenerate, StepRefine, StepVerify, StepHumanGate, StepCorrect, StateTerminated}
}

// ValidateState checks that state is known.
func ValidateState(state StepName) error {
	if _, ok := pipelineTransitions[state]; !ok {
		return fmt.Errorf("invalid pipeline state: %s", state)
	}
	return nil
}

// unconditionalNext is the fixed successor for states without a router decision.
func unconditionalNext(from StepName) (StepName, bool) {
	switch from {
	case StepGenerate:
		return StepRefine, true
	case StepRefine:
		return StepVerify, true
	case StepCorrect:
		return StepVerify, true
	default:
		return "", false
	}
}
