// Package metrics provides metrics recording for LLM client operations.
package metrics

import "time"

// Recorder records the outcome of one LLM request.
type Recorder interface {
	ObserveRequest(
		model, operation string,
		promptTokens, completionTokens int,
		cost float64,
		success bool,
		errorType string,
		duration time.Duration,
	)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func Nop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) ObserveRequest(_, _ string, _, _ int, _ float64, _ bool, _ string, _ time.Duration) {}

// Multi fans one observation out to several recorders.
func Multi(recorders ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) ObserveRequest(
	model, operation string,
	promptTokens, completionTokens int,
	cost float64,
	success bool,
	errorType string,
	duration time.Duration,
) {
	for _, r := range m {
		r.ObserveRequest(model, operation, promptTokens, completionTokens, cost, success, errorType, duration)
	}
}
