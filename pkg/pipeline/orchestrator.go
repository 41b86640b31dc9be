package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"proofloop/pkg/logx"
	"proofloop/pkg/oracle"
	"proofloop/pkg/review"
	"proofloop/pkg/tracing"
)

// DefaultRecursionLimit bounds the total number of step executions in a run.
const DefaultRecursionLimit = 10

// Step outcomes recorded per execution.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Recorder receives step and run observations.
type Recorder interface {
	ObserveStep(step, outcome string, d time.Duration)
	ObserveRun(reason string, iterations int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStep(string, string, time.Duration) {}
func (nopRecorder) ObserveRun(string, int)                     {}

// Transition is sent on the notification channel for every state change.
type Transition struct {
	RunID     string            `json:"run_id"`
	From      StepName          `json:"from"`
	To        StepName          `json:"to"`
	Iteration int               `json:"iteration"`
	Reason    TerminationReason `json:"reason,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// StepRecord describes one step execution.
type StepRecord struct {
	Seq      int           `json:"seq"`
	Step     StepName      `json:"step"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Outcome  string        `json:"outcome"`
	Detail   string        `json:"detail,omitempty"`
}

// Result is the outcome of one run.
type Result struct {
	RunID      string            `json:"run_id"`
	State      State             `json:"state"`
	Reason     TerminationReason `json:"reason"`
	Steps      []StepRecord      `json:"steps"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Accepted reports whether the final verdict was accepted.
func (r *Result) Accepted() bool {
	return r.Reason == ReasonAccepted
}

// Count returns how many times step executed.
func (r *Result) Count(step StepName) int {
	n := 0
	for i := range r.Steps {
		if r.Steps[i].Step == step {
			n++
		}
	}
	return n
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Orchestrator drives a run: execute the current step, merge its delta,
// route, repeat. One step runs at a time.
type Orchestrator struct {
	steps          map[StepName]Step
	router         Router
	recursionLimit int
	recorder       Recorder
	notifyCh       chan<- *Transition
	logger         *logx.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxIterations sets the verification budget.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.router.Budget.MaxIterations = n
		}
	}
}

// WithRecursionLimit sets the ceiling on total step executions.
func WithRecursionLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.recursionLimit = n
		}
	}
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithNotifications sends every transition on ch without blocking.
func WithNotifications(ch chan<- *Transition) Option {
	return func(o *Orchestrator) {
		o.notifyCh = ch
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *logx.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClassifier swaps the verdict classifier.
func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.router.Classify = c
		}
	}
}

// WithSteps replaces the steps with matching names.
func WithSteps(steps ...Step) Option {
	return func(o *Orchestrator) {
		for _, s := range steps {
			o.steps[s.Name()] = s
		}
	}
}

// NewOrchestrator builds an orchestrator around the oracle and reviewer.
func NewOrchestrator(o oracle.Oracle, r review.Reviewer, opts ...Option) *Orchestrator {
	orch := &Orchestrator{
		steps:          DefaultSteps(o, r),
		router:         NewRouter(DefaultBudget()),
		recursionLimit: DefaultRecursionLimit,
		recorder:       nopRecorder{},
		logger:         logx.NewLogger("pipeline"),
	}
	for _, opt := range opts {
		opt(orch)
	}
	if v, ok := orch.steps[StepVerify].(VerifyStep); ok {
		if v.Classify == nil {
			v.Classify = orch.router.Classify
		}
		if v.Logger == nil {
			v.Logger = orch.logger
		}
		orch.steps[StepVerify] = v
	}
	return orch
}

// Budget returns the configured verification budget.
func (o *Orchestrator) Budget() Budget {
	return o.router.Budget
}

// Run executes the pipeline for problem until it terminates. Step failures
// end up in Result.State.Failure; the error return is reserved for inputs
// that prevent a run from starting.
func (o *Orchestrator) Run(ctx context.Context, problem string) (*Result, error) {
	state, err := NewState(problem)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString(), StartedAt: time.Now()}
	ctx, runSpan := tracing.StartSpan(ctx, "pipeline.run")
	runSpan.SetAttributes(map[string]string{"run.id": res.RunID})
	o.logger.Info("🚀 Starting run %s (budget %d, recursion limit %d)",
		res.RunID, o.router.Budget.MaxIterations, o.recursionLimit)

	current := InitialState
	for !IsTerminalState(current) {
		var decision Decision
		if len(res.Steps) >= o.recursionLimit {
			state.Failure = newFailure(KindRecursionLimit, current, ReasonRecursionLimit,
				fmt.Errorf("%d steps executed without terminating", len(res.Steps)))
			decision = terminate(ReasonFailed)
		} else {
			o.runStep(ctx, current, state, res)
			decision = o.route(current, state)
		}

		if !IsValidTransition(current, decision.Next) {
			state.Failure = newFailure(KindInvariantViolation, current, ReasonInvariantViolation,
				fmt.Errorf("invalid transition %s → %s", current, decision.Next))
			decision = terminate(ReasonFailed)
		}
		o.transition(res.RunID, current, decision, state.Iterations)
		current = decision.Next
		res.Reason = decision.Reason
	}

	res.State = state.Snapshot()
	res.FinishedAt = time.Now()
	o.recorder.ObserveRun(string(res.Reason), state.Iterations)

	runSpan.SetAttributes(map[string]string{"run.reason": string(res.Reason)}).SetInt("run.iterations", state.Iterations)
	if state.Failure != nil {
		runSpan.End(state.Failure)
		o.logger.Error("❌ Run %s failed at %s: %v", res.RunID, state.Failure.Step, state.Failure)
	} else {
		runSpan.End(nil)
		o.logger.Info("🏁 Run %s finished: %s after %d iteration(s)", res.RunID, res.Reason, state.Iterations)
	}
	return res, nil
}

// runStep executes one step and merges its delta into state. Failures that
// the fatality policy treats as fatal are recorded on state.
func (o *Orchestrator) runStep(ctx context.Context, name StepName, state *State, res *Result) {
	rec := StepRecord{Seq: len(res.Steps) + 1, Step: name, Started: time.Now(), Outcome: OutcomeOK}

	stepCtx, span := tracing.StartSpan(ctx, "pipeline."+strings.ToLower(string(name)))
	span.SetAttributes(map[string]string{"step": string(name), "run.id": res.RunID}).SetInt("iteration", state.Iterations)

	delta, failure := o.execute(stepCtx, name, state.Snapshot())
	if failure != nil && !isFatal(name, failure) {
		o.logger.Warn("⚠️  %s failed, keeping previous artifact: %v", name, failure)
		rec.Outcome, rec.Detail = OutcomeSkipped, failure.Error()
		delta, failure = Delta{}, nil
	}
	if failure == nil {
		failure = state.merge(name, delta)
	}
	if failure != nil {
		state.Failure = failure
		rec.Outcome, rec.Detail = OutcomeFailed, failure.Error()
	}

	rec.Duration = time.Since(rec.Started)
	res.Steps = append(res.Steps, rec)
	o.recorder.ObserveStep(string(name), rec.Outcome, rec.Duration)

	if failure != nil {
		span.End(failure)
	} else {
		span.End(nil)
	}
	o.logger.Debug("%s #%d %s in %s", name, rec.Seq, rec.Outcome, rec.Duration.Round(time.Millisecond))
}

// execute runs step against a snapshot, converting a panic into a failure.
func (o *Orchestrator) execute(ctx context.Context, name StepName, snapshot State) (delta Delta, failure *Failure) {
	step, ok := o.steps[name]
	if !ok {
		return Delta{}, newFailure(KindInvariantViolation, name, ReasonInvariantViolation,
			fmt.Errorf("no step registered for %s", name))
	}
	defer func() {
		if r := recover(); r != nil {
			delta = Delta{}
			failure = newFailure(KindInvariantViolation, name, ReasonInvariantViolation,
				fmt.Errorf("step panicked: %v", r))
		}
	}()
	return step.Execute(ctx, snapshot)
}

// isFatal is the fatality policy: only ordinary oracle failures of REFINE
// are tolerated.
func isFatal(step StepName, f *Failure) bool {
	if step != StepRefine {
		return true
	}
	return f.Kind != KindOracleError && f.Kind != KindMalformedResponse
}

// route picks the next state after step ran.
func (o *Orchestrator) route(step StepName, state *State) Decision {
	snapshot := state.Snapshot()
	switch step {
	case StepVerify:
		return o.router.AfterVerify(snapshot)
	case StepHumanGate:
		return o.router.AfterHumanGate(snapshot)
	}
	if state.Failure != nil {
		return terminate(ReasonFailed)
	}
	next, ok := unconditionalNext(step)
	if !ok {
		return terminate(ReasonFailed)
	}
	return Decision{Next: next}
}

func (o *Orchestrator) transition(runID string, from StepName, d Decision, iteration int) {
	o.logger.Info("🔄 Pipeline transition: %s → %s", from, d.Next)
	if o.notifyCh == nil {
		return
	}
	n := &Transition{
		RunID:     runID,
		From:      from,
		To:        d.Next,
		Iteration: iteration,
		Reason:    d.Reason,
		Timestamp: time.Now(),
	}
	select {
	case o.notifyCh <- n:
	default:
		o.logger.Warn("⚠️  Transition notification channel full, dropping %s → %s", from, d.Next)
	}
}
