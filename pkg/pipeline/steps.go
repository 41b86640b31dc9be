package pipeline

import (
	"context"
	"errors"
	"strings"

	"proofloop/pkg/logx"
	"proofloop/pkg/oracle"
	"proofloop/pkg/review"
)

// Step is one unit of work. Execute never mutates state; it returns a delta
// for the orchestrator to merge, or a failure carried as data.
type Step interface {
	Name() StepName
	Execute(ctx context.Context, s State) (Delta, *Failure)
}

// Critique text used when the verifier lists no findings.
const NoIssuesCritique = "No issues found."

// Fallback verdicts for unstructured verification output.
const (
	FallbackAcceptVerdict = "The solution is correct."
	FallbackRejectVerdict = "The solution may contain issues - manual review recommended."
	emptyRawFinding       = "The verifier returned no usable output."
)

// oracleFailure classifies an oracle error for step. Errors that are neither
// transport nor malformed, such as context cancellation, count as oracle errors.
func oracleFailure(step StepName, reason string, err error) *Failure {
	switch {
	case oracle.IsTransport(err):
		return newFailure(KindOracleError, step, reason, err)
	case oracle.IsMalformed(err):
		return newFailure(KindMalformedResponse, step, reason, err)
	default:
		return newFailure(KindOracleError, step, reason, err)
	}
}

// generationDelta renders a generation result into an artifact delta.
func generationDelta(step StepName, reason string, role oracle.Role, resp oracle.Response) (Delta, *Failure) {
	if resp.Generation == nil {
		return Delta{}, newFailure(KindMalformedResponse, step, reason,
			oracle.NewMalformedError(role, errors.New("response carries no generation result")))
	}
	artifact := resp.Generation.Render()
	return Delta{Artifact: &artifact}, nil
}

// GenerateStep drafts the first artifact from the problem.
type GenerateStep struct {
	Oracle oracle.Oracle
}

func (GenerateStep) Name() StepName { return StepGenerate }

func (g GenerateStep) Execute(ctx context.Context, s State) (Delta, *Failure) {
	resp, err := g.Oracle.Invoke(ctx, oracle.Request{
		Role:    oracle.RoleGenerate,
		Mode:    oracle.ModeStructured,
		Problem: s.Problem,
	})
	if err != nil {
		return Delta{}, oracleFailure(StepGenerate, ReasonGenerationFailed, err)
	}
	return generationDelta(StepGenerate, ReasonGenerationFailed, oracle.RoleGenerate, resp)
}

// RefineStep asks the oracle to self-critique and improve the artifact.
// Its failures are reported but the orchestrator does not treat them as fatal.
type RefineStep struct {
	Oracle oracle.Oracle
}

func (RefineStep) Name() StepName { return StepRefine }

func (r RefineStep) Execute(ctx context.Context, s State) (Delta, *Failure) {
	resp, err := r.Oracle.Invoke(ctx, oracle.Request{
		Role:     oracle.RoleRefine,
		Mode:     oracle.ModeStructured,
		Problem:  s.Problem,
		Artifact: s.Artifact,
	})
	if err != nil {
		return Delta{}, oracleFailure(StepRefine, ReasonRefinementFailed, err)
	}
	return generationDelta(StepRefine, ReasonRefinementFailed, oracle.RoleRefine, resp)
}

// VerifyStep critiques the artifact and always advances the iteration count
// when it succeeds. If the structured answer is unusable it retries once in
// raw mode and classifies the free text with Classify.
type VerifyStep struct {
	Oracle oracle.Oracle
	// Classify reads raw verifier output. Nil means ClassifyVerdict.
	Classify Classifier
	Logger   *logx.Logger
}

func (VerifyStep) Name() StepName { return StepVerify }

func (v VerifyStep) Execute(ctx context.Context, s State) (Delta, *Failure) {
	req := oracle.Request{
		Role:     oracle.RoleVerify,
		Mode:     oracle.ModeStructured,
		Problem:  s.Problem,
		Artifact: s.Artifact,
	}
	resp, err := v.Oracle.Invoke(ctx, req)
	if err == nil && resp.Critique != nil && strings.TrimSpace(resp.Critique.FinalVerdict) != "" {
		return verifyDelta(FormatCritique(resp.Critique.Findings), resp.Critique.FinalVerdict), nil
	}
	structuredErr := err
	if structuredErr == nil {
		structuredErr = oracle.NewMalformedError(oracle.RoleVerify, errors.New("response carries no critique"))
	}

	req.Mode = oracle.ModeRaw
	raw, rawErr := v.Oracle.Invoke(ctx, req)
	if rawErr != nil {
		return Delta{}, newFailure(KindOracleError, StepVerify, ReasonVerificationFailed,
			errors.Join(structuredErr, rawErr))
	}
	critique, verdict := v.classifyRaw(raw.Raw)
	return verifyDelta(critique, verdict), nil
}

// classifyRaw turns unstructured verifier output into a critique and verdict
// pair. The whole text goes through the classifier, so a hedged or negated
// conclusion rejects. On rejection the text itself is the critique.
func (v VerifyStep) classifyRaw(text string) (critique, verdict string) {
	classify := v.Classify
	if classify == nil {
		classify = ClassifyVerdict
	}
	logger := v.Logger
	if logger == nil {
		logger = logx.NewLogger("pipeline")
	}

	text = strings.TrimSpace(text)
	class := classify(text)
	logger.Info("📝 Verifier returned unstructured output (%d chars), classified %s", len(text), class)
	logger.Debug("Raw verifier output:\n%s", text)

	if class == Accept {
		// The router classifies the verdict again with the same classifier.
		if classify(FallbackAcceptVerdict) == Accept {
			return NoIssuesCritique, FallbackAcceptVerdict
		}
		return NoIssuesCritique, text
	}
	if text == "" {
		return FormatCritique([]string{emptyRawFinding}), FallbackRejectVerdict
	}
	return text, FallbackRejectVerdict
}

func verifyDelta(critique, verdict string) Delta {
	return Delta{Critique: &critique, Verdict: &verdict, IncrementIteration: true}
}

// FormatCritique joins findings one per line, or returns NoIssuesCritique.
func FormatCritique(findings []string) string {
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		if f = strings.TrimSpace(f); f != "" {
			lines = append(lines, "- "+f)
		}
	}
	if len(lines) == 0 {
		return NoIssuesCritique
	}
	return strings.Join(lines, "\n")
}

// HumanGateStep blocks on the reviewer. Approval changes nothing; rejection
// and reviewer errors end the run.
type HumanGateStep struct {
	Reviewer review.Reviewer
}

func (HumanGateStep) Name() StepName { return StepHumanGate }

func (h HumanGateStep) Execute(ctx context.Context, s State) (Delta, *Failure) {
	decision, err := h.Reviewer.RequestApproval(ctx, review.Review{
		Verdict:   s.Verdict,
		Critique:  s.Critique,
		Iteration: s.Iterations,
	})
	if err != nil {
		return Delta{}, newFailure(KindReviewerError, StepHumanGate, ReasonReviewerError, err)
	}
	if decision != review.Approved {
		return Delta{}, newFailure(KindReviewerRejected, StepHumanGate, ReasonReviewerRejected, nil)
	}
	return Delta{}, nil
}

// CorrectStep revises the artifact to address the critique.
type CorrectStep struct {
	Oracle oracle.Oracle
}

func (CorrectStep) Name() StepName { return StepCorrect }

func (c CorrectStep) Execute(ctx context.Context, s State) (Delta, *Failure) {
	resp, err := c.Oracle.Invoke(ctx, oracle.Request{
		Role:     oracle.RoleCorrect,
		Mode:     oracle.ModeStructured,
		Problem:  s.Problem,
		Artifact: s.Artifact,
		Critique: s.Critique,
	})
	if err != nil {
		return Delta{}, oracleFailure(StepCorrect, ReasonCorrectionFailed, err)
	}
	return generationDelta(StepCorrect, ReasonCorrectionFailed, oracle.RoleCorrect, resp)
}

// DefaultSteps builds the five steps around the injected capabilities.
func DefaultSteps(o oracle.Oracle, r review.Reviewer) map[StepName]Step {
	return map[StepName]Step{
		StepGenerate:  GenerateStep{Oracle: o},
		StepRefine:    RefineStep{Oracle: o},
		StepVerify:    VerifyStep{Oracle: o},
		StepHumanGate: HumanGateStep{Reviewer: r},
		StepCorrect:   CorrectStep{Oracle: o},
	}
}
