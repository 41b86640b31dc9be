// Package review provides the human approval gate that decides whether a
// verifier critique is sent on for correction.
package review

import (
	"context"
	"errors"
)

// Decision is the reviewer's answer.
type Decision string

const (
	Approved Decision = "APPROVED"
	Rejected Decision = "REJECTED"
)

// ErrNoDecision is returned when the reviewer's input ends before an answer.
var ErrNoDecision = errors.New("reviewer gave no decision")

// Review is what the reviewer is asked to judge.
type Review struct {
	Verdict   string
	Critique  string
	Iteration int
}

// Reviewer approves or rejects a critique. Implementations block until a
// decision is made; there is no timeout.
type Reviewer interface {
	RequestApproval(ctx context.Context, r Review) (Decision, error)
}

// AutoReviewer always returns the same decision.
type AutoReviewer struct {
	Decision Decision
}

func (a AutoReviewer) RequestApproval(_ context.Context, _ Review) (Decision, error) {
	if a.Decision == "" {
		return Approved, nil
	}
	return a.Decision, nil
}

// FuncReviewer adapts a function to Reviewer.
type FuncReviewer func(ctx context.Context, r Review) (Decision, error)

func (f FuncReviewer) RequestApproval(ctx context.Context, r Review) (Decision, error) {
	return f(ctx, r)
}
