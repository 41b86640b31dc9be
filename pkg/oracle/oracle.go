// Package oracle defines the generation/verification capability the pipeline
// calls, and its LLM-backed and scripted implementations.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Role selects which task the oracle performs.
type Role string

const (
	RoleGenerate Role = "generate"
	RoleRefine   Role = "refine"
	RoleVerify   Role = "verify"
	RoleCorrect  Role = "correct"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleGenerate, RoleRefine, RoleVerify, RoleCorrect:
		return true
	}
	return false
}

// Mode selects between a structured (JSON) answer and free text.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeRaw        Mode = "raw"
)

// Request is one oracle invocation.
type Request struct {
	Role     Role
	Mode     Mode
	Problem  string
	Artifact string // prior artifact for refine/verify/correct
	Critique string // critique for correct
}

// GenerationResult is the structured answer for generate, refine and correct.
type GenerationResult struct {
	Verdict          string `json:"verdict"`
	MethodSketch     string `json:"method_sketch"`
	DetailedArtifact string `json:"detailed_artifact"`
}

// Render produces the markdown artifact carried through the pipeline.
func (g GenerationResult) Render() string {
	return fmt.Sprintf("## Summary\n\n**Verdict:** %s\n\n**Method Sketch:**\n%s\n\n## Detailed Solution\n\n%s",
		g.Verdict, g.MethodSketch, g.DetailedArtifact)
}

// CritiqueResult is the structured answer for verify.
type CritiqueResult struct {
	FinalVerdict string   `json:"final_verdict"`
	Findings     []string `json:"findings"`
}

// Response carries exactly one of Generation, Critique or Raw, depending on
// the request's role and mode.
type Response struct {
	Generation *GenerationResult
	Critique   *CritiqueResult
	Raw        string
}

// Oracle is the external generation/verification/correction capability.
type Oracle interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Invoke(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// ErrorKind separates transport failures from unusable answers.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindMalformed ErrorKind = "malformed"
)

// Error is returned by oracle implementations.
type Error struct {
	Kind ErrorKind
	Role Role
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle %s %s error: %v", e.Role, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a transport failure.
func NewTransportError(role Role, err error) *Error {
	return &Error{Kind: KindTransport, Role: role, Err: err}
}

// NewMalformedError wraps err as a malformed-response failure.
func NewMalformedError(role Role, err error) *Error {
	return &Error{Kind: KindMalformed, Role: role, Err: err}
}

// IsMalformed reports whether err is a malformed-response oracle error.
func IsMalformed(err error) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Kind == KindMalformed
}

// IsTransport reports whether err is a transport oracle error.
func IsTransport(err error) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Kind == KindTransport
}
