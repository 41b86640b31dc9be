package oracle

import (
	"context"
	"fmt"
	"sync"
)

// Reply is one scripted answer.
type Reply struct {
	Response Response
	Err      error
}

// Scripted is a deterministic in-memory oracle. Replies are consumed in order
// per role; the last reply for a role repeats once the queue is drained.
type Scripted struct {
	mu      sync.Mutex
	replies map[Role][]Reply
	served  map[Role]int
	calls   []Request
}

func NewScripted() *Scripted {
	return &Scripted{replies: make(map[Role][]Reply), served: make(map[Role]int)}
}

// On appends replies for role and returns s for chaining.
func (s *Scripted) On(role Role, replies ...Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[role] = append(s.replies[role], replies...)
	return s
}

func (s *Scripted) Invoke(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, NewTransportError(req.Role, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)

	queue := s.replies[req.Role]
	if len(queue) == 0 {
		return Response{}, NewTransportError(req.Role, fmt.Errorf("no scripted reply for role %s", req.Role))
	}
	idx := s.served[req.Role]
	if idx >= len(queue) {
		idx = len(queue) - 1
	}
	s.served[req.Role]++
	r := queue[idx]
	return r.Response, r.Err
}

// Calls returns a copy of every request received.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

// CallsFor counts requests for role.
func (s *Scripted) CallsFor(role Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.calls {
		if s.calls[i].Role == role {
			n++
		}
	}
	return n
}

// Generation builds a structured generation reply.
func Generation(verdict, sketch, artifact string) Reply {
	return Reply{Response: Response{Generation: &GenerationResult{
		Verdict: verdict, MethodSketch: sketch, DetailedArtifact: artifact,
	}}}
}

// Critique builds a structured critique reply.
func Critique(verdict string, findings ...string) Reply {
	return Reply{Response: Response{Critique: &CritiqueResult{
		FinalVerdict: verdict, Findings: append([]string{}, findings...),
	}}}
}

// Raw builds a free-text reply.
func Raw(text string) Reply {
	return Reply{Response: Response{Raw: text}}
}

// Fail builds an error reply.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// NewDryRun scripts a short run that needs one correction: the first
// verification reports a gap, the second accepts.
func NewDryRun() *Scripted {
	return NewScripted().
		On(RoleGenerate, Generation(
			"I have successfully solved the problem (dry run).",
			"Dry-run placeholder: outline of the argument.",
			"Dry-run placeholder proof. No model was called.",
		)).
		On(RoleRefine, Generation(
			"I have successfully solved the problem (dry run, refined).",
			"Dry-run placeholder: refined outline.",
			"Dry-run placeholder proof, refined. No model was called.",
		)).
		On(RoleVerify,
			Critique("The solution's approach is viable but contains a Justification Gap.",
				"Location: \"placeholder proof\". Issue: Justification Gap, the key step is asserted without proof."),
			Critique("The solution is correct."),
		).
		On(RoleCorrect, Generation(
			"I have successfully solved the problem (dry run, corrected).",
			"Dry-run placeholder: corrected outline.",
			"Dry-run placeholder proof with the key step justified. No model was called.",
		))
}
