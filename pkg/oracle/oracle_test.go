package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofloop/pkg/agent/llm"
	"proofloop/pkg/agent/llmerrors"
)

type recordingClient struct {
	content string
	err     error
	reqs    []llm.CompletionRequest
	ops     []string
}

func (r *recordingClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	r.reqs = append(r.reqs, req)
	r.ops = append(r.ops, llm.OperationFrom(ctx))
	if r.err != nil {
		return llm.CompletionResponse{}, r.err
	}
	return llm.CompletionResponse{Content: r.content, StopReason: "end_turn"}, nil
}

func (r *recordingClient) GetModelName() string { return "recording" }

const generationJSON = `{"summary": {"verdict": "I have successfully solved the problem.", "method_sketch": "Induction."}, "detailed_solution": {"proof": "Base case and step."}}`

func newTestOracle(t *testing.T, client llm.LLMClient) *LLMOracle {
	t.Helper()
	o, err := NewLLMOracle(client, Options{}, nil)
	require.NoError(t, err)
	return o
}

func TestGenerationRender(t *testing.T) {
	g := GenerationResult{Verdict: "V", MethodSketch: "M", DetailedArtifact: "D"}
	assert.Equal(t, "## Summary\n\n**Verdict:** V\n\n**Method Sketch:**\nM\n\n## Detailed Solution\n\nD", g.Render())
}

func TestInvokeGenerateStructured(t *testing.T) {
	client := &recordingClient{content: generationJSON}
	o := newTestOracle(t, client)

	resp, err := o.Invoke(context.Background(), Request{Role: RoleGenerate, Problem: "Prove P."})
	require.NoError(t, err)
	require.NotNil(t, resp.Generation)
	assert.Equal(t, "Induction.", resp.Generation.MethodSketch)
	assert.Equal(t, "Base case and step.", resp.Generation.DetailedArtifact)

	require.Len(t, client.reqs, 1)
	req := client.reqs[0]
	assert.Equal(t, llm.FormatJSON, req.ResponseFormat)
	assert.Equal(t, []string{"generate"}, client.ops)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "detailed_solution")
	assert.Contains(t, req.Messages[1].Content, "Prove P.")
	assert.InDelta(t, llm.DefaultTemperature, req.Temperature, 1e-6)
}

func TestInvokeCorrectIncludesCritique(t *testing.T) {
	client := &recordingClient{content: generationJSON}
	o := newTestOracle(t, client)

	_, err := o.Invoke(context.Background(), Request{
		Role: RoleCorrect, Problem: "P", Artifact: "old proof", Critique: "- Critical Error in step 2",
	})
	require.NoError(t, err)
	user := client.reqs[0].Messages[1].Content
	assert.Contains(t, user, "old proof")
	assert.Contains(t, user, "- Critical Error in step 2")
}

func TestInvokeVerifyStructured(t *testing.T) {
	client := &recordingClient{content: "```json\n{\"final_verdict\": \"The solution is correct.\", \"findings\": null}\n```"}
	o := newTestOracle(t, client)

	resp, err := o.Invoke(context.Background(), Request{Role: RoleVerify, Problem: "P", Artifact: "A"})
	require.NoError(t, err)
	require.NotNil(t, resp.Critique)
	assert.Equal(t, "The solution is correct.", resp.Critique.FinalVerdict)
	assert.Empty(t, resp.Critique.Findings)
	assert.NotNil(t, resp.Critique.Findings)
	assert.Contains(t, client.reqs[0].Messages[0].Content, "final_verdict")
}

func TestInvokeRawMode(t *testing.T) {
	client := &recordingClient{content: "Final Verdict: the solution is correct."}
	o := newTestOracle(t, client)

	resp, err := o.Invoke(context.Background(), Request{Role: RoleVerify, Mode: ModeRaw, Problem: "P", Artifact: "A"})
	require.NoError(t, err)
	assert.Equal(t, "Final Verdict: the solution is correct.", resp.Raw)
	assert.Nil(t, resp.Critique)
	assert.Equal(t, llm.FormatText, client.reqs[0].ResponseFormat)
	assert.NotContains(t, client.reqs[0].Messages[0].Content, "final_verdict")
}

func TestInvokeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		content string
	}{
		{"prose only", RoleGenerate, "Here is my proof: trivially true."},
		{"missing proof", RoleRefine, `{"summary": {"verdict": "v", "method_sketch": "m"}, "detailed_solution": {}}`},
		{"broken json", RoleCorrect, `{"summary": `},
		{"missing verdict", RoleVerify, `{"findings": ["gap"]}`},
		{"empty", RoleVerify, "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOracle(t, &recordingClient{content: tt.content})
			_, err := o.Invoke(context.Background(), Request{Role: tt.role, Problem: "P", Artifact: "A"})
			require.Error(t, err)
			assert.True(t, IsMalformed(err), "expected malformed, got %v", err)
			assert.False(t, IsTransport(err))
		})
	}
}

func TestInvokeTransportError(t *testing.T) {
	cause := llmerrors.NewServiceUnavailableError(errors.New("503"), 3)
	o := newTestOracle(t, &recordingClient{err: cause})

	_, err := o.Invoke(context.Background(), Request{Role: RoleGenerate, Problem: "P"})
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeServiceUnavailable))

	var oe *Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, RoleGenerate, oe.Role)
}

func TestInvokeUnknownRole(t *testing.T) {
	o := newTestOracle(t, &recordingClient{content: generationJSON})
	_, err := o.Invoke(context.Background(), Request{Role: "summarise"})
	assert.True(t, IsMalformed(err))
}

func TestParseCritiqueDropsBlankFindings(t *testing.T) {
	c, err := parseCritique(`Sure! {"final_verdict": " The solution contains a Critical Error. ", "findings": ["a", "  ", "b"]} Hope this helps.`)
	require.NoError(t, err)
	assert.Equal(t, "The solution contains a Critical Error.", c.FinalVerdict)
	assert.Equal(t, []string{"a", "b"}, c.Findings)
}

func TestExtractJSON(t *testing.T) {
	got, err := extractJSON("```\n{\"a\": {\"b\": 1}}\n```")
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, err = extractJSON("no braces here")
	assert.ErrorIs(t, err, errNoJSON)
}

func TestScriptedRepeatsLastReply(t *testing.T) {
	s := NewScripted().On(RoleVerify, Critique("The solution contains an error.", "x"), Critique("The solution is correct."))
	ctx := context.Background()

	verdicts := make([]string, 0, 3)
	for range 3 {
		resp, err := s.Invoke(ctx, Request{Role: RoleVerify})
		require.NoError(t, err)
		verdicts = append(verdicts, resp.Critique.FinalVerdict)
	}
	assert.Equal(t, []string{"The solution contains an error.", "The solution is correct.", "The solution is correct."}, verdicts)
	assert.Equal(t, 3, s.CallsFor(RoleVerify))
	assert.Len(t, s.Calls(), 3)
}

func TestScriptedUnscriptedRoleIsTransport(t *testing.T) {
	_, err := NewScripted().Invoke(context.Background(), Request{Role: RoleRefine})
	assert.True(t, IsTransport(err))
}

func TestScriptedHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDryRun().Invoke(ctx, Request{Role: RoleGenerate})
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDryRunScript(t *testing.T) {
	s := NewDryRun()
	ctx := context.Background()
	for _, role := range []Role{RoleGenerate, RoleRefine, RoleCorrect} {
		resp, err := s.Invoke(ctx, Request{Role: role})
		require.NoError(t, err)
		require.NotNil(t, resp.Generation)
		assert.True(t, strings.Contains(resp.Generation.DetailedArtifact, "Dry-run"))
	}
	first, _ := s.Invoke(ctx, Request{Role: RoleVerify})
	second, _ := s.Invoke(ctx, Request{Role: RoleVerify})
	assert.NotEmpty(t, first.Critique.Findings)
	assert.Equal(t, "The solution is correct.", second.Critique.FinalVerdict)
}
