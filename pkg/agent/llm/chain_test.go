package llm

import (
	"context"
	"strings"
	"testing"
)

type stubClient struct {
	content string
	calls   int
	lastReq CompletionRequest
}

func (s *stubClient) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	s.calls++
	s.lastReq = req
	return CompletionResponse{Content: s.content, StopReason: "end_turn"}, nil
}

func (s *stubClient) GetModelName() string { return "stub-model" }

func tagging(tag string, order *[]string) Middleware {
	return func(next LLMClient) LLMClient {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				*order = append(*order, tag)
				resp, err := next.Complete(ctx, req)
				resp.Content = tag + "(" + resp.Content + ")"
				return resp, err
			},
			next.GetModelName,
		)
	}
}

func TestChainOrdering(t *testing.T) {
	base := &stubClient{content: "base"}
	var order []string

	client := Chain(base, tagging("a", &order), tagging("b", &order), tagging("c", &order))
	resp, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Join(order, ","); got != "a,b,c" {
		t.Errorf("middleware order = %s, want a,b,c", got)
	}
	if resp.Content != "a(b(c(base)))" {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if client.GetModelName() != "stub-model" {
		t.Errorf("model name not delegated: %s", client.GetModelName())
	}
}

func TestChainNoMiddleware(t *testing.T) {
	base := &stubClient{content: "x"}
	if Chain(base) != LLMClient(base) {
		t.Error("Chain with no middleware should return base")
	}
}

func TestNewCompletionRequestDefaults(t *testing.T) {
	req := NewCompletionRequest([]CompletionMessage{NewSystemMessage("s"), NewUserMessage("u")})
	if req.MaxTokens != DefaultMaxTokens || req.Temperature != DefaultTemperature {
		t.Errorf("unexpected defaults: %+v", req)
	}
	if req.ResponseFormat != FormatText {
		t.Errorf("default format should be text, got %q", req.ResponseFormat)
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := SplitSystem([]CompletionMessage{
		NewSystemMessage("one"),
		NewUserMessage("question"),
		NewSystemMessage("two"),
	})
	if system != "one\n\ntwo" {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "question" {
		t.Errorf("rest = %+v", rest)
	}
}

func TestValidateMessages(t *testing.T) {
	if err := ValidateMessages(nil); err == nil {
		t.Error("expected error for empty messages")
	}
	if err := ValidateMessages([]CompletionMessage{{Role: "tool", Content: "x"}}); err == nil {
		t.Error("expected error for unknown role")
	}
	if err := ValidateMessages([]CompletionMessage{NewUserMessage("ok")}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOperationContext(t *testing.T) {
	ctx := context.Background()
	if OperationFrom(ctx) != "unknown" {
		t.Error("expected unknown operation by default")
	}
	if OperationFrom(WithOperation(ctx, "verify")) != "verify" {
		t.Error("operation label not propagated")
	}
}
