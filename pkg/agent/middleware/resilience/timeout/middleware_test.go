package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"proofloop/pkg/agent/llm"
)

type blockingClient struct{}

func (blockingClient) Complete(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	<-ctx.Done()
	return llm.CompletionResponse{}, ctx.Err()
}

func (blockingClient) GetModelName() string { return "blocking" }

func TestMiddlewareAppliesDeadline(t *testing.T) {
	client := llm.Chain(blockingClient{}, Middleware(20*time.Millisecond))

	start := time.Now()
	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout took too long")
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	base := blockingClient{}
	if client := Middleware(0)(base); client != llm.LLMClient(base) {
		t.Error("zero duration should return the client unchanged")
	}
}
