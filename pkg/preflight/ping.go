package preflight

import (
	"context"
	"fmt"
	"time"

	"proofloop/pkg/agent/llm"
)

const pingPrompt = "Test connection"

// PingResult is the outcome of a live connection test.
type PingResult struct {
	Model   string
	Latency time.Duration
	Reply   string
}

// Ping sends one tiny completion through client.
func Ping(ctx context.Context, client llm.LLMClient) (PingResult, error) {
	start := time.Now()
	resp, err := client.Complete(llm.WithOperation(ctx, "ping"), llm.CompletionRequest{
		Messages:  []llm.CompletionMessage{{Role: llm.RoleUser, Content: pingPrompt}},
		MaxTokens: 64,
	})
	result := PingResult{Model: client.GetModelName(), Latency: time.Since(start)}
	if err != nil {
		return result, fmt.Errorf("connection test failed: %w", err)
	}
	result.Reply = resp.Content
	return result, nil
}
