package retry

import (
	"context"
	"fmt"
	"time"

	"proofloop/pkg/agent/llm"
	"proofloop/pkg/agent/llmerrors"
	"proofloop/pkg/logx"
)

// Middleware retries failed completions according to policy with exponential backoff.
// When a retryable error survives every attempt the result is a ServiceUnavailable error.
func Middleware(policy *Policy, logger *logx.Logger) llm.Middleware {
	if logger == nil {
		logger = logx.NewLogger("retry")
	}
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				var lastErr error
				attempts := 0

				for attempt := 1; attempt <= policy.Config.MaxAttempts; attempt++ {
					if attempt > 1 {
						delay := policy.CalculateDelay(attempt)
						logger.Warn("🔁 %s: retrying LLM call (attempt %d/%d) in %s after: %v",
							llm.OperationFrom(ctx), attempt, policy.Config.MaxAttempts, delay.Round(time.Millisecond), lastErr)
						if delay > 0 {
							timer := time.NewTimer(delay)
							select {
							case <-ctx.Done():
								timer.Stop()
								return llm.CompletionResponse{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
							case <-timer.C:
							}
						}
					}

					attempts = attempt
					resp, err := next.Complete(ctx, req)
					if err == nil {
						return resp, nil
					}
					lastErr = err

					// Parent context gone: a retry cannot succeed.
					if ctx.Err() != nil || !policy.ShouldRetry(err) {
						return llm.CompletionResponse{}, err
					}
				}

				return llm.CompletionResponse{}, llmerrors.NewServiceUnavailableError(lastErr, attempts)
			},
			next.GetModelName,
		)
	}
}
