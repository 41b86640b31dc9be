// Package validation provides response validation middleware for LLM clients.
package validation

import (
	"context"
	"strings"

	"proofloop/pkg/agent/llm"
	"proofloop/pkg/agent/llmerrors"
	"proofloop/pkg/logx"
)

const (
	maxEmptyAttempts = 2

	guidanceText = "No response was received. Please answer the request above in full."
	guidanceJSON = "No response was received. Reply with a single JSON object in the requested shape and nothing else."
)

// EmptyResponseMiddleware re-asks once, with a short guidance message appended,
// when the model returns no content. A second empty answer becomes an
// ErrorTypeEmptyResponse error.
func EmptyResponseMiddleware(logger *logx.Logger) llm.Middleware {
	if logger == nil {
		logger = logx.NewLogger("empty-response-validator")
	}
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				for attempt := 1; attempt <= maxEmptyAttempts; attempt++ {
					resp, err := next.Complete(ctx, req)
					if err != nil && !llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse) {
						return resp, err //nolint:wrapcheck // passthrough
					}
					if err == nil && strings.TrimSpace(resp.Content) != "" {
						return resp, nil
					}

					logger.Warn("⚠️ EMPTY RESPONSE (attempt %d/%d) op=%s model=%s stop=%s",
						attempt, maxEmptyAttempts, llm.OperationFrom(ctx), next.GetModelName(), resp.StopReason)

					if attempt < maxEmptyAttempts {
						guidance := guidanceText
						if req.ResponseFormat == llm.FormatJSON {
							guidance = guidanceJSON
						}
						retried := req
						retried.Messages = append(append([]llm.CompletionMessage(nil), req.Messages...), llm.NewUserMessage(guidance))
						req = retried
					}
				}
				return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse,
					"received no content after guidance retry")
			},
			next.GetModelName,
		)
	}
}
