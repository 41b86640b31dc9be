package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"proofloop/pkg/agent/llm"
	"proofloop/pkg/agent/llmerrors"
	"proofloop/pkg/config"
	"proofloop/pkg/logx"
	"proofloop/pkg/utils"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor returns token usage for a request/response pair.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor estimates usage with the tiktoken GPT-4 encoding.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	var prompt strings.Builder
	for i := range req.Messages {
		prompt.WriteString(req.Messages[i].Content)
		prompt.WriteByte('\n')
	}
	return utils.CountTokens(prompt.String()), utils.CountTokens(resp.Content)
}

// Middleware records latency, token usage, cost and error type for every request.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if recorder == nil {
		recorder = Nop()
	}
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()
				operation := llm.OperationFrom(ctx)

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				var cost float64
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
					cost = config.CalculateCost(model, promptTokens, completionTokens)
				}
				errorType := getErrorType(err)

				recorder.ObserveRequest(model, operation, promptTokens, completionTokens, cost, err == nil, errorType, duration)

				if logger != nil {
					status := statusSuccess
					if err != nil {
						status = statusError + "/" + errorType
					}
					logger.Info("🎯 LLM Request: model=%s op=%s tokens=%d+%d=%d cost=$%.4f status=%s duration=%dms",
						model, operation, promptTokens, completionTokens, promptTokens+completionTokens,
						cost, status, duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // passthrough
			},
			next.GetModelName,
		)
	}
}

// getErrorType labels err for metrics.
func getErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return llmerrors.TypeOf(err).String()
	}
}
