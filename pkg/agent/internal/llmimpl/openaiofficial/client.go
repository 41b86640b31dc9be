// Package openaiofficial provides an OpenAI client built on the official
// openai-go package and the Responses API.
package openaiofficial

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"proofloop/pkg/agent/llm"
	"proofloop/pkg/agent/llmerrors"
	"proofloop/pkg/config"
)

// OfficialClient wraps the official OpenAI client.
type OfficialClient struct {
	client openai.Client
	model  string
}

// NewOfficialClientWithModel creates a raw client; middleware is applied by the factory.
func NewOfficialClientWithModel(apiKey, model string) llm.LLMClient {
	return &OfficialClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Reasoning models reject the temperature parameter.
func supportsTemperature(model string) bool {
	m := strings.ToLower(model)
	return !strings.HasPrefix(m, "gpt-5") && !strings.HasPrefix(m, "o1") &&
		!strings.HasPrefix(m, "o3") && !strings.HasPrefix(m, "o4")
}

// buildInput flattens the conversation for the Responses API. System
// messages go to the instructions field.
func buildInput(messages []llm.CompletionMessage) (instructions, input string, err error) {
	if err := llm.ValidateMessages(messages); err != nil {
		return "", "", err
	}
	instructions, rest := llm.SplitSystem(messages)
	if len(rest) == 0 {
		return "", "", fmt.Errorf("must have at least one non-system message")
	}

	var b strings.Builder
	for i := range rest {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if rest[i].Role == llm.RoleAssistant {
			b.WriteString("Assistant: ")
		}
		b.WriteString(rest[i].Content)
	}
	return instructions, b.String(), nil
}

func (o *OfficialClient) maxTokens(requested int) int {
	if info, ok := config.KnownModels[o.model]; ok && info.MaxOutputTokens > 0 && requested > info.MaxOutputTokens {
		return info.MaxOutputTokens
	}
	return requested
}

// Complete implements llm.LLMClient.
//
//nolint:gocritic // CompletionRequest passed by value for interface consistency
func (o *OfficialClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	instructions, input, err := buildInput(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(o.maxTokens(in.MaxTokens))),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}
	if supportsTemperature(o.model) {
		params.Temperature = openai.Float(float64(in.Temperature))
	}
	if in.ResponseFormat == llm.FormatJSON {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
		}
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	return llm.CompletionResponse{
		Content:    resp.OutputText(),
		StopReason: stopReason(string(resp.Status), resp.IncompleteDetails.Reason),
	}, nil
}

func (o *OfficialClient) GetModelName() string {
	return o.model
}

func stopReason(status, incompleteReason string) string {
	switch {
	case status == "completed" || status == "":
		return "end_turn"
	case incompleteReason == "max_output_tokens":
		return "max_tokens"
	case incompleteReason == "content_filter":
		return "safety"
	default:
		return status
	}
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llmerrors.NewErrorWithCause(llmerrors.ClassifyStatus(apiErr.StatusCode), err,
			fmt.Sprintf("OpenAI Responses API failed: status %d", apiErr.StatusCode))
	}
	return llmerrors.Classify(err, "openai")
}
