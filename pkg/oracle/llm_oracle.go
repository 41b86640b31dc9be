package oracle

import (
	"context"
	"fmt"

	"proofloop/pkg/agent/llm"
	"proofloop/pkg/logx"
	"proofloop/pkg/templates"
	"proofloop/pkg/utils"
)

// prompt templates per role: system, user
//
//nolint:gochecknoglobals // fixed table
var rolePrompts = map[Role][2]templates.PromptTemplate{
	RoleGenerate: {templates.GenerateSystemTemplate, templates.GenerateUserTemplate},
	RoleRefine:   {templates.RefineSystemTemplate, templates.RefineUserTemplate},
	RoleVerify:   {templates.VerifySystemTemplate, templates.VerifyUserTemplate},
	RoleCorrect:  {templates.CorrectSystemTemplate, templates.CorrectUserTemplate},
}

// Options tunes LLM requests.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// LLMOracle implements Oracle over an llm.LLMClient.
type LLMOracle struct {
	client   llm.LLMClient
	renderer *templates.Renderer
	opts     Options
	logger   *logx.Logger
}

// NewLLMOracle creates an oracle. Zero options take the llm package defaults.
func NewLLMOracle(client llm.LLMClient, opts Options, logger *logx.Logger) (*LLMOracle, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	if opts.Temperature == 0 {
		opts.Temperature = llm.DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = llm.DefaultMaxTokens
	}
	if logger == nil {
		logger = logx.NewLogger("oracle")
	}
	return &LLMOracle{client: client, renderer: renderer, opts: opts, logger: logger}, nil
}

// ModelName returns the underlying model.
func (o *LLMOracle) ModelName() string {
	return o.client.GetModelName()
}

// Invoke renders the role prompts, calls the model and decodes the answer.
// Transport errors and undecodable answers come back as *Error.
func (o *LLMOracle) Invoke(ctx context.Context, req Request) (Response, error) {
	if !req.Role.Valid() {
		return Response{}, NewMalformedError(req.Role, fmt.Errorf("unknown role %q", req.Role))
	}
	if req.Mode == "" {
		req.Mode = ModeStructured
	}

	messages, err := o.buildMessages(req)
	if err != nil {
		return Response{}, NewTransportError(req.Role, err)
	}

	completion := llm.CompletionRequest{
		Messages:    messages,
		MaxTokens:   o.opts.MaxTokens,
		Temperature: o.opts.Temperature,
	}
	if req.Mode == ModeStructured {
		completion.ResponseFormat = llm.FormatJSON
	}

	o.logger.Debug("🧠 %s (%s) prompt ~%d tokens", req.Role, req.Mode, promptTokens(messages))

	resp, err := o.client.Complete(llm.WithOperation(ctx, string(req.Role)), completion)
	if err != nil {
		return Response{}, NewTransportError(req.Role, err)
	}

	if req.Mode == ModeRaw {
		return Response{Raw: resp.Content}, nil
	}
	return decode(req.Role, resp.Content)
}

func (o *LLMOracle) buildMessages(req Request) ([]llm.CompletionMessage, error) {
	names := rolePrompts[req.Role]
	data := &templates.TemplateData{Problem: req.Problem, Artifact: req.Artifact, Critique: req.Critique}

	system, err := o.renderer.Render(names[0], data)
	if err != nil {
		return nil, err
	}
	if req.Mode == ModeStructured {
		format := templates.GenerationFormatTemplate
		if req.Role == RoleVerify {
			format = templates.CritiqueFormatTemplate
		}
		instructions, err := o.renderer.Render(format, data)
		if err != nil {
			return nil, err
		}
		system += "\n\n" + instructions
	}

	user, err := o.renderer.Render(names[1], data)
	if err != nil {
		return nil, err
	}
	return []llm.CompletionMessage{llm.NewSystemMessage(system), llm.NewUserMessage(user)}, nil
}

func decode(role Role, content string) (Response, error) {
	if role == RoleVerify {
		c, err := parseCritique(content)
		if err != nil {
			return Response{}, NewMalformedError(role, err)
		}
		return Response{Critique: c}, nil
	}
	g, err := parseGeneration(content)
	if err != nil {
		return Response{}, NewMalformedError(role, err)
	}
	return Response{Generation: g}, nil
}

func promptTokens(messages []llm.CompletionMessage) int {
	n := 0
	for i := range messages {
		n += utils.CountTokens(messages[i].Content)
	}
	return n
}
