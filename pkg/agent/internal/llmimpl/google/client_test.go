package google

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"proofloop/pkg/agent/llm"
	"proofloop/pkg/agent/llmerrors"
)

func TestGetModelName(t *testing.T) {
	client := NewGeminiClientWithModel("test-key", "gemini-2.5-pro")
	if client.GetModelName() != "gemini-2.5-pro" {
		t.Errorf("unexpected model %q", client.GetModelName())
	}
}

func TestConvertMessagesToGemini(t *testing.T) {
	tests := []struct {
		name         string
		messages     []llm.CompletionMessage
		wantSystem   string
		wantContents int
		wantRoles    []string
		errContains  string
	}{
		{
			name:        "empty messages",
			errContains: "message list cannot be empty",
		},
		{
			name: "system extracted",
			messages: []llm.CompletionMessage{
				llm.NewSystemMessage("You are a careful mathematician"),
				llm.NewUserMessage("Prove it"),
			},
			wantSystem:   "You are a careful mathematician",
			wantContents: 1,
			wantRoles:    []string{genai.RoleUser},
		},
		{
			name: "assistant becomes model",
			messages: []llm.CompletionMessage{
				llm.NewUserMessage("q"),
				{Role: llm.RoleAssistant, Content: "a"},
				llm.NewUserMessage("follow-up"),
			},
			wantContents: 3,
			wantRoles:    []string{genai.RoleUser, genai.RoleModel, genai.RoleUser},
		},
		{
			name:        "only system",
			messages:    []llm.CompletionMessage{llm.NewSystemMessage("s")},
			errContains: "at least one non-system message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents, system, err := convertMessagesToGemini(tt.messages)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("expected error containing %q, got %v", tt.errContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if system != tt.wantSystem {
				t.Errorf("system = %q, want %q", system, tt.wantSystem)
			}
			if len(contents) != tt.wantContents {
				t.Fatalf("contents = %d, want %d", len(contents), tt.wantContents)
			}
			for i, role := range tt.wantRoles {
				if contents[i].Role != role {
					t.Errorf("contents[%d].Role = %q, want %q", i, contents[i].Role, role)
				}
			}
		})
	}
}

func TestGetStopReason(t *testing.T) {
	cases := map[genai.FinishReason]string{
		genai.FinishReasonStop:      "end_turn",
		genai.FinishReasonMaxTokens: "max_tokens",
		genai.FinishReasonSafety:    "safety",
	}
	for reason, want := range cases {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: reason}}}
		if got := getStopReason(resp); got != want {
			t.Errorf("getStopReason(%s) = %q, want %q", reason, got, want)
		}
	}
	if getStopReason(nil) != "unknown" {
		t.Error("nil response should be unknown")
	}
}

func TestClassifyError(t *testing.T) {
	err := classifyError(genai.APIError{Code: 429, Message: "quota"})
	if !llmerrors.Is(err, llmerrors.ErrorTypeRateLimit) {
		t.Errorf("expected rate limit, got %v", err)
	}
	err = classifyError(genai.APIError{Code: 400, Message: "bad"})
	if !llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt) {
		t.Errorf("expected bad prompt, got %v", err)
	}
	raw := errors.New("connection reset by peer")
	if !llmerrors.Is(classifyError(raw), llmerrors.ErrorTypeTransient) {
		t.Error("expected transient for raw network error")
	}
}
