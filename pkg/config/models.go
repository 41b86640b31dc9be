package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"

	// API key environment variable names.
	EnvGoogleAPIKey    = "GOOGLE_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"

	ModelGeminiFlashExp = "gemini-2.0-flash-exp"
	ModelGemini25Pro    = "gemini-2.5-pro"
	ModelGemini25Flash  = "gemini-2.5-flash"
	ModelClaudeSonnet   = "claude-sonnet-4-5"
	ModelClaudeOpus     = "claude-opus-4-5"
	ModelGPT5           = "gpt-5"
	ModelO3             = "o3"

	DefaultModel = ModelGemini25Pro
)

// ModelInfo contains static information about a known LLM model.
type ModelInfo struct {
	Provider         string
	InputCPM         float64 // Cost per million input tokens (USD)
	OutputCPM        float64 // Cost per million output tokens (USD)
	MaxContextTokens int
	MaxOutputTokens  int
	Description      string
}

// KnownModels registry. Unknown models fall back to ProviderPatterns.
//
//nolint:gochecknoglobals // static model registry
var KnownModels = map[string]ModelInfo{
	ModelGeminiFlashExp: {
		Provider:         ProviderGoogle,
		InputCPM:         0.10,
		OutputCPM:        0.40,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  8192,
		Description:      "fast, experimental",
	},
	ModelGemini25Pro: {
		Provider:         ProviderGoogle,
		InputCPM:         1.25,
		OutputCPM:        10.0,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  65536,
		Description:      "advanced reasoning",
	},
	ModelGemini25Flash: {
		Provider:         ProviderGoogle,
		InputCPM:         0.30,
		OutputCPM:        2.50,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  65536,
	},
	ModelClaudeSonnet: {
		Provider:         ProviderAnthropic,
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	ModelClaudeOpus: {
		Provider:         ProviderAnthropic,
		InputCPM:         15.0,
		OutputCPM:        75.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  16384,
	},
	ModelGPT5: {
		Provider:         ProviderOpenAI,
		InputCPM:         20.0,
		OutputCPM:        60.0,
		MaxContextTokens: 128000,
		MaxOutputTokens:  4096,
	},
	ModelO3: {
		Provider:         ProviderOpenAI,
		InputCPM:         1.1,
		OutputCPM:        4.4,
		MaxContextTokens: 128000,
		MaxOutputTokens:  16384,
	},
}

// ProviderPattern maps a model-name prefix to a provider.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

//nolint:gochecknoglobals // inference rules
var ProviderPatterns = []ProviderPattern{
	{"gemini", ProviderGoogle},
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"deepseek", ProviderOllama},
	{"phi", ProviderOllama},
	{"ollama:", ProviderOllama},
}

// GetModelProvider returns the API provider for a model, checking KnownModels
// then ProviderPatterns. A name containing ":" (an Ollama tag) maps to Ollama.
func GetModelProvider(modelName string) (string, error) {
	if info, exists := KnownModels[modelName]; exists {
		return info.Provider, nil
	}
	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	if strings.Contains(modelName, ":") {
		return ProviderOllama, nil
	}
	return "", fmt.Errorf("unknown model '%s': no known provider mapping or pattern match", modelName)
}

// GetModelInfo returns the registry entry, or conservative defaults with an
// inferred provider and false.
func GetModelInfo(modelName string) (ModelInfo, bool) {
	if info, exists := KnownModels[modelName]; exists {
		return info, true
	}
	provider, _ := GetModelProvider(modelName)
	return ModelInfo{
		Provider:         provider,
		MaxContextTokens: 32000,
		MaxOutputTokens:  4096,
	}, false
}

// ModelsForProvider lists known model names for a provider in a stable order.
func ModelsForProvider(provider string) []string {
	ordered := []string{
		ModelGemini25Pro, ModelGeminiFlashExp, ModelGemini25Flash,
		ModelClaudeSonnet, ModelClaudeOpus, ModelGPT5, ModelO3,
	}
	var out []string
	for _, name := range ordered {
		if KnownModels[name].Provider == provider {
			out = append(out, name)
		}
	}
	return out
}

// CalculateCost returns the USD cost for a call. Unknown models cost 0.
func CalculateCost(modelName string, promptTokens, completionTokens int) float64 {
	info, exists := KnownModels[modelName]
	if !exists {
		return 0
	}
	return float64(promptTokens)/1_000_000.0*info.InputCPM +
		float64(completionTokens)/1_000_000.0*info.OutputCPM
}

// APIKeyEnvVar returns the secret name holding the provider's key. Ollama has none.
func APIKeyEnvVar(provider string) (string, error) {
	switch provider {
	case ProviderGoogle:
		return EnvGoogleAPIKey, nil
	case ProviderAnthropic:
		return EnvAnthropicAPIKey, nil
	case ProviderOpenAI:
		return EnvOpenAIAPIKey, nil
	case ProviderOllama:
		return "", nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}
}

// GetAPIKey returns the API key for a provider from the secrets file or env.
// For Ollama it returns the host URL instead.
func GetAPIKey(provider string) (string, error) {
	if provider == ProviderOllama {
		if host := os.Getenv(EnvOllamaHost); host != "" {
			return host, nil
		}
		return DefaultOllamaHost, nil
	}

	envVar, err := APIKeyEnvVar(provider)
	if err != nil {
		return "", err
	}
	key, err := GetSecret(envVar)
	if err == nil && key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: %s not found in secrets file or environment variables", ErrMissingAPIKey, envVar)
}
