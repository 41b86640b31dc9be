package config

import (
	"errors"
	"testing"
)

func TestGetModelProvider(t *testing.T) {
	tests := []struct {
		model   string
		want    string
		wantErr bool
	}{
		{ModelGeminiFlashExp, ProviderGoogle, false},
		{ModelGemini25Pro, ProviderGoogle, false},
		{"gemini-3-pro-preview", ProviderGoogle, false},
		{"claude-3-haiku", ProviderAnthropic, false},
		{"gpt-4o", ProviderOpenAI, false},
		{"o4-mini", ProviderOpenAI, false},
		{"qwen2.5-coder:32b", ProviderOllama, false},
		{"custom-model:latest", ProviderOllama, false},
		{"mystery", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := GetModelProvider(tt.model)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetModelProvider(%q) error = %v, wantErr %v", tt.model, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetModelProvider(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestGetModelInfoUnknownUsesConservativeDefaults(t *testing.T) {
	info, known := GetModelInfo("gemini-experimental-x")
	if known {
		t.Fatal("expected unknown model")
	}
	if info.Provider != ProviderGoogle || info.MaxOutputTokens != 4096 {
		t.Errorf("unexpected defaults: %+v", info)
	}
}

func TestCalculateCost(t *testing.T) {
	cost := CalculateCost(ModelGemini25Pro, 1_000_000, 1_000_000)
	if cost != 11.25 {
		t.Errorf("cost = %v, want 11.25", cost)
	}
	if CalculateCost("unknown", 10, 10) != 0 {
		t.Error("unknown models should cost 0")
	}
}

func TestModelsForProvider(t *testing.T) {
	models := ModelsForProvider(ProviderGoogle)
	if len(models) < 2 || models[0] != ModelGemini25Pro {
		t.Errorf("unexpected google models: %v", models)
	}
}

func TestGetAPIKey(t *testing.T) {
	SetDecryptedSecrets(nil)
	t.Setenv(EnvGoogleAPIKey, "")

	if _, err := GetAPIKey(ProviderGoogle); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}

	t.Setenv(EnvGoogleAPIKey, "env-key")
	if key, err := GetAPIKey(ProviderGoogle); err != nil || key != "env-key" {
		t.Errorf("GetAPIKey = %q, %v", key, err)
	}

	SetSecret(EnvGoogleAPIKey, "file-key")
	defer SetDecryptedSecrets(nil)
	if key, _ := GetAPIKey(ProviderGoogle); key != "file-key" {
		t.Errorf("secrets file should take precedence, got %q", key)
	}

	t.Setenv(EnvOllamaHost, "")
	if host, _ := GetAPIKey(ProviderOllama); host != DefaultOllamaHost {
		t.Errorf("ollama host = %q", host)
	}

	if _, err := GetAPIKey("bogus"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
