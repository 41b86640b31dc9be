package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"proofloop/pkg/config"
)

// checkAPIKey verifies the provider's key is in the secrets file or environment.
func checkAPIKey(provider Provider) CheckResult {
	result := CheckResult{Provider: provider}

	envVar, err := config.APIKeyEnvVar(string(provider))
	if err != nil {
		result.Message = "Unknown provider"
		result.Error = err
		return result
	}

	if _, err := config.GetAPIKey(string(provider)); err != nil {
		result.Message = fmt.Sprintf("%s is not set", envVar)
		result.Error = fmt.Errorf("%w: %s", config.ErrMissingAPIKey, envVar)
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("%s API key is configured", provider)
	return result
}

// checkOllama verifies Ollama is reachable and the configured model is pulled.
func checkOllama(ctx context.Context, cfg *config.OracleConfig) CheckResult {
	result := CheckResult{Provider: ProviderOllama}

	host := cfg.OllamaHost
	if host == "" {
		host, _ = config.GetAPIKey(config.ProviderOllama)
	}
	base, err := url.Parse(host)
	if err != nil || base.Host == "" {
		result.Message = fmt.Sprintf("Invalid Ollama host %q", host)
		result.Error = fmt.Errorf("invalid ollama host %q", host)
		return result
	}

	client := api.NewClient(base, &http.Client{Timeout: 5 * time.Second})
	models, err := client.List(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("Cannot reach Ollama at %s", host)
		result.Error = err
		return result
	}

	want := strings.TrimPrefix(cfg.Model, "ollama:")
	for _, m := range models.Models {
		if m.Name == want || m.Model == want || strings.TrimSuffix(m.Name, ":latest") == want {
			result.Passed = true
			result.Message = fmt.Sprintf("Ollama is running with %d models available", len(models.Models))
			return result
		}
	}

	result.Message = fmt.Sprintf("Missing Ollama model: %s", want)
	result.Error = errors.New("missing model: " + want)
	return result
}
