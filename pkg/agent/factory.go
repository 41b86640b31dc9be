// Package agent builds LLM clients with their middleware chain.
package agent

import (
	"fmt"

	"proofloop/pkg/agent/internal/llmimpl/anthropic"
	"proofloop/pkg/agent/internal/llmimpl/google"
	"proofloop/pkg/agent/internal/llmimpl/ollama"
	"proofloop/pkg/agent/internal/llmimpl/openaiofficial"
	"proofloop/pkg/agent/llm"
	"proofloop/pkg/agent/middleware/metrics"
	"proofloop/pkg/agent/middleware/resilience/retry"
	"proofloop/pkg/agent/middleware/resilience/timeout"
	"proofloop/pkg/agent/middleware/validation"
	"proofloop/pkg/config"
	"proofloop/pkg/logx"
)

// LLMClientFactory creates LLM clients with configured middleware chains.
type LLMClientFactory struct {
	config   config.OracleConfig
	recorder metrics.Recorder
	logger   *logx.Logger
}

// NewLLMClientFactory creates a factory. A nil recorder disables metrics.
func NewLLMClientFactory(cfg config.OracleConfig, recorder metrics.Recorder, logger *logx.Logger) *LLMClientFactory {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	if logger == nil {
		logger = logx.NewLogger("llm")
	}
	return &LLMClientFactory{config: cfg, recorder: recorder, logger: logger}
}

// NewLLMClient is shorthand for NewLLMClientFactory(cfg, recorder, logger).CreateClient().
func NewLLMClient(cfg config.OracleConfig, recorder metrics.Recorder, logger *logx.Logger) (llm.LLMClient, error) {
	return NewLLMClientFactory(cfg, recorder, logger).CreateClient()
}

// CreateClient builds the provider client for the configured model and wraps it.
// The API key comes from the secrets file or the provider's environment variable.
func (f *LLMClientFactory) CreateClient() (llm.LLMClient, error) {
	raw, err := f.createRawClient()
	if err != nil {
		return nil, err
	}
	return f.Wrap(raw), nil
}

func (f *LLMClientFactory) createRawClient() (llm.LLMClient, error) {
	modelName := f.config.Model
	if modelName == "" {
		return nil, fmt.Errorf("no model configured")
	}

	provider := f.config.Provider
	if provider == "" {
		p, err := config.GetModelProvider(modelName)
		if err != nil {
			return nil, fmt.Errorf("failed to determine provider for model %s: %w", modelName, err)
		}
		provider = p
	}

	if provider == config.ProviderOllama {
		host := f.config.OllamaHost
		if host == "" {
			h, err := config.GetAPIKey(provider)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve Ollama host: %w", err)
			}
			host = h
		}
		return ollama.NewOllamaClientWithModel(host, modelName), nil
	}

	apiKey, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}

	switch provider {
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(apiKey, modelName), nil
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(apiKey, modelName), nil
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClientWithModel(apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// Wrap applies the middleware chain to a raw client:
// Metrics -> Retry -> Timeout -> EmptyResponse -> RawClient.
// Metrics sees one logical request per call; each retry gets its own deadline.
func (f *LLMClientFactory) Wrap(raw llm.LLMClient) llm.LLMClient {
	retryCfg := retry.FromConfig(f.config.Retry)
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig
	}
	policy := retry.NewPolicy(retryCfg, nil)

	return llm.Chain(raw,
		metrics.Middleware(f.recorder, nil, f.logger),
		retry.Middleware(policy, f.logger),
		timeout.Middleware(f.config.RequestTimeout),
		validation.EmptyResponseMiddleware(f.logger),
	)
}
