// Package preflight validates, before a run starts, that the configured
// oracle provider has what it needs: an API key for cloud providers, or a
// reachable server with the model pulled for Ollama.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"proofloop/pkg/config"
)

// Provider represents a service provider that may need validation.
type Provider string

// Provider constants for supported service providers.
const (
	ProviderOpenAI    Provider = config.ProviderOpenAI
	ProviderAnthropic Provider = config.ProviderAnthropic
	ProviderGoogle    Provider = config.ProviderGoogle
	ProviderOllama    Provider = config.ProviderOllama
)

// CheckResult represents the outcome of a single preflight check.
type CheckResult struct {
	Error    error
	Message  string
	Provider Provider
	Passed   bool
}

// Results contains all preflight check results.
type Results struct {
	Summary string
	Checks  []CheckResult
	Passed  bool
}

// RequiredProvider determines which provider the configured model needs.
func RequiredProvider(cfg *config.OracleConfig) (Provider, error) {
	if cfg.Provider != "" {
		return Provider(cfg.Provider), nil
	}
	p, err := config.GetModelProvider(cfg.Model)
	if err != nil {
		return "", fmt.Errorf("cannot determine provider: %w", err)
	}
	return Provider(p), nil
}

// Run executes the preflight checks for the configured oracle.
func Run(ctx context.Context, cfg *config.OracleConfig) (*Results, error) {
	provider, err := RequiredProvider(cfg)
	if err != nil {
		return nil, err
	}

	result := runCheck(ctx, provider, cfg)
	results := &Results{Checks: []CheckResult{result}, Passed: result.Passed}
	if results.Passed {
		results.Summary = fmt.Sprintf("All %d preflight checks passed", len(results.Checks))
	} else {
		results.Summary = fmt.Sprintf("1 of %d preflight checks failed", len(results.Checks))
	}
	return results, nil
}

// runCheck executes a single provider check.
func runCheck(ctx context.Context, provider Provider, cfg *config.OracleConfig) CheckResult {
	switch provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		return checkAPIKey(provider)
	case ProviderOllama:
		return checkOllama(ctx, cfg)
	default:
		return CheckResult{
			Provider: provider,
			Passed:   false,
			Message:  "Unknown provider",
			Error:    fmt.Errorf("unknown provider: %s", provider),
		}
	}
}

// Validate runs preflight checks and returns an error if any fail.
func Validate(ctx context.Context, cfg *config.OracleConfig) error {
	results, err := Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("preflight check error: %w", err)
	}

	if !results.Passed {
		var failed []string
		var causes []error
		for i := range results.Checks {
			if !results.Checks[i].Passed {
				failed = append(failed, FormatCheckError(results.Checks[i]))
				causes = append(causes, results.Checks[i].Error)
			}
		}
		return fmt.Errorf("%s\n%w", strings.Join(failed, "\n"), errors.Join(causes...))
	}
	return nil
}
