package preflight

import (
	"fmt"
	"strings"
)

// FormatCheckError formats a failed check result with actionable guidance.
func FormatCheckError(check CheckResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s: %s\n", check.Provider, check.Message))
	sb.WriteString(fmt.Sprintf("    %s\n", getGuidance(check.Provider)))
	return sb.String()
}

// FormatResults formats all preflight results for display.
func FormatResults(results *Results) string {
	var sb strings.Builder
	if results.Passed {
		sb.WriteString("Preflight checks passed\n")
	} else {
		sb.WriteString("Preflight checks failed\n")
	}
	for i := range results.Checks {
		c := results.Checks[i]
		if c.Passed {
			sb.WriteString(fmt.Sprintf("  [PASS] %s: %s\n", c.Provider, c.Message))
		} else {
			sb.WriteString(FormatCheckError(c))
		}
	}
	return sb.String()
}

// getGuidance returns actionable guidance for fixing a failed check.
func getGuidance(provider Provider) string {
	switch provider {
	case ProviderOpenAI:
		return "Set OPENAI_API_KEY or run 'proofloop secrets set OPENAI_API_KEY': https://platform.openai.com/api-keys"
	case ProviderAnthropic:
		return "Set ANTHROPIC_API_KEY or run 'proofloop secrets set ANTHROPIC_API_KEY': https://console.anthropic.com/"
	case ProviderGoogle:
		return "Set GOOGLE_API_KEY or run 'proofloop secrets set GOOGLE_API_KEY': https://aistudio.google.com/app/apikey"
	case ProviderOllama:
		return "Install and start Ollama, then pull the configured model:\n" +
			"    ollama serve\n" +
			"    ollama pull <model>"
	default:
		return "Check the provider documentation for setup instructions."
	}
}

// FormatPingFailure lists what to try when the connection test fails.
func FormatPingFailure(provider Provider, model string, err error) string {
	var sb strings.Builder
	sb.WriteString("❌ API connection failed!\n")
	sb.WriteString(fmt.Sprintf("🚨 Error: %v\n", err))
	sb.WriteString("💡 Suggestions:\n")
	if provider != ProviderOllama {
		sb.WriteString(fmt.Sprintf("   • Check your %s API key is valid\n", provider))
	}
	sb.WriteString(fmt.Sprintf("   • Verify the model '%s' is available to you\n", model))
	sb.WriteString("   • Try another model with --model or --choose-model\n")
	sb.WriteString("   • Check your internet connection\n")
	return sb.String()
}
