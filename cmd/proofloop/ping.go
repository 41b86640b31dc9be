package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"proofloop/pkg/agent"
	"proofloop/pkg/agent/llm"
	"proofloop/pkg/config"
	"proofloop/pkg/logx"
	"proofloop/pkg/preflight"
)

func newPingCmd(a *app) *cobra.Command {
	var provider, model string
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Test the connection to the configured model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPing(cmd.Context(), provider, model, nil)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (google, anthropic, openai, ollama)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name (overrides config)")
	return cmd
}

// runPing checks credentials, then sends one request. A nil client is built
// from the config.
func (a *app) runPing(ctx context.Context, provider, model string, client llm.LLMClient) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}
	if err := a.applyOracleFlags(&cfg.Oracle, provider, model, false); err != nil {
		return err
	}

	if client == nil {
		if err := a.unlockSecrets(); err != nil {
			return err
		}
		if err := a.ensureAPIKey(&cfg.Oracle); err != nil {
			return err
		}
		if err := preflight.Validate(ctx, &cfg.Oracle); err != nil {
			return err
		}
		client, err = agent.NewLLMClient(cfg.Oracle, nil, logx.NewLogger("llm"))
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(a.out, "🔄 Initializing %s...\n", cfg.Oracle.Model)
	fmt.Fprintln(a.out, "🧪 Testing API connection...")
	res, err := preflight.Ping(ctx, client)
	if err != nil {
		fmt.Fprint(a.errOut, preflight.FormatPingFailure(preflight.Provider(cfg.Oracle.Provider), cfg.Oracle.Model, err))
		return &exitCodeError{code: exitError}
	}

	fmt.Fprintln(a.out, "✅ API connection successful!")
	fmt.Fprintf(a.out, "📡 Model: %s\n", res.Model)
	fmt.Fprintf(a.out, "🔗 Latency: %s\n", res.Latency.Round(time.Millisecond))
	return nil
}
