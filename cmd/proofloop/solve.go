package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"proofloop/internal/kernel"
	"proofloop/pkg/config"
	"proofloop/pkg/pipeline"
	"proofloop/pkg/preflight"
	"proofloop/pkg/report"
	"proofloop/pkg/review"
	"proofloop/pkg/templates"
)

type solveFlags struct {
	problem     string
	problemFile string
	problemID   string
	provider    string
	model       string
	chooseModel bool
	autoApprove bool
	dryRun      bool
	jsonOutput  bool
	metricsAddr string
	traceFile   string
	noArchive   bool
}

func newSolveCmd(a *app) *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a problem: generate, refine, verify and correct until accepted",
		Long: `Solve runs the proof pipeline on one problem.

The problem comes from --problem, --problem-file, --problem-id, or an
interactive prompt. An empty answer at the prompt uses the default example
(IMO 2011 Problem 2, the windmill problem).

Exit status is 0 when the proof is accepted, 2 when the iteration budget is
exhausted, and 1 on failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSolve(cmd.Context(), f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.problem, "problem", "p", "", "Problem statement")
	fl.StringVar(&f.problemFile, "problem-file", "", "Read the problem statement from a file")
	fl.StringVar(&f.problemID, "problem-id", "", "Use a problem from the built-in catalogue ("+strings.Join(templates.ListProblemIDs(), ", ")+")")
	fl.StringVar(&f.provider, "provider", "", "LLM provider (google, anthropic, openai, ollama)")
	fl.StringVarP(&f.model, "model", "m", "", "Model name (overrides config)")
	fl.BoolVar(&f.chooseModel, "choose-model", false, "Pick the model interactively and remember the choice")
	fl.BoolVar(&f.autoApprove, "auto-approve", false, "Approve every critique without asking")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Use a scripted oracle instead of a model")
	fl.BoolVar(&f.jsonOutput, "json", false, "Print the final report as JSON")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	fl.StringVar(&f.traceFile, "trace-file", "", "Write OpenTelemetry spans to this file")
	fl.BoolVar(&f.noArchive, "no-archive", false, "Do not record the run in the archive")
	cmd.MarkFlagsMutuallyExclusive("problem", "problem-file", "problem-id")
	cmd.MarkFlagsMutuallyExclusive("model", "choose-model")

	return cmd
}

func (a *app) runSolve(ctx context.Context, f *solveFlags) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}
	if err := a.applyOracleFlags(&cfg.Oracle, f.provider, f.model, f.chooseModel); err != nil {
		return err
	}
	if f.autoApprove {
		cfg.Pipeline.AutoApprove = true
	}
	if f.metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = f.metricsAddr
	}
	if f.traceFile != "" {
		cfg.Telemetry.TraceFile = f.traceFile
	}

	problem, err := a.resolveProblem(f)
	if err != nil {
		return err
	}

	if !f.dryRun {
		if err := a.unlockSecrets(); err != nil {
			return err
		}
		if err := a.ensureAPIKey(&cfg.Oracle); err != nil {
			return err
		}
		if err := preflight.Validate(ctx, &cfg.Oracle); err != nil {
			return err
		}
	}

	opts := kernel.Options{
		ProjectDir: a.projectDir,
		DryRun:     f.dryRun,
		NoArchive:  f.noArchive,
	}
	if !f.jsonOutput {
		opts.Progress = a.errOut
	}
	if !cfg.Pipeline.AutoApprove && !a.interactive {
		opts.Reviewer = review.NewLineReviewer(a.in, a.errOut)
	}

	k, err := kernel.NewKernel(ctx, &cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := k.Stop(); err != nil {
			a.logger.Warn("⚠️ Shutdown: %v", err)
		}
	}()
	if err := k.Start(); err != nil {
		return err
	}

	if a.logPath != "" {
		fmt.Fprintf(a.errOut, "📝 Logging to %s\n", a.logPath)
	}
	fmt.Fprintf(a.errOut, "🚀 Solving with %s (budget %d iterations)\n", k.ModelName(), k.Orchestrator.Budget().MaxIterations)

	res, err := k.Solve(problem)
	if err != nil {
		return err
	}

	rep := report.Build(res, k.Provider(), k.ModelName())
	if f.jsonOutput {
		err = report.WriteJSON(a.out, rep)
	} else {
		err = report.Render(a.out, rep, report.Options{
			Color:     a.interactive,
			Markdown:  true,
			ShowSteps: true,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	switch res.Reason {
	case pipeline.ReasonAccepted:
		return nil
	case pipeline.ReasonBudgetExhausted:
		return &exitCodeError{code: exitExhausted}
	default:
		return &exitCodeError{code: exitError}
	}
}

// applyOracleFlags overrides the configured model for this run only. A
// choice made with --choose-model is saved to the config.
func (a *app) applyOracleFlags(o *config.OracleConfig, provider, model string, choose bool) error {
	if choose {
		chosen, err := a.chooseModel(o.Model)
		if err != nil {
			return err
		}
		model = chosen
	}

	if model != "" {
		o.Model = model
		if provider == "" {
			p, err := config.GetModelProvider(model)
			if err != nil {
				return err
			}
			provider = p
		}
	}
	if provider != "" {
		if _, err := config.APIKeyEnvVar(provider); err != nil {
			return err
		}
		o.Provider = provider
	}
	if o.Provider == config.ProviderOllama && o.OllamaHost == "" {
		host, _ := config.GetAPIKey(config.ProviderOllama)
		o.OllamaHost = host
	}

	if choose {
		if err := config.UpdateOracle(o); err != nil {
			return fmt.Errorf("failed to save model choice: %w", err)
		}
		fmt.Fprintf(a.errOut, "✅ Selected: %s\n", o.Model)
	}
	return nil
}

// chooseModel shows the known models in a select form.
func (a *app) chooseModel(current string) (string, error) {
	if !a.interactive {
		return "", fmt.Errorf("--choose-model needs an interactive terminal; use --model instead")
	}

	var options []huh.Option[string]
	for _, provider := range []string{config.ProviderGoogle, config.ProviderAnthropic, config.ProviderOpenAI} {
		for _, name := range config.ModelsForProvider(provider) {
			info, _ := config.GetModelInfo(name)
			options = append(options, huh.NewOption(fmt.Sprintf("%s (%s, %s)", name, provider, info.Description), name))
		}
	}

	choice := current
	sel := huh.NewSelect[string]().
		Title("Select the model to use").
		Description("Faster models answer sooner; stronger models reason better on hard proofs.").
		Options(options...).
		Value(&choice)
	if err := huh.NewForm(huh.NewGroup(sel)).Run(); err != nil {
		return "", fmt.Errorf("model selection cancelled: %w", err)
	}
	return choice, nil
}

// resolveProblem picks the problem from flags, or asks for it. An empty
// answer, or no terminal to ask on, selects the default example.
func (a *app) resolveProblem(f *solveFlags) (string, error) {
	switch {
	case f.problemFile != "":
		data, err := os.ReadFile(f.problemFile)
		if err != nil {
			return "", fmt.Errorf("failed to read problem file: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", fmt.Errorf("problem file %s is empty", f.problemFile)
		}
		return text, nil
	case strings.TrimSpace(f.problem) != "":
		return strings.TrimSpace(f.problem), nil
	case f.problemID != "":
		p, err := templates.LoadProblem(f.problemID)
		if err != nil {
			return "", err
		}
		return p.Statement, nil
	}

	answer := ""
	if a.interactive {
		fmt.Fprintln(a.errOut, "Please enter the mathematical problem you would like to solve.")
		fmt.Fprintln(a.errOut, "(Press Enter to use the default IMO windmill problem)")
		fmt.Fprintln(a.errOut, strings.Repeat("-", 40))
		line, err := a.readLine("> ")
		if err != nil {
			return "", fmt.Errorf("failed to read problem: %w", err)
		}
		fmt.Fprintln(a.errOut, strings.Repeat("-", 40))
		answer = strings.TrimSpace(line)
	}
	if answer != "" {
		return answer, nil
	}

	p, err := templates.DefaultProblem()
	if err != nil {
		return "", err
	}
	a.logger.Info("📝 No problem given, using the default example: %s", p.Title)
	return p.Statement, nil
}

// ensureAPIKey asks for a missing cloud API key on a terminal and keeps it in
// memory for this process.
func (a *app) ensureAPIKey(o *config.OracleConfig) error {
	if o.Provider == config.ProviderOllama {
		return nil
	}
	if _, err := config.GetAPIKey(o.Provider); err == nil {
		return nil
	}

	envVar, err := config.APIKeyEnvVar(o.Provider)
	if err != nil {
		return err
	}
	if !a.interactive {
		return fmt.Errorf("%w: set %s or run 'proofloop secrets set %s'", config.ErrMissingAPIKey, envVar, envVar)
	}

	fmt.Fprintf(a.errOut, "%s not found in the environment or secrets file.\n", envVar)
	key, err := a.readSecret(fmt.Sprintf("Please enter your %s: ", envVar))
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if key == "" {
		return fmt.Errorf("%w: no API key provided", config.ErrMissingAPIKey)
	}
	config.SetSecret(envVar, key)
	return nil
}
