// Package kernel wires the shared infrastructure behind a proofloop run:
// LLM client, oracle, reviewer, metrics, tracing and the run archive.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"proofloop/pkg/agent"
	"proofloop/pkg/agent/llm"
	llmmetrics "proofloop/pkg/agent/middleware/metrics"
	"proofloop/pkg/config"
	"proofloop/pkg/logx"
	"proofloop/pkg/metrics"
	"proofloop/pkg/oracle"
	"proofloop/pkg/persistence"
	"proofloop/pkg/pipeline"
	"proofloop/pkg/review"
	"proofloop/pkg/tracing"
	"proofloop/pkg/version"
)

const (
	transitionBuffer   = 64
	defaultStopTimeout = 5 * time.Second
)

// Options selects how the kernel builds its collaborators. Zero values take
// the configured defaults.
type Options struct {
	ProjectDir string

	// DryRun replaces the LLM oracle with a scripted one. No API key is needed.
	DryRun bool
	// NoArchive skips the run archive even when storage is enabled.
	NoArchive bool

	// Progress receives one line per pipeline transition. Nil disables it.
	Progress io.Writer

	// Overrides, mostly for tests.
	Client   llm.LLMClient
	Oracle   oracle.Oracle
	Reviewer review.Reviewer
}

// Kernel owns the collaborators of a run and their lifecycle.
type Kernel struct {
	ctx    context.Context //nolint:containedctx // Required for kernel lifecycle management
	cancel context.CancelFunc

	Config *config.Config
	Logger *logx.Logger

	Registry     *prometheus.Registry
	Usage        *llmmetrics.UsageTracker
	Client       llm.LLMClient
	Oracle       oracle.Oracle
	Reviewer     review.Reviewer
	Archive      *persistence.Store
	Orchestrator *pipeline.Orchestrator

	Transitions     chan *pipeline.Transition
	transitionsDone chan struct{}

	metricsServer *metrics.Server
	traceShutdown tracing.Shutdown

	inflight    sync.WaitGroup
	idle        chan struct{} // closed once no Solve is in flight after Stop
	stopTimeout time.Duration
	opts        Options
	running     bool
}

// NewKernel builds every collaborator but starts nothing.
func NewKernel(parent context.Context, cfg *config.Config, opts Options) (*Kernel, error) {
	ctx, cancel := context.WithCancel(parent)

	k := &Kernel{
		ctx:      ctx,
		cancel:   cancel,
		Config:   cfg,
		Logger:   logx.NewLogger("kernel"),
		Registry: prometheus.NewRegistry(),
		Usage:    llmmetrics.NewUsageTracker(),
		opts:     opts,

		stopTimeout: defaultStopTimeout,
	}

	if err := k.initializeServices(); err != nil {
		cancel()
		if k.Archive != nil {
			_ = k.Archive.Close()
		}
		return nil, fmt.Errorf("failed to initialize kernel services: %w", err)
	}
	return k, nil
}

func (k *Kernel) initializeServices() error {
	k.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	llmRecorder := llmmetrics.Multi(llmmetrics.NewPrometheusRecorder(k.Registry), k.Usage)

	if err := k.initializeOracle(llmRecorder); err != nil {
		return err
	}
	k.initializeReviewer()

	if err := k.initializeArchive(); err != nil {
		return err
	}

	k.Transitions = make(chan *pipeline.Transition, transitionBuffer)
	k.Orchestrator = pipeline.NewOrchestrator(k.Oracle, k.Reviewer,
		pipeline.WithMaxIterations(k.Config.Pipeline.MaxIterations),
		pipeline.WithRecursionLimit(k.Config.Pipeline.RecursionLimit),
		pipeline.WithRecorder(metrics.NewPipelineRecorder(k.Registry)),
		pipeline.WithNotifications(k.Transitions),
	)

	k.Logger.Info("Kernel services initialized (model: %s)", k.ModelName())
	return nil
}

func (k *Kernel) initializeOracle(recorder llmmetrics.Recorder) error {
	switch {
	case k.opts.Oracle != nil:
		k.Oracle = k.opts.Oracle
		return nil
	case k.opts.DryRun:
		k.Logger.Info("🧪 Dry run: using the scripted oracle, no model will be called")
		k.Oracle = oracle.NewDryRun()
		return nil
	}

	client := k.opts.Client
	if client == nil {
		var err error
		client, err = agent.NewLLMClient(k.Config.Oracle, recorder, logx.NewLogger("llm"))
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
	}
	k.Client = client

	o, err := oracle.NewLLMOracle(client, oracle.Options{
		Temperature: k.Config.Oracle.Temperature,
		MaxTokens:   k.Config.Oracle.MaxOutputTokens,
	}, logx.NewLogger("oracle"))
	if err != nil {
		return fmt.Errorf("failed to create oracle: %w", err)
	}
	k.Oracle = o
	return nil
}

func (k *Kernel) initializeReviewer() {
	switch {
	case k.opts.Reviewer != nil:
		k.Reviewer = k.opts.Reviewer
	case k.Config.Pipeline.AutoApprove:
		k.Logger.Info("Auto-approve enabled: every critique goes to correction")
		k.Reviewer = review.AutoReviewer{Decision: review.Approved}
	default:
		k.Reviewer = review.NewTerminalReviewer()
	}
}

func (k *Kernel) initializeArchive() error {
	if !k.Config.Storage.Enabled || k.opts.NoArchive {
		k.Logger.Debug("Run archive disabled")
		return nil
	}
	store, err := persistence.Open(k.archivePath())
	if err != nil {
		return fmt.Errorf("failed to open run archive: %w", err)
	}
	k.Archive = store
	return nil
}

func (k *Kernel) archivePath() string {
	p := k.Config.Storage.DBPath
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(k.opts.ProjectDir, config.ProjectConfigDir, p)
}

// ModelName reports the model behind the oracle, or "dry-run".
func (k *Kernel) ModelName() string {
	if k.Client != nil {
		return k.Client.GetModelName()
	}
	if k.opts.DryRun || k.opts.Oracle != nil {
		return "dry-run"
	}
	return k.Config.Oracle.Model
}

// Provider reports the configured provider, or "dry-run".
func (k *Kernel) Provider() string {
	if k.Client == nil {
		return "dry-run"
	}
	return k.Config.Oracle.Provider
}

// Start brings up tracing, the metrics endpoint and the transition worker.
func (k *Kernel) Start() error {
	if k.running {
		return fmt.Errorf("kernel already running")
	}

	if file := k.Config.Telemetry.TraceFile; file != "" {
		shutdown, err := tracing.Init("proofloop", version.Version, file)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		k.traceShutdown = shutdown
		k.Logger.Info("Tracing spans to %s", file)
	}

	if addr := k.Config.Telemetry.MetricsAddr; addr != "" {
		srv, err := metrics.Start(addr, k.Registry)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		k.metricsServer = srv
	}

	k.startTransitionWorker()

	k.running = true
	return nil
}

// startTransitionWorker drains the orchestrator's notification channel until
// Stop closes it.
func (k *Kernel) startTransitionWorker() {
	k.transitionsDone = make(chan struct{})
	ch := k.Transitions

	go func() {
		defer close(k.transitionsDone)
		for t := range ch {
			if t == nil {
				continue
			}
			k.Logger.Debug("transition %s → %s (run %s, iteration %d)", t.From, t.To, t.RunID, t.Iteration)
			if k.opts.Progress != nil {
				writeProgress(k.opts.Progress, t)
			}
		}
	}()
}

func writeProgress(w io.Writer, t *pipeline.Transition) {
	if t.To == pipeline.StateTerminated {
		fmt.Fprintf(w, "🏁 %s finished: %s\n", t.From, t.Reason)
		return
	}
	fmt.Fprintf(w, "▶️  %s (iteration %d)\n", t.To, t.Iteration)
}

// Solve runs the pipeline on problem and archives the result. Archive errors
// are logged, never returned: the result is still valid.
func (k *Kernel) Solve(problem string) (*pipeline.Result, error) {
	if !k.running {
		return nil, fmt.Errorf("kernel not started")
	}
	k.inflight.Add(1)
	defer k.inflight.Done()

	res, err := k.Orchestrator.Run(k.ctx, problem)
	if err != nil {
		return nil, err
	}

	if k.Archive != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(k.ctx), 10*time.Second)
		defer cancel()
		if err := k.Archive.SaveRun(saveCtx, res, k.Provider(), k.ModelName()); err != nil {
			k.Logger.Warn("⚠️ Failed to archive run %s: %v", res.RunID, err)
		} else {
			k.Logger.Info("📦 Archived run %s", res.RunID)
		}
	}

	usage := k.Usage.Total()
	if usage.Requests > 0 {
		k.Logger.Info("LLM usage: %d requests, %d tokens, $%.4f",
			usage.Requests, usage.TotalTokens(), usage.CostUSD)
	}
	return res, nil
}

// Stop shuts everything down in reverse order. Safe to call more than once.
func (k *Kernel) Stop() error {
	k.cancel()

	var errs []error
	if k.running {
		k.Logger.Info("Stopping kernel services...")

		// A step blocked on the reviewer ignores cancellation; only close the
		// channel once no run can still send on it.
		idle := make(chan struct{})
		k.idle = idle
		go func() {
			k.inflight.Wait()
			close(idle)
		}()
		select {
		case <-idle:
			close(k.Transitions)
			<-k.transitionsDone
		case <-time.After(k.stopTimeout):
			k.Logger.Warn("Run still in flight, leaving transition channel open")
		}
		k.running = false
	}

	// Start may have failed halfway, so these are checked independently of running.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if k.metricsServer != nil {
		if err := k.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
		k.metricsServer = nil
	}
	if k.traceShutdown != nil {
		if err := k.traceShutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
		k.traceShutdown = nil
	}

	// The in-flight Solve still has to save its run.
	switch {
	case k.Archive == nil:
	case k.runInFlight():
		k.Logger.Warn("Run still in flight, leaving run archive open")
	default:
		if err := k.Archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("run archive: %w", err))
		}
		k.Archive = nil
	}

	if err := errors.Join(errs...); err != nil {
		k.Logger.Error("Error stopping kernel: %v", err)
		return err
	}
	k.Logger.Info("Kernel services stopped")
	return nil
}

// runInFlight reports whether a Solve outlived the last Stop.
func (k *Kernel) runInFlight() bool {
	if k.idle == nil {
		return false
	}
	select {
	case <-k.idle:
		return false
	default:
		return true
	}
}
