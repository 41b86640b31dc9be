package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	defer SetConfigForTesting(nil)

	if err := LoadConfig(dir); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cfg, err := GetConfig()
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Pipeline.MaxIterations != DefaultMaxIterations {
		t.Errorf("MaxIterations = %d, want %d", cfg.Pipeline.MaxIterations, DefaultMaxIterations)
	}
	if cfg.Pipeline.RecursionLimit != DefaultRecursionLimit {
		t.Errorf("RecursionLimit = %d, want %d", cfg.Pipeline.RecursionLimit, DefaultRecursionLimit)
	}
	if cfg.Oracle.Provider != ProviderGoogle || cfg.Oracle.Model != DefaultModel {
		t.Errorf("unexpected default oracle %s/%s", cfg.Oracle.Provider, cfg.Oracle.Model)
	}
	if cfg.Oracle.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", cfg.Oracle.Temperature, DefaultTemperature)
	}

	if _, err := os.Stat(filepath.Join(dir, ProjectConfigDir, ProjectConfigFilename)); err != nil {
		t.Errorf("expected config file on disk: %v", err)
	}
}

func TestLoadConfigAppliesDefaultsToPartialFile(t *testing.T) {
	dir := t.TempDir()
	defer SetConfigForTesting(nil)

	path := filepath.Join(dir, ProjectConfigDir, ProjectConfigFilename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	partial := `{"oracle": {"model": "claude-sonnet-4-5"}, "pipeline": {"max_iterations": 5}}`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(dir); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg, _ := GetConfig()
	if cfg.Oracle.Provider != ProviderAnthropic {
		t.Errorf("provider not inferred, got %q", cfg.Oracle.Provider)
	}
	if cfg.Pipeline.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", cfg.Pipeline.MaxIterations)
	}
	if cfg.Pipeline.RecursionLimit != DefaultRecursionLimit {
		t.Errorf("RecursionLimit = %d, want default", cfg.Pipeline.RecursionLimit)
	}
	if cfg.Oracle.Retry.MaxAttempts != 3 || cfg.Oracle.Retry.InitialDelay != time.Second {
		t.Errorf("retry defaults not applied: %+v", cfg.Oracle.Retry)
	}
}

func TestLoadConfigRejectsUnparseableFile(t *testing.T) {
	dir := t.TempDir()
	defer SetConfigForTesting(nil)

	path := filepath.Join(dir, ProjectConfigDir, ProjectConfigFilename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(dir); err == nil {
		t.Fatal("expected parse error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Error("unparseable config must not be overwritten")
	}
}

func TestGetConfigBeforeLoad(t *testing.T) {
	SetConfigForTesting(nil)
	if _, err := GetConfig(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestUpdatePipelineValidatesAndPersists(t *testing.T) {
	dir := t.TempDir()
	defer SetConfigForTesting(nil)
	if err := LoadConfig(dir); err != nil {
		t.Fatal(err)
	}

	if err := UpdatePipeline(&PipelineConfig{MaxIterations: 0, RecursionLimit: 10}); err == nil {
		t.Error("expected validation error for zero iterations")
	}
	if err := UpdatePipeline(&PipelineConfig{MaxIterations: 4, RecursionLimit: 12, AutoApprove: true}); err != nil {
		t.Fatalf("UpdatePipeline: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ProjectConfigDir, ProjectConfigFilename))
	if err != nil {
		t.Fatal(err)
	}
	var onDisk Config
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk.Pipeline.MaxIterations != 4 || !onDisk.Pipeline.AutoApprove {
		t.Errorf("pipeline not persisted: %+v", onDisk.Pipeline)
	}
}

func TestUpdateOracleInfersProvider(t *testing.T) {
	dir := t.TempDir()
	defer SetConfigForTesting(nil)
	if err := LoadConfig(dir); err != nil {
		t.Fatal(err)
	}

	cfg, _ := GetConfig()
	oracle := cfg.Oracle
	oracle.Provider = ""
	oracle.Model = "llama3.1:8b"
	if err := UpdateOracle(&oracle); err != nil {
		t.Fatalf("UpdateOracle: %v", err)
	}
	cfg, _ = GetConfig()
	if cfg.Oracle.Provider != ProviderOllama {
		t.Errorf("Provider = %q, want ollama", cfg.Oracle.Provider)
	}
	if cfg.Oracle.OllamaHost == "" {
		t.Error("expected an Ollama host default")
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	defer SetConfigForTesting(nil)
	if err := LoadConfig(dir); err != nil {
		t.Fatal(err)
	}

	if got := ResolvePath("runs.db"); got != filepath.Join(dir, ProjectConfigDir, "runs.db") {
		t.Errorf("ResolvePath relative = %s", got)
	}
	if got := ResolvePath("/tmp/x.db"); got != "/tmp/x.db" {
		t.Errorf("ResolvePath absolute = %s", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	path, err := LoadDotEnv(dir)
	if err != nil || path != "" {
		t.Fatalf("missing .env should be ignored, got %q %v", path, err)
	}

	t.Setenv("PROOFLOOP_TEST_PRESET", "kept")
	content := "PROOFLOOP_TEST_DOTENV=loaded\nPROOFLOOP_TEST_PRESET=overridden\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PROOFLOOP_TEST_DOTENV") })

	if _, err := LoadDotEnv(dir); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("PROOFLOOP_TEST_DOTENV"); got != "loaded" {
		t.Errorf("PROOFLOOP_TEST_DOTENV = %q", got)
	}
	if got := os.Getenv("PROOFLOOP_TEST_PRESET"); got != "kept" {
		t.Errorf("existing env var overridden: %q", got)
	}
}
