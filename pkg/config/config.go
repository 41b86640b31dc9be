// Package config holds the project configuration stored in .proofloop/config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"proofloop/pkg/logx"
)

// Global config instance with mutex protection.
// projectDir is set once during LoadConfig.
//
//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config     *Config
	projectDir string
	logger     *logx.Logger
	mu         sync.RWMutex
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

const (
	ProjectConfigDir      = ".proofloop"
	ProjectConfigFilename = "config.json"
	DatabaseFilename      = "runs.db"
	LogsDirName           = "logs"
	SchemaVersion         = "1.0"

	// Iterative pipeline defaults.
	DefaultMaxIterations  = 3
	DefaultRecursionLimit = 10

	// Oracle defaults.
	DefaultTemperature     = 0.1
	DefaultMaxOutputTokens = 8192
	DefaultRequestTimeout  = 5 * time.Minute
	DefaultOllamaHost      = "http://localhost:11434"
)

// ErrNotInitialized is returned by accessors called before LoadConfig.
var ErrNotInitialized = errors.New("config not initialized - call LoadConfig first")

// RetryConfig defines configuration for retry behavior.
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts"`   // Maximum number of attempts (including initial)
	InitialDelay  time.Duration `json:"initial_delay"`  // Delay before first retry
	MaxDelay      time.Duration `json:"max_delay"`      // Upper bound between retries
	BackoffFactor float64       `json:"backoff_factor"` // Multiplier for exponential backoff
	Jitter        bool          `json:"jitter"`
}

// OracleConfig selects and tunes the language model behind every pipeline step.
type OracleConfig struct {
	Provider        string        `json:"provider,omitempty"` // Inferred from Model when empty
	Model           string        `json:"model"`
	Temperature     float32       `json:"temperature"`
	MaxOutputTokens int           `json:"max_output_tokens"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	Retry           RetryConfig   `json:"retry"`
	OllamaHost      string        `json:"ollama_host,omitempty"`
}

// PipelineConfig bounds the generate/verify/correct loop.
type PipelineConfig struct {
	MaxIterations  int  `json:"max_iterations"`
	RecursionLimit int  `json:"recursion_limit"`
	AutoApprove    bool `json:"auto_approve"` // Skip the interactive reviewer and approve every critique
}

// TelemetryConfig controls metrics exposition and trace export.
type TelemetryConfig struct {
	MetricsAddr string `json:"metrics_addr,omitempty"` // e.g. ":9464"; empty disables the endpoint
	TraceFile   string `json:"trace_file,omitempty"`   // Span export file; empty disables tracing
}

// StorageConfig controls the run archive.
type StorageConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"db_path,omitempty"` // Relative paths resolve against the config dir
}

// LoggingConfig controls per-run log files.
type LoggingConfig struct {
	FileLogging bool   `json:"file_logging"`
	Dir         string `json:"dir,omitempty"`
	Tee         bool   `json:"tee"`
}

// Config is the complete persisted configuration.
type Config struct {
	SchemaVersion string          `json:"schema_version"`
	Oracle        OracleConfig    `json:"oracle"`
	Pipeline      PipelineConfig  `json:"pipeline"`
	Telemetry     TelemetryConfig `json:"telemetry"`
	Storage       StorageConfig   `json:"storage"`
	Logging       LoggingConfig   `json:"logging"`
}

// GetConfig returns the current global config BY VALUE.
// All updates must go through Update* functions.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return Config{}, ErrNotInitialized
	}
	return *config, nil
}

// SetConfigForTesting sets the global config for tests. Pass nil to reset.
func SetConfigForTesting(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = cfg
	if cfg == nil {
		projectDir = ""
	}
}

// GetProjectDir returns the directory passed to LoadConfig.
func GetProjectDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return projectDir
}

// ConfigDir returns <projectDir>/.proofloop.
func ConfigDir() string {
	return filepath.Join(GetProjectDir(), ProjectConfigDir)
}

// LoadConfig loads <projectDir>/.proofloop/config.json into the global singleton.
//
// Missing file: a default config is created and saved.
// Existing file: loaded, defaults applied, validated and written back.
// Unparseable file: error, the file is left untouched.
func LoadConfig(inputProjectDir string) error {
	mu.Lock()
	defer mu.Unlock()

	projectDir = inputProjectDir
	configPath := filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFilename)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		getLogger().Info("📝 Config file not found, creating new config at %s", configPath)
		config = createDefaultConfig()
		if err := validateConfig(config); err != nil {
			return fmt.Errorf("default config validation failed: %w", err)
		}
		if err := saveConfigLocked(); err != nil {
			return fmt.Errorf("failed to save initial config: %w", err)
		}
		return nil
	}

	getLogger().Info("📝 Loading config from %s", configPath)
	loaded, err := loadConfigFromFile(configPath)
	if err != nil {
		return fmt.Errorf("fatal: config file exists but cannot be parsed (to avoid overwriting your changes): %w", err)
	}

	applyDefaults(loaded)
	if err := validateConfig(loaded); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config = loaded

	if err := saveConfigLocked(); err != nil {
		return fmt.Errorf("failed to save config with applied defaults: %w", err)
	}
	getLogger().Info("✅ Config loaded and validated successfully")
	return nil
}

// UpdateOracle replaces the oracle section and persists it.
func UpdateOracle(oracle *OracleConfig) error {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		return ErrNotInitialized
	}

	updated := *config
	updated.Oracle = *oracle
	applyDefaults(&updated)
	if err := validateConfig(&updated); err != nil {
		return fmt.Errorf("invalid oracle config: %w", err)
	}
	config = &updated
	return saveConfigLocked()
}

// UpdatePipeline replaces the pipeline section and persists it.
func UpdatePipeline(pipeline *PipelineConfig) error {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		return ErrNotInitialized
	}

	updated := *config
	updated.Pipeline = *pipeline
	if err := validateConfig(&updated); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	config = &updated
	return saveConfigLocked()
}

func loadConfigFromFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON %s: %w", configPath, err)
	}
	return &cfg, nil
}

// saveConfigLocked must be called with mu held.
func saveConfigLocked() error {
	if projectDir == "" {
		return ErrNotInitialized
	}

	configPath := filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFilename)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func defaultRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

func createDefaultConfig() *Config {
	return &Config{
		SchemaVersion: SchemaVersion,
		Oracle: OracleConfig{
			Provider:        ProviderGoogle,
			Model:           DefaultModel,
			Temperature:     DefaultTemperature,
			MaxOutputTokens: DefaultMaxOutputTokens,
			RequestTimeout:  DefaultRequestTimeout,
			Retry:           defaultRetry(),
		},
		Pipeline: PipelineConfig{
			MaxIterations:  DefaultMaxIterations,
			RecursionLimit: DefaultRecursionLimit,
		},
		Storage: StorageConfig{
			Enabled: true,
			DBPath:  DatabaseFilename,
		},
		Logging: LoggingConfig{
			Dir: LogsDirName,
			Tee: true,
		},
	}
}

// applyDefaults fills zero values left by older or hand-written config files.
func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}

	o := &cfg.Oracle
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Provider == "" {
		if p, err := GetModelProvider(o.Model); err == nil {
			o.Provider = p
		}
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxOutputTokens == 0 {
		o.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = defaultRetry()
	}
	if o.Provider == ProviderOllama && o.OllamaHost == "" {
		o.OllamaHost = os.Getenv(EnvOllamaHost)
		if o.OllamaHost == "" {
			o.OllamaHost = DefaultOllamaHost
		}
	}

	if cfg.Pipeline.MaxIterations == 0 {
		cfg.Pipeline.MaxIterations = DefaultMaxIterations
	}
	if cfg.Pipeline.RecursionLimit == 0 {
		cfg.Pipeline.RecursionLimit = DefaultRecursionLimit
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = DatabaseFilename
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = LogsDirName
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Oracle.Model == "" {
		return fmt.Errorf("oracle.model is required")
	}
	switch cfg.Oracle.Provider {
	case ProviderGoogle, ProviderAnthropic, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("oracle.provider %q is not supported", cfg.Oracle.Provider)
	}
	if cfg.Oracle.Temperature < 0 || cfg.Oracle.Temperature > 2 {
		return fmt.Errorf("oracle.temperature must be within [0, 2], got %v", cfg.Oracle.Temperature)
	}
	if cfg.Oracle.MaxOutputTokens <= 0 {
		return fmt.Errorf("oracle.max_output_tokens must be positive")
	}
	if cfg.Oracle.Retry.MaxAttempts < 1 {
		return fmt.Errorf("oracle.retry.max_attempts must be at least 1")
	}
	if cfg.Pipeline.MaxIterations < 1 {
		return fmt.Errorf("pipeline.max_iterations must be at least 1")
	}
	// Generate, Refine and one Verify must fit under the ceiling.
	if cfg.Pipeline.RecursionLimit < 3 {
		return fmt.Errorf("pipeline.recursion_limit must be at least 3, got %d", cfg.Pipeline.RecursionLimit)
	}
	return nil
}

// ResolvePath makes p absolute relative to the config directory.
func ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ConfigDir(), p)
}
