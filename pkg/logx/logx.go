// Package logx provides leveled component logging with domain-filtered debug output.
package logx

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// Logger writes lines of the form "[ts] [component] LEVEL: message".
type Logger struct {
	component string
	logger    *log.Logger
}

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // nil = all domains
}

type contextKey string

// ComponentKey is the context key used by Debug to label lines.
const ComponentKey contextKey = "component"

var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex

	// Shared by every Logger so a log file can be attached after loggers exist.
	output  = &switchWriter{w: os.Stderr}
	logFile *os.File
	fileMu  sync.Mutex
)

type switchWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func init() { //nolint:gochecknoinits // env-driven debug config
	initDebugFromEnv()
}

func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	// DEBUG_DOMAINS=pipeline,oracle
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = parseDomains(strings.Split(domains, ","))
	}
}

func parseDomains(domains []string) map[string]bool {
	if len(domains) == 0 {
		return nil
	}
	out := make(map[string]bool, len(domains))
	for _, d := range domains {
		if d = strings.TrimSpace(d); d != "" {
			out[d] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(output, "", 0),
	}
}

// NewLoggerWithWriter returns a logger bound to w instead of the shared output.
func NewLoggerWithWriter(component string, w io.Writer) *Logger {
	return &Logger{component: component, logger: log.New(w, "", 0)}
}

// SetDebug enables or disables debug output and optionally restricts it to domains.
func SetDebug(enabled bool, domains ...string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugConfig.Enabled = enabled
	debugConfig.Domains = parseDomains(domains)
}

func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain reports whether debug lines for domain are emitted.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

// InitializeLogFile opens a timestamped run log in dir. When tee is true lines
// are also written to stderr. It returns the path of the file.
func InitializeLogFile(dir string, tee bool) (string, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir %s: %w", dir, err)
	}
	name := fmt.Sprintf("proofloop-%s.log", time.Now().UTC().Format("20060102-150405.000"))
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file %s: %w", path, err)
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f

	if tee {
		output.set(io.MultiWriter(os.Stderr, f))
	} else {
		output.set(f)
	}
	return path, nil
}

// CloseLogFile detaches and closes the run log, restoring stderr output.
func CloseLogFile() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	output.set(os.Stderr)
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format(timestampFormat)
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.component, level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabled() {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// DebugState logs state transition information.
func (l *Logger) DebugState(action, state string, extra ...string) {
	l.Debug("State %s: %s%s", action, state, suffix(extra))
}

func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component, logger: l.logger}
}

// WithComponent stores a component label in ctx for the package-level Debug helpers.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ComponentKey, component)
}

// Debug logs a debug message filtered by domain.
//
//	DEBUG=1                            # all domains
//	DEBUG=1 DEBUG_DOMAINS=pipeline     # only pipeline
//	DEBUG=1 DEBUG_DOMAINS=oracle,llm   # several
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}
	component := "unknown"
	if ctx != nil {
		if c, ok := ctx.Value(ComponentKey).(string); ok && c != "" {
			component = c
		}
	}
	NewLogger(component).log(LevelDebug, "[%s] %s", domain, fmt.Sprintf(format, args...))
}

// DebugFlow logs workflow step information.
func DebugFlow(ctx context.Context, domain, step, status string, extra ...string) {
	Debug(ctx, domain, "Flow %s: %s%s", step, status, suffix(extra))
}

func suffix(extra []string) string {
	if len(extra) == 0 {
		return ""
	}
	return " - " + extra[0]
}

var defaultLogger = NewLogger("system")

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
//
//	err := logx.Errorf("setup failed: %w", err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
