package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/term"

	"proofloop/pkg/config"
	"proofloop/pkg/logx"
)

const (
	annotationNoSetup = "no-setup"

	// EnvPassword unlocks the encrypted secrets file without a prompt.
	EnvPassword = "PROOFLOOP_PASSWORD"
)

// app carries the process streams and global flags shared by every command.
type app struct {
	in          *bufio.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool

	projectDir string
	debug      bool
	logPath    string
	logger     *logx.Logger
}

func newApp() *app {
	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec // fd fits in int
	return &app{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		errOut:      os.Stderr,
		interactive: interactive,
		logger:      logx.NewLogger("cli"),
	}
}

// setup loads .env and the project config and opens the run log.
func (a *app) setup() error {
	logx.SetDebug(a.debug)

	envPath, err := config.LoadDotEnv(a.projectDir)
	if err != nil {
		return err
	}
	if envPath != "" {
		a.logger.Debug("Loaded environment from %s", envPath)
	}

	if err := config.LoadConfig(a.projectDir); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	if cfg.Logging.FileLogging {
		dir := cfg.Logging.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(a.projectDir, config.ProjectConfigDir, dir)
		}
		path, err := logx.InitializeLogFile(dir, cfg.Logging.Tee)
		if err != nil {
			return fmt.Errorf("failed to initialize log file: %w", err)
		}
		a.logPath = path
	}
	return nil
}

// unlockSecrets decrypts the project secrets file into memory when one exists.
func (a *app) unlockSecrets() error {
	if !config.SecretsFileExists(a.projectDir) {
		return nil
	}

	password := os.Getenv(EnvPassword)
	if password == "" {
		if !a.interactive {
			a.logger.Warn("⚠️ Secrets file present but %s is not set, using environment variables only", EnvPassword)
			return nil
		}
		var err error
		password, err = a.readSecret("Enter the password for this proofloop project: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	secrets, err := config.DecryptSecretsFile(a.projectDir, password)
	if err != nil {
		return fmt.Errorf("failed to unlock secrets: %w", err)
	}
	config.SetDecryptedSecrets(secrets)
	a.logger.Info("🔐 Loaded %d secrets from the encrypted secrets file", len(secrets))
	return nil
}

// readLine prints prompt and reads one line. io.EOF with no text is returned
// as io.EOF.
func (a *app) readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(a.errOut, prompt)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret reads a value without echo on a terminal and falls back to a
// plain line otherwise.
func (a *app) readSecret(prompt string) (string, error) {
	if !a.interactive {
		return a.readLine(prompt)
	}
	fmt.Fprint(a.errOut, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
	fmt.Fprintln(a.errOut)
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(string(b))
	for i := range b {
		b[i] = 0
	}
	return value, nil
}

// syncWriter serializes writes. Transition progress is printed from the
// kernel's worker goroutine while the reviewer writes to the same stream.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func lockWriter(w io.Writer) io.Writer {
	if _, ok := w.(*syncWriter); ok {
		return w
	}
	return &syncWriter{w: w}
}
