package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"proofloop/pkg/logx"
)

// TerminalReviewer asks a person at the terminal. With a TTY it shows a huh
// confirm form; otherwise it reads y/n lines from in.
type TerminalReviewer struct {
	in          io.Reader
	scanner     *bufio.Scanner
	out         io.Writer
	interactive bool
	logger      *logx.Logger
}

// NewTerminalReviewer reviews on stdin/stdout.
func NewTerminalReviewer() *TerminalReviewer {
	return &TerminalReviewer{
		in:          os.Stdin,
		out:         os.Stdout,
		interactive: term.IsTerminal(int(os.Stdin.Fd())), //nolint:gosec // fd fits in int
		logger:      logx.NewLogger("reviewer"),
	}
}

// NewLineReviewer reads decisions line by line from in.
func NewLineReviewer(in io.Reader, out io.Writer) *TerminalReviewer {
	return &TerminalReviewer{in: in, out: out, logger: logx.NewLogger("reviewer")}
}

func (t *TerminalReviewer) RequestApproval(ctx context.Context, r Review) (Decision, error) {
	t.printReview(r)

	var (
		decision Decision
		err      error
	)
	if t.interactive {
		decision, err = t.askForm(ctx)
	} else {
		decision, err = t.askLines()
	}
	if err != nil {
		return "", err
	}

	if decision == Approved {
		fmt.Fprintln(t.out, "✅ Critique approved, continuing with correction")
	} else {
		fmt.Fprintln(t.out, "❌ Critique rejected, stopping the run")
	}
	t.logger.Info("👤 Review decision for iteration %d: %s", r.Iteration, decision)
	return decision, nil
}

func (t *TerminalReviewer) printReview(r Review) {
	fmt.Fprintln(t.out)
	fmt.Fprintf(t.out, "👤 HUMAN REVIEW (iteration %d)\n", r.Iteration)
	fmt.Fprintf(t.out, "📊 Verdict: %s\n", r.Verdict)
	fmt.Fprintln(t.out, "🔍 Critique:")
	n := 0
	for _, line := range strings.Split(r.Critique, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			n++
			fmt.Fprintf(t.out, "   %d. %s\n", n, line)
		}
	}
}

func (t *TerminalReviewer) askForm(ctx context.Context) (Decision, error) {
	approve := true
	confirm := huh.NewConfirm().
		Title("Do you agree with the verifier's assessment?").
		Description("Approve to send the critique to the corrector, reject to stop the run.").
		WithButtonAlignment(lipgloss.Left).
		Affirmative("Approve").
		Negative("Reject").
		Value(&approve)

	if err := huh.NewForm(huh.NewGroup(confirm)).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return Rejected, nil
		}
		return "", fmt.Errorf("review form failed: %w", err)
	}
	if approve {
		return Approved, nil
	}
	return Rejected, nil
}

// askLines accepts only y/yes or n/no, re-prompting on anything else.
func (t *TerminalReviewer) askLines() (Decision, error) {
	if t.scanner == nil {
		t.scanner = bufio.NewScanner(t.in)
	}
	scanner := t.scanner
	for {
		fmt.Fprint(t.out, "👤 Approve the critique and run a correction? (y/n): ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("failed to read decision: %w", err)
			}
			return "", ErrNoDecision
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return Approved, nil
		case "n", "no":
			return Rejected, nil
		default:
			fmt.Fprintln(t.out, "Please answer y or n.")
		}
	}
}
