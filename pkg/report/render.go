package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Options controls terminal rendering.
type Options struct {
	Color     bool // ANSI styling and styled markdown
	Markdown  bool // render the artifact through glamour
	Width     int  // wrap width, 0 means 100
	ShowSteps bool
}

const defaultWidth = 100

//nolint:gochecknoglobals // shared styles
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	headingStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	acceptedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	warnStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB86C"))
	failedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
)

type painter struct {
	color bool
}

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func statusStyle(s Status) lipgloss.Style {
	switch s {
	case StatusAccepted:
		return acceptedStyle
	case StatusExhausted:
		return warnStyle
	default:
		return failedStyle
	}
}

// Render writes the human-readable report.
func Render(w io.Writer, r Report, opts Options) error {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	p := painter{color: opts.Color}
	var b strings.Builder

	rule := strings.Repeat("=", min(opts.Width, 60))
	fmt.Fprintf(&b, "%s\n%s\n%s\n\n", rule, p.paint(titleStyle, "FINAL RESULTS"), rule)

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s %s\n", p.paint(labelStyle, label+":"), value)
		}
	}
	field("Run", r.RunID)
	field("Status", p.paint(statusStyle(r.Status), string(r.Status)))
	if r.Provider != "" || r.Model != "" {
		field("Model", strings.TrimPrefix(r.Provider+"/"+r.Model, "/"))
	}
	field("Iterations", fmt.Sprintf("%d", r.Iterations))
	field("Duration", r.Duration.Round(time.Second).String())
	field("Final Verdict", r.Verdict)

	if r.Failure != nil {
		fmt.Fprintf(&b, "\n%s %s (%s at %s)\n",
			p.paint(failedStyle, "❌ Failure:"), r.Failure.Reason, r.Failure.Kind, r.Failure.Step)
		if r.Failure.Detail != "" {
			b.WriteString(p.paint(detailStyle, "Details: "+r.Failure.Detail) + "\n")
		}
	}

	if r.Critique != "" {
		fmt.Fprintf(&b, "\n%s\n%s\n", p.paint(headingStyle, "Critique"), r.Critique)
	}

	if opts.ShowSteps && len(r.Steps) > 0 {
		fmt.Fprintf(&b, "\n%s\n", p.paint(headingStyle, "Steps"))
		for _, s := range r.Steps {
			line := fmt.Sprintf("%3d  %-10s  %-7s  %8s", s.Seq, s.Step, s.Outcome, s.Duration.Round(time.Millisecond))
			if s.Detail != "" {
				line += "  " + p.paint(detailStyle, s.Detail)
			}
			b.WriteString(line + "\n")
		}
	}

	fmt.Fprintf(&b, "\n%s\n", p.paint(headingStyle, "Final Solution"))
	if r.Artifact == "" {
		b.WriteString(p.paint(detailStyle, "(no solution was produced)") + "\n")
	} else {
		b.WriteString(renderArtifact(r.Artifact, opts))
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// renderArtifact formats the markdown artifact, falling back to the raw text
// when markdown rendering is off or fails.
func renderArtifact(md string, opts Options) string {
	plain := strings.TrimRight(md, "\n") + "\n"
	if !opts.Markdown {
		return plain
	}
	style := "notty"
	if opts.Color {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(opts.Width),
	)
	if err != nil {
		return plain
	}
	out, err := renderer.Render(md)
	if err != nil {
		return plain
	}
	return out
}
