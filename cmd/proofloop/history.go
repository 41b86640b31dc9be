package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"proofloop/pkg/config"
	"proofloop/pkg/persistence"
	"proofloop/pkg/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runHistory(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", persistence.DefaultListLimit, "Maximum number of runs to list")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the report of an archived run (an id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShow(cmd.Context(), args[0], jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}

// openArchive opens the configured run archive for reading.
func (a *app) openArchive() (*persistence.Store, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.Storage.DBPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.projectDir, config.ProjectConfigDir, path)
	}
	store, err := persistence.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive: %w", err)
	}
	return store, nil
}

func (a *app) runHistory(ctx context.Context, limit int) error {
	store, err := a.openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No runs archived yet.")
		return nil
	}

	header := lipgloss.NewStyle().Bold(true)
	if !a.interactive {
		header = lipgloss.NewStyle()
	}
	fmt.Fprintln(a.out, header.Render(fmt.Sprintf("%-8s  %-19s  %-16s  %4s  %-24s  %s",
		"ID", "STARTED", "STATUS", "ITER", "MODEL", "PROBLEM")))
	for _, r := range runs {
		status := string(report.StatusFor(r.Reason))
		fmt.Fprintf(a.out, "%-8s  %-19s  %-16s  %4d  %-24s  %s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format(time.DateTime),
			status,
			r.Iterations,
			truncate(r.Model, 24),
			truncate(firstLine(r.Problem), 50),
		)
	}
	return nil
}

func (a *app) runShow(ctx context.Context, id string, jsonOutput bool) error {
	store, err := a.openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	run, steps, err := store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrAmbiguousRunID) {
			return fmt.Errorf("%w: use more characters of %q", err, id)
		}
		return err
	}

	rep := report.FromArchive(run, steps)
	if jsonOutput {
		return report.WriteJSON(a.out, rep)
	}
	return report.Render(a.out, rep, report.Options{Color: a.interactive, Markdown: true, ShowSteps: true})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
