// Command proofloop drafts a proof with a language model, has the model
// verify it, and loops through human-approved corrections until the proof is
// accepted or the iteration budget runs out.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"proofloop/pkg/config"
	"proofloop/pkg/logx"
)

// Exit codes.
const (
	exitOK        = 0
	exitError     = 1
	exitExhausted = 2
)

// exitCodeError carries a specific process exit code. A nil err means the
// command already reported what went wrong.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newApp(), os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the command line and maps errors to an exit code.
// This allows defers to run before os.Exit is called.
func execute(ctx context.Context, a *app, args []string) int {
	a.errOut = lockWriter(a.errOut)
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err := root.ExecuteContext(ctx)

	if closeErr := logx.CloseLogFile(); closeErr != nil {
		fmt.Fprintf(a.errOut, "Warning: failed to close log file: %v\n", closeErr)
	}

	if err == nil {
		return exitOK
	}
	var ece *exitCodeError
	if errors.As(err, &ece) {
		if ece.err != nil {
			fmt.Fprintf(a.errOut, "Error: %v\n", ece.err)
		}
		return ece.code
	}
	fmt.Fprintf(a.errOut, "Error: %v\n", err)
	return exitError
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "proofloop",
		Short:         "Iterative generate, verify and correct loop for mathematical proofs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationNoSetup] == "true" {
				return nil
			}
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.projectDir, "projectdir", ".", "Project directory holding "+config.ProjectConfigDir+"/")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newSolveCmd(a),
		newHistoryCmd(a),
		newShowCmd(a),
		newPingCmd(a),
		newSecretsCmd(a),
		newVersionCmd(a),
	)
	return root
}
