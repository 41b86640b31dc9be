package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"proofloop/pkg/version"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoSetup: "true"},
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(a.out, version.String())
		},
	}
}
