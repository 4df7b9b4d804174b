package main

import (
	"fmt"
	"io"

	"github.com/gomlx/netbuilder/backends"
	"github.com/gomlx/netbuilder/backends/xla"
	"github.com/spf13/cobra"
)

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the targets and whether they are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			writeTargets(cmd.OutOrStdout())
			return nil
		},
	}
}

func writeTargets(w io.Writer) {
	for _, platform := range backends.Platforms() {
		target := backends.Target{Platform: platform}
		status := skippedStyle.Render("not available")
		if backends.Probe(target) {
			status = passedStyle.Render("available")
		}
		_, _ = fmt.Fprintf(w, "%-6s %s\n", platform, status)
	}
	_, _ = fmt.Fprintf(w, "PJRT plugins found: %q\n", xla.AvailablePlugins())
}
