package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/netbuilder/backends"
	"github.com/gomlx/netbuilder/internal/config"
	"github.com/gomlx/netbuilder/optest"
	"github.com/gomlx/netbuilder/optest/opdefs"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the expand_dims cases on the configured target and print a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCases(cmd.OutOrStdout(), cmd.ErrOrStderr(), activeCfg)
		},
	}
}

// selectCases returns the cases selected by the configuration, with the tolerance override applied.
func selectCases(cfg config.Config) ([]optest.CaseDef[opdefs.ExpandDimsParams], error) {
	var defs []optest.CaseDef[opdefs.ExpandDimsParams]
	for _, def := range opdefs.ExpandDimsCases {
		if len(cfg.Cases) > 0 && !slices.Contains(cfg.Cases, def.Name) {
			continue
		}
		if def.CheckGrads && !cfg.Grads {
			if len(cfg.Cases) > 0 {
				return nil, errors.Errorf("case %q checks gradients, it cannot be selected with --grads=false", def.Name)
			}
			continue
		}
		if tol := cfg.Tolerance(); tol != nil {
			def.Tolerance = tol
		}
		defs = append(defs, def)
	}
	for _, name := range cfg.Cases {
		if !slices.ContainsFunc(opdefs.ExpandDimsCases, func(def optest.CaseDef[opdefs.ExpandDimsParams]) bool {
			return def.Name == name
		}) {
			return nil, errors.Errorf("unknown case %q", name)
		}
	}
	return defs, nil
}

// runCases runs the selected cases and writes the report to w. It returns an error if any case failed.
// If cfg.Progress is set, a progress bar is drawn on progressW while the cases run.
//
// If the target is not available all cases are reported as skipped, and no error is returned.
func runCases(w, progressW io.Writer, cfg config.Config) error {
	target, err := cfg.ParseTarget()
	if err != nil {
		return err
	}
	defs, err := selectCases(cfg)
	if err != nil {
		return err
	}

	guard := optest.TargetGuard(target)
	reports := make([]optest.Report, 0, len(defs))
	if !guard.Met() {
		for _, def := range defs {
			reports = append(reports, optest.Report{Case: def.Name, Status: optest.StatusSkipped})
		}
		writeReport(w, target, cfg.Seed, reports)
		_, _ = fmt.Fprintf(w, "%s\n", skippedStyle.Render(guard.Reason()))
		return nil
	}

	h, err := optest.NewHarness(target, cfg.Seed)
	if err != nil {
		return err
	}
	bar := newProgressBar(progressW, len(defs), cfg.Progress)
	for _, def := range defs {
		bar.Describe(def.Name)
		reports = append(reports, optest.RunCase(h, opdefs.ExpandDims, def, optest.CaseRand(cfg.Seed, def.Name)))
		if err := bar.Add(1); err != nil {
			klog.Warningf("progress bar: %v", err)
		}
	}
	_ = bar.Finish()
	writeReport(w, target, cfg.Seed, reports)

	var failed int
	for _, report := range reports {
		if report.Status == optest.StatusFailed {
			failed++
			_, _ = fmt.Fprintf(w, "%s %v\n", failedStyle.Render("✗"), report.Err)
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d cases failed on %s", failed, len(reports), target)
	}
	return nil
}

// newProgressBar returns a bar counting cases. When not visible it draws nothing.
func newProgressBar(w io.Writer, numCases int, visible bool) *progressbar.ProgressBar {
	return progressbar.NewOptions(numCases,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("cases"),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
	)
}

var (
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	headerStyle  = lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#20A040"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D03030")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A020"))
	borderColor  = "#705090"
)

func statusString(status optest.Status) string {
	switch status {
	case optest.StatusPassed:
		return passedStyle.Render(status.String())
	case optest.StatusFailed:
		return failedStyle.Render(status.String())
	default:
		return skippedStyle.Render(status.String())
	}
}

func outcomeString(outcome *optest.Outcome) string {
	if outcome == nil {
		return "-"
	}
	return fmt.Sprintf("%.3g / %.3g", outcome.MaxAbs, outcome.MaxRel)
}

// writeReport writes a table with one row per case.
func writeReport(w io.Writer, target backends.Target, seed uint64, reports []optest.Report) {
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(borderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Case", "Status", "Stage", "Max abs/rel", "Grads max abs/rel", "Inputs", "Outputs", "Time")
	var passed int
	for _, report := range reports {
		if report.Status == optest.StatusPassed {
			passed++
		}
		stage := "-"
		if report.Status != optest.StatusSkipped {
			stage = report.Stage.String()
		}
		table.Row(
			report.Case,
			statusString(report.Status),
			stage,
			outcomeString(report.Outputs),
			outcomeString(report.Grads),
			humanize.Bytes(uint64(report.InputBytes)),
			humanize.Bytes(uint64(report.OutputBytes)),
			report.Elapsed.Round(time.Microsecond).String(),
		)
	}
	_, _ = fmt.Fprintf(w, "expand_dims on %s (seed %d): %d of %d cases passed\n", target, seed, passed, len(reports))
	_, _ = fmt.Fprintln(w, table.Render())
}
