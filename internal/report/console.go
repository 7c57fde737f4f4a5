// Package report renders run progress and the final summary for humans.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fpang/optimize-images/internal/cli"
	"github.com/fpang/optimize-images/internal/filehandler"
	"github.com/fpang/optimize-images/internal/pipeline"
	"github.com/fpang/optimize-images/internal/transcode"
)

const ruleWidth = 50

type styles struct {
	heading lipgloss.Style
	file    lipgloss.Style
	good    lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	muted   lipgloss.Style
	value   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		heading: r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		file:    r.NewStyle().Foreground(lipgloss.Color("14")),
		good:    r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("9")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		value:   r.NewStyle().Foreground(lipgloss.Color("14")),
	}
}

// Console is a pipeline.Observer printing progress lines and the summary
// block. Colour is enabled only when w is a terminal.
type Console struct {
	w       io.Writer
	verbose bool
	dryRun  bool
	st      styles
}

var _ pipeline.Observer = (*Console)(nil)

// NewConsole creates a Console writing to w. Per-task success and skip lines
// are printed only when verbose; errors are always printed.
func NewConsole(w io.Writer, verbose, dryRun bool) *Console {
	return &Console{
		w:       w,
		verbose: verbose,
		dryRun:  dryRun,
		st:      newStyles(lipgloss.NewRenderer(w)),
	}
}

func (c *Console) FileStarted(file filehandler.SourceFile, _ []transcode.Task) {
	fmt.Fprintln(c.w, c.st.file.Render("Processing: "+file.RelPath))
}

func (c *Console) TaskFinished(task transcode.Task, res transcode.Result) {
	switch res.Status {
	case transcode.StatusFailed:
		fmt.Fprintf(c.w, "  %s\n", c.st.bad.Render(fmt.Sprintf("✗ Error: %s (%s, %s): %v",
			task.Source.RelPath, task.SizeLabel(), task.Format, res.Err)))
	case transcode.StatusSkipped:
		if c.verbose {
			fmt.Fprintf(c.w, "  %s\n", c.st.warn.Render("✓ Exists: "+filepath.Base(res.OutputPath)))
		}
	case transcode.StatusSuccess:
		if !c.verbose {
			return
		}
		savings := cli.FormatSavings(res.SavingsPercent)
		if res.SavingsPercent > 0 {
			savings = c.st.good.Render(savings)
		} else {
			savings = c.st.warn.Render(savings)
		}
		verb := "Generated"
		if c.dryRun {
			verb = "Would generate"
		}
		fmt.Fprintf(c.w, "  ✓ %s: %s (%s, %s, %s → %s, %s)\n",
			verb,
			filepath.Base(res.OutputPath),
			task.SizeLabel(),
			task.Format,
			cli.FormatSize(res.OriginalSize),
			cli.FormatSize(res.OptimizedSize),
			savings)
	}
}

func (c *Console) RunFinished(s pipeline.Summary) {
	if s.Files == 0 {
		fmt.Fprintln(c.w, c.st.warn.Render("No images found to optimize."))
	}

	rule := c.st.muted.Render(strings.Repeat("═", ruleWidth))
	row := func(label, value string) {
		fmt.Fprintf(c.w, "  %-21s%s\n", label+":", value)
	}

	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, c.st.heading.Render("Optimization summary"))
	fmt.Fprintln(c.w, rule)
	row("Source images", c.st.value.Render(fmt.Sprint(s.Files)))
	row("Processed", c.st.good.Render(fmt.Sprint(s.Processed)))
	row("Skipped", c.st.warn.Render(fmt.Sprint(s.Skipped)))
	row("Errors", c.st.bad.Render(fmt.Sprint(s.Errors)))
	row("Average savings", c.st.good.Render(fmt.Sprintf("%.2f%%", s.AverageSavings()))+" per image")
	if s.Processed > 0 {
		row("Total size", fmt.Sprintf("%s → %s", cli.FormatSize(s.OriginalBytes), cli.FormatSize(s.OptimizedBytes)))
	}
	row("Elapsed", c.st.value.Render(cli.FormatSeconds(s.Elapsed))+" seconds")
	if c.dryRun {
		fmt.Fprintln(c.w)
		fmt.Fprintln(c.w, c.st.warn.Render("Dry run: no files were written."))
	}
	fmt.Fprintln(c.w, rule)
}
