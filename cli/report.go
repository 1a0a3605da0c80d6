package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/chaos-io/bgeraser/eraser"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
)

func printResults(w io.Writer, results []*eraser.Result, errs []error) {
	for _, res := range results {
		printResult(w, res)
	}
	for _, err := range errs {
		fmt.Fprintf(w, "%s %v\n", failedStyle.Render("FAIL"), err)
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d done, %d failed", len(results), len(errs))))
}

func printBatch(w io.Writer, report *eraser.BatchReport) {
	fmt.Fprintln(w, headerStyle.Render(report.Folder))
	for _, res := range report.Results {
		printResult(w, res)
	}
	for _, name := range report.Skipped {
		fmt.Fprintf(w, "%s %s\n", warnStyle.Render("SKIP"), name)
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d done, %d skipped", len(report.Results), len(report.Skipped))))
}

func printWatchLine(w io.Writer, path string, res *eraser.Result, err error) {
	if err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", failedStyle.Render("FAIL"), filepath.Base(path), err)
		return
	}
	printResult(w, res)
}

func printResult(w io.Writer, res *eraser.Result) {
	fmt.Fprintf(w, "%s %s -> %s %s\n",
		doneStyle.Render("DONE"),
		filepath.Base(res.Input),
		res.Output,
		dimStyle.Render(res.Elapsed.Round(time.Millisecond).String()),
	)
}
