package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/cottand/qinfer/export"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printSummary(w io.Writer, doc *export.Document) error {
	if !isTerminal(w) {
		pterm.DisableStyling()
		defer pterm.EnableStyling()
	}
	summary := export.Summarize(doc)
	table, err := pterm.DefaultTable.WithHasHeader().WithData(summary.Rows()).Srender()
	if err != nil {
		return fmt.Errorf("could not render summary: %w", err)
	}
	_, _ = fmt.Fprintf(w, "session %s, type system %s\n", doc.Session, pterm.LightCyan(doc.TypeSystem))
	_, _ = fmt.Fprintln(w, table)
	if summary.Failures > 0 {
		_, _ = fmt.Fprintln(w, pterm.Red(fmt.Sprintf("%d internal failures, the first one:", summary.Failures)))
		_, _ = fmt.Fprintln(w, doc.Failures[0])
	}
	return nil
}
