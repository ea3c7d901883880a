package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	reconcileservice "github.com/technerv/election-monitor/internal/reconcile/service"
	"github.com/technerv/election-monitor/internal/reconcile/source"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, sum *reconcileservice.Summary, now time.Time, asJSON bool) error {
	if asJSON {
		return writeJSON(w, sum)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		n     int
	}{
		{"elections checked", sum.ElectionsChecked},
		{"results fetched", sum.ResultsFetched},
		{"results created", sum.ResultsCreated},
		{"results updated", sum.ResultsUpdated},
		{"results skipped", sum.ResultsSkipped},
		{"verified results", sum.VerifiedResults},
		{"announcements fetched", sum.AnnouncementsFetched},
		{"elections created", sum.ElectionsCreated},
		{"elections updated", sum.ElectionsUpdated},
		{"upcoming elections", sum.UpcomingElections},
	}
	fmt.Fprintf(tw, "status\t%s\n", sum.Status)
	fmt.Fprintf(tw, "checked\t%s\n", humanize.RelTime(sum.CheckedAt, now, "ago", "from now"))
	for _, row := range rows {
		if row.n == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", row.label, humanize.Comma(int64(row.n)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(sum.Errors) > 0 {
		fmt.Fprintf(w, "\n%s:\n", english.PluralWord(len(sum.Errors), "error", ""))
		for _, e := range sum.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	return nil
}

func printArchived(w io.Writer, n int, asJSON bool) error {
	if asJSON {
		return writeJSON(w, map[string]int{"archived": n})
	}
	_, err := fmt.Fprintf(w, "archived %s %s\n", humanize.Comma(int64(n)), english.PluralWord(n, "election", ""))
	return err
}

func printForms(w io.Writer, forms []source.Form, asJSON bool) error {
	if asJSON {
		return writeJSON(w, forms)
	}
	if len(forms) == 0 {
		_, err := fmt.Fprintln(w, "no forms found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORM\tTITLE\tURL")
	for _, f := range forms {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.FormType, f.Title, f.URL)
	}
	return tw.Flush()
}
