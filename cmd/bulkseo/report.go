package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/cwygoda/bulkseo/internal/health"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}

func statusText(s health.Status) string {
	switch s {
	case health.StatusComplete:
		return color.GreenString(string(s))
	case health.StatusNeedsAttention:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}

// renderReport writes one row per product followed by the summary.
func renderReport(w io.Writer, results []health.ProductHealth, summary health.Summary) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		missing := "-"
		if len(r.MissingFields) > 0 {
			missing = strings.Join(r.MissingFields, ", ")
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ProductID, 10),
			r.ProductName,
			strconv.Itoa(r.SEOScore),
			statusText(r.Status),
			missing,
		})
	}

	table := newTable(w)
	table.Header([]string{"ID", "Product", "Score", "Status", "Missing"})
	table.Bulk(rows)
	table.Render()

	bold := color.New(color.Bold)
	bold.Fprintf(w, "\nSummary\n")
	fmt.Fprintf(w, "  Products:          %d\n", summary.TotalProducts)
	fmt.Fprintf(w, "  Complete:          %d\n", summary.CompleteContent)
	fmt.Fprintf(w, "  Missing 1+ fields: %d\n", summary.MissingOnePlus)
	fmt.Fprintf(w, "  Missing 3+ fields: %d\n", summary.MissingThreePlus)
	fmt.Fprintf(w, "  Critical:          %d\n", summary.CriticalIssues)
	if len(summary.TopMissing) > 0 {
		fmt.Fprintln(w, "  Most often missing:")
		for _, fc := range summary.TopMissing {
			fmt.Fprintf(w, "    %-20s %d\n", fc.Field, fc.Count)
		}
	}
}
