package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/inspection-map/internal/model"
	"github.com/sells-group/inspection-map/internal/parser"
	"github.com/sells-group/inspection-map/internal/risk"
)

// parsedRow is a listing row with the color it would be drawn in.
type parsedRow struct {
	Name             string          `json:"name"`
	Address          string          `json:"address"`
	Date             string          `json:"date"`
	Status           string          `json:"status"`
	CriticalCount    *int            `json:"critical,omitempty"`
	NonCriticalCount *int            `json:"non_critical,omitempty"`
	Layout           model.Layout    `json:"layout"`
	Color            model.RiskColor `json:"color"`
}

type parseOutput struct {
	Discovered int               `json:"discovered"`
	Rows       []parsedRow       `json:"rows"`
	Skipped    []parser.RowIssue `json:"skipped"`
}

var parseCmd = &cobra.Command{
	Use:   "parse <listing.html>",
	Short: "Parse a saved listing page and print the rows with their colors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		markup, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "parse: read listing")
		}

		res, err := parser.Parse(markup)
		if err != nil {
			return eris.Wrap(err, "parse: listing")
		}

		out := parseOutput{
			Discovered: res.Discovered,
			Rows:       make([]parsedRow, 0, len(res.Rows)),
			Skipped:    res.Issues,
		}
		if out.Skipped == nil {
			out.Skipped = []parser.RowIssue{}
		}
		for _, r := range res.Rows {
			out.Rows = append(out.Rows, parsedRow{
				Name:             r.Name,
				Address:          r.AddressFragment,
				Date:             r.Date,
				Status:           r.StatusText,
				CriticalCount:    r.CriticalCount,
				NonCriticalCount: r.NonCriticalCount,
				Layout:           r.Layout,
				Color:            risk.ClassifyRow(r.StatusText, r.CriticalCount, r.NonCriticalCount),
			})
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
