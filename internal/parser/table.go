// Package parser extracts inspection rows from the portal's results table.
// The page is not ours, so row shape is treated as untrusted: rows that do
// not fit one of the two known layouts are reported and skipped.
package parser

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/inspection-map/internal/model"
)

// MinColumns is the smallest number of fields a data row may carry. A packed
// first cell counts as two fields.
const MinColumns = 4

// Skip reasons reported in RowIssue.Reason.
const (
	ReasonTooFewColumns = "too_few_columns"
	ReasonMissingName   = "missing_name"
)

// headerMarkers identify the results table among any layout tables on the page.
var headerMarkers = []string{"establishment", "inspection date"}

// addressHeaders name a dedicated address column. A table that has one never
// packs the address into the name cell.
var addressHeaders = []string{"address", "location"}

// RowIssue describes a row that was skipped. Index is the zero-based position
// of the row among data rows (header excluded).
type RowIssue struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (i RowIssue) Error() string {
	if i.Detail == "" {
		return "row " + strconv.Itoa(i.Index) + ": " + i.Reason
	}
	return "row " + strconv.Itoa(i.Index) + ": " + i.Reason + " (" + i.Detail + ")"
}

// Result is the outcome of parsing one listing page.
type Result struct {
	Rows       []model.RawRow
	Issues     []RowIssue
	Discovered int // data rows seen, header excluded
}

// Parse extracts rows from listing markup. Per-row problems are collected in
// Result.Issues and never fail the call.
func Parse(markup []byte) (Result, error) {
	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return Result{}, eris.Wrap(err, "parser: parse markup")
	}

	trs := findAll(resultsScope(doc), atom.Tr)
	if len(trs) == 0 {
		return Result{}, nil
	}

	allowPacked := packedAllowed(trs[0])

	var res Result
	for i, tr := range trs[1:] {
		res.Discovered++
		row, issue := parseRow(i, tr, allowPacked)
		if issue != nil {
			res.Issues = append(res.Issues, *issue)
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// resultsScope returns the innermost table carrying a header marker, or the
// whole document when none does. Layout tables wrapping the results also
// contain the markers.
func resultsScope(doc *html.Node) *html.Node {
	for _, table := range findAll(doc, atom.Table) {
		if !hasMarker(table) {
			continue
		}
		inner := false
		for _, nested := range findAll(table, atom.Table)[1:] {
			if hasMarker(nested) {
				inner = true
				break
			}
		}
		if !inner {
			return table
		}
	}
	return doc
}

func hasMarker(table *html.Node) bool {
	text := strings.ToLower(textOf(table))
	for _, marker := range headerMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// packedAllowed decides the layout once per table from its header row: a
// header with its own address column (after the first) means every row is
// split, even when a name cell contains a line break.
func packedAllowed(header *html.Node) bool {
	cells := headerCells(header)
	if len(cells) < 2 {
		return true
	}
	for _, c := range cells[1:] {
		text := strings.ToLower(textOf(c))
		for _, h := range addressHeaders {
			if strings.Contains(text, h) {
				return false
			}
		}
	}
	return true
}

func parseRow(index int, tr *html.Node, allowPacked bool) (model.RawRow, *RowIssue) {
	cells := directCells(tr)

	var name, addr string
	packed := false
	if allowPacked && len(cells) > 0 {
		name, addr, packed = splitPacked(cells[0])
	}

	fields := len(cells)
	if packed {
		fields++
	}
	if fields < MinColumns {
		return model.RawRow{}, &RowIssue{
			Index:  index,
			Reason: ReasonTooFewColumns,
			Detail: strconv.Itoa(fields) + " fields",
		}
	}

	var row model.RawRow
	var rest []*html.Node

	if packed {
		row = model.RawRow{Name: name, AddressFragment: addr, Layout: model.LayoutPacked}
		row.Date = clean(textOf(cells[1]))
		row.StatusText = clean(textOf(cells[2]))
		rest = cells[3:]
	} else {
		row = model.RawRow{
			Name:            clean(textOf(cells[0])),
			AddressFragment: clean(textOf(cells[1])),
			Date:            clean(textOf(cells[2])),
			StatusText:      clean(textOf(cells[3])),
			Layout:          model.LayoutSplit,
		}
		rest = cells[4:]
	}

	if row.Name == "" {
		return model.RawRow{}, &RowIssue{Index: index, Reason: ReasonMissingName}
	}

	if len(rest) > 0 {
		row.CriticalCount = parseCount(textOf(rest[0]))
	}
	if len(rest) > 1 {
		row.NonCriticalCount = parseCount(textOf(rest[1]))
	}
	return row, nil
}

// splitPacked splits a "name<br>address" cell. It reports false unless both
// parts are non-empty.
func splitPacked(cell *html.Node) (name, addr string, ok bool) {
	lines := cellLines(cell)
	var parts []string
	for _, l := range lines {
		if l = clean(l); l != "" {
			parts = append(parts, l)
		}
	}
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], strings.Join(parts[1:], ", "), true
}

// cellLines splits a cell's text on <br>. Newlines in the source markup are
// only formatting and count as spaces.
func cellLines(n *html.Node) []string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Split(b.String(), "\n")
}

func parseCount(s string) *int {
	s = clean(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// headerCells returns the th or td children of a header row.
func headerCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Th || c.DataAtom == atom.Td) {
			cells = append(cells, c)
		}
	}
	return cells
}

// directCells returns the td children of a row, ignoring th and nested tables.
func directCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Td {
			cells = append(cells, c)
		}
	}
	return cells
}

func findAll(root *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// clean trims and collapses internal whitespace. strings.Fields also treats
// U+00A0 (&nbsp;) as a separator.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
