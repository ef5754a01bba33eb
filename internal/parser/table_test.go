package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/inspection-map/internal/model"
)

const splitLayoutPage = `<html><body>
<table class="nav"><tr><td>Home</td><td>Search</td></tr></table>
<table id="results">
  <thead><tr><th>Establishment</th><th>Address</th><th>Inspection Date</th><th>Status</th><th>Critical</th><th>Non-Critical</th></tr></thead>
  <tbody>
    <tr><td>  Paul's Diner </td><td>12 Main St</td><td>01/05/2026</td><td>Failed</td><td>4</td><td>2</td></tr>
    <tr><td>Bagel Barn</td><td>  40&nbsp;Hammond   St </td><td>01/07/2026</td><td>Passed</td><td></td><td>1</td></tr>
    <tr><td colspan="6">Advertisement</td></tr>
    <tr><td>Corner Cafe</td><td>9 Union St</td><td>01/09/2026</td><td>Passed</td></tr>
  </tbody>
</table>
</body></html>`

func TestParse_SplitLayout(t *testing.T) {
	res, err := Parse([]byte(splitLayoutPage))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Discovered)
	require.Len(t, res.Rows, 3)

	first := res.Rows[0]
	assert.Equal(t, "Paul's Diner", first.Name)
	assert.Equal(t, "12 Main St", first.AddressFragment)
	assert.Equal(t, "01/05/2026", first.Date)
	assert.Equal(t, "Failed", first.StatusText)
	assert.Equal(t, model.LayoutSplit, first.Layout)
	require.NotNil(t, first.CriticalCount)
	assert.Equal(t, 4, *first.CriticalCount)
	require.NotNil(t, first.NonCriticalCount)
	assert.Equal(t, 2, *first.NonCriticalCount)

	second := res.Rows[1]
	assert.Equal(t, "40 Hammond St", second.AddressFragment)
	assert.Nil(t, second.CriticalCount, "empty critical cell is absent, not zero")
	require.NotNil(t, second.NonCriticalCount)

	third := res.Rows[2]
	assert.Equal(t, "Corner Cafe", third.Name)
	assert.Nil(t, third.CriticalCount)
	assert.Nil(t, third.NonCriticalCount)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, ReasonTooFewColumns, res.Issues[0].Reason)
	assert.Equal(t, 2, res.Issues[0].Index)
}

func TestParse_PackedLayout(t *testing.T) {
	page := `<table>
<tr><th>Establishment / Address</th><th>Date</th><th>Result</th><th>Critical</th></tr>
<tr><td>Pho Bangor<br/>  101 Main St  </td><td>02/01/2026</td><td>Passed - 2 Critical</td><td>2</td></tr>
<tr><td>Noodle Hut<br>5 Exchange St<br>Suite 2</td><td>02/02/2026</td><td>Passed</td><td>0</td><td>7</td></tr>
</table>`

	res, err := Parse([]byte(page))
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	assert.Equal(t, model.LayoutPacked, res.Rows[0].Layout)
	assert.Equal(t, "Pho Bangor", res.Rows[0].Name)
	assert.Equal(t, "101 Main St", res.Rows[0].AddressFragment)
	assert.Equal(t, "02/01/2026", res.Rows[0].Date)
	assert.Equal(t, "Passed - 2 Critical", res.Rows[0].StatusText)
	require.NotNil(t, res.Rows[0].CriticalCount)
	assert.Equal(t, 2, *res.Rows[0].CriticalCount)

	assert.Equal(t, "5 Exchange St, Suite 2", res.Rows[1].AddressFragment)
	require.NotNil(t, res.Rows[1].NonCriticalCount)
	assert.Equal(t, 7, *res.Rows[1].NonCriticalCount)
}

func TestParse_SplitRowWithLineBreakInName(t *testing.T) {
	page := `<table>
<tr><th>Establishment</th><th>Address</th><th>Inspection Date</th><th>Status</th></tr>
<tr><td>Joe's Diner<br>DBA Joe's</td><td>12 Main St</td><td>01/02/2024</td><td>Passed</td></tr>
</table>`

	res, err := Parse([]byte(page))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, model.LayoutSplit, row.Layout)
	assert.Equal(t, "Joe's Diner DBA Joe's", row.Name)
	assert.Equal(t, "12 Main St", row.AddressFragment)
	assert.Equal(t, "01/02/2024", row.Date)
	assert.Equal(t, "Passed", row.StatusText)
}

func TestParse_PackedRowCountsExtractedFields(t *testing.T) {
	page := `<table>
<tr><th>Establishment</th><th>Date</th><th>Result</th></tr>
<tr><td>Taco Stand<br>8 Pine St</td><td>04/01/2026</td><td>Passed</td></tr>
<tr><td>Hot Dog Cart<br>9 Oak St</td><td>04/02/2026</td></tr>
</table>`

	res, err := Parse([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Discovered)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, model.LayoutPacked, res.Rows[0].Layout)
	assert.Equal(t, "Taco Stand", res.Rows[0].Name)
	assert.Equal(t, "8 Pine St", res.Rows[0].AddressFragment)
	assert.Equal(t, "Passed", res.Rows[0].StatusText)
	assert.Nil(t, res.Rows[0].CriticalCount)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, ReasonTooFewColumns, res.Issues[0].Reason)
	assert.Equal(t, "3 fields", res.Issues[0].Detail)
}

func TestParse_RowsBelowMinimumNeverReturned(t *testing.T) {
	page := `<table>
<tr><th>Establishment</th></tr>
<tr><td>A</td></tr>
<tr><td>B</td><td>1 Main</td></tr>
<tr><td>C</td><td>2 Main</td><td>01/01/2026</td></tr>
</table>`

	res, err := Parse([]byte(page))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, 3, res.Discovered)
	require.Len(t, res.Issues, 3)
	for _, issue := range res.Issues {
		assert.Equal(t, ReasonTooFewColumns, issue.Reason)
	}
}

func TestParse_MissingName(t *testing.T) {
	page := `<table><tr><th>Establishment</th></tr>
<tr><td>   </td><td>1 Main St</td><td>01/01/2026</td><td>Passed</td></tr></table>`

	res, err := Parse([]byte(page))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, ReasonMissingName, res.Issues[0].Reason)
	assert.Contains(t, res.Issues[0].Error(), "missing_name")
}

func TestParse_NonNumericCountIsAbsent(t *testing.T) {
	page := `<table><tr><th>Establishment</th></tr>
<tr><td>X</td><td>1 Main St</td><td>01/01/2026</td><td>Passed</td><td>N/A</td><td>-1</td></tr></table>`

	res, err := Parse([]byte(page))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0].CriticalCount)
	assert.Nil(t, res.Rows[0].NonCriticalCount)
}

func TestParse_NoTable(t *testing.T) {
	res, err := Parse([]byte(`<html><body><p>No results found.</p></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Zero(t, res.Discovered)
}

func TestParse_WrappedInLayoutTable(t *testing.T) {
	page := `<table class="layout"><tr><td>
<table><tr><th>Establishment</th><th>Address</th><th>Inspection Date</th><th>Status</th></tr>
<tr><td>Inner Cafe</td><td>3 State St</td><td>03/01/2026</td><td>Passed</td></tr></table>
</td></tr></table>`

	res, err := Parse([]byte(page))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Inner Cafe", res.Rows[0].Name)
}
