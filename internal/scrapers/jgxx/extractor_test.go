package jgxx

import (
	"context"
	"strings"
	"testing"
	"time"

	"lnprice/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

// table renders a table with a header row of cols cells followed by rows data rows.
func table(cols, rows int) string {
	var b strings.Builder
	b.WriteString("<table><tr>")
	b.WriteString(strings.Repeat("<th>h</th>", cols))
	b.WriteString("</tr>")
	for i := 0; i < rows; i++ {
		b.WriteString("<tr>")
		b.WriteString(strings.Repeat("<td>d</td>", cols))
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}

func TestScoreTables(t *testing.T) {
	doc := parseDoc(t, table(2, 0)+table(9, 12)+table(4, 40))

	candidates := ScoreTables(doc)
	expected := []TableCandidate{
		{Index: 0, ColumnCount: 2, HeaderRowPresent: true, DataRowCount: 0, TotalRowCount: 1},
		{Index: 1, ColumnCount: 9, HeaderRowPresent: true, DataRowCount: 12, TotalRowCount: 13},
		{Index: 2, ColumnCount: 4, HeaderRowPresent: true, DataRowCount: 40, TotalRowCount: 41},
	}
	if diff := cmp.Diff(expected, candidates); diff != "" {
		t.Fatalf("candidates differ (-want +got):\n%s", diff)
	}

	require.Equal(t, 21, candidates[0].Score())
	require.Equal(t, 265, candidates[1].Score())
	require.Equal(t, 171, candidates[2].Score())

	index, ok := SelectTable(candidates)
	require.True(t, ok)
	require.Equal(t, 1, index)
}

func TestSelectTableTieKeepsFirst(t *testing.T) {
	doc := parseDoc(t, table(3, 2)+table(6, 5)+table(6, 5))

	index, ok := SelectTable(ScoreTables(doc))
	require.True(t, ok)
	require.Equal(t, 1, index)

	_, ok = SelectTable(nil)
	require.False(t, ok)
}

func TestScoreTablesHeaderlessFirstRow(t *testing.T) {
	doc := parseDoc(t, `<table>
		<tr></tr>
		<tr><td>1</td><td>2</td><td>3</td><td>4</td><td>5</td><td>6</td></tr>
	</table>`)

	candidates := ScoreTables(doc)
	require.Len(t, candidates, 1)
	require.Equal(t, 6, candidates[0].ColumnCount)
	require.Equal(t, 1, candidates[0].DataRowCount)
}

func TestParseTable(t *testing.T) {
	doc := parseDoc(t, `<table>
		<tr><th>序号</th><th> </th><th>材料名称</th><td>规格
			型号</td><th>价格(元)</th></tr>
		<tr><td>1</td><td>  热轧带肋钢筋 </td><td>HRB400&nbsp;&nbsp;Φ12</td><td>3900</td></tr>
		<tr><td>2</td><td>水泥</td><td>P.O 42.5</td><td>480</td><td>袋装</td><td>多余</td></tr>
	</table>`)

	headers, rows := ParseTable(doc.Find("table"))
	require.Equal(t, []string{"序号", "材料名称", "规格 型号", "价格(元)"}, headers)

	expected := [][]string{
		{"1", "热轧带肋钢筋", "HRB400 Φ12", "3900"},
		{"2", "水泥", "P.O 42.5", "480"},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Fatalf("rows differ (-want +got):\n%s", diff)
	}
}

func TestParseTableDefaultHeaders(t *testing.T) {
	doc := parseDoc(t, `<table>
		<tr><td></td><td>&nbsp;</td></tr>
		<tr><td>1</td><td>砂</td></tr>
	</table>`)

	headers, rows := ParseTable(doc.Find("table"))
	require.Equal(t, DefaultHeaders, headers)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], len(DefaultHeaders))
	require.Equal(t, "砂", rows[0][1])
	require.Empty(t, rows[0][8])

	// callers get their own copy
	headers[0] = "changed"
	require.Equal(t, "序号", DefaultHeaders[0])
}

func TestExtractPage(t *testing.T) {
	server := newFixtureServer(t)
	server.setPage(2, resultHtml("共找到120条信息 2/3", fixtureHeaders, fixtureRows(2, 50)))
	deps := newTestDeps(server)
	_, session := connect(t, deps)

	extractor := NewPageExtractor(deps.opts, deps.time, deps.tel)
	page, err := extractor.ExtractPage(context.Background(), session, QueryParameters{CityID: "16", Year: 2023, Month: 11}, 2)
	require.NoError(t, err)

	require.Equal(t, 2, page.Number)
	require.Equal(t, fixtureHeaders, page.Headers)
	require.Len(t, page.Rows, 50)
	require.Equal(t, []string{"51", "热轧带肋钢筋", "HRB400 Φ12", "吨", "3900"}, page.Rows[0])

	query := server.lastQuery()
	require.Equal(t, "2", query.Get("pageno"))
	require.Equal(t, "2023/11/20", query.Get("time1"))

	count, ok := deps.tel.LastCount(report_extract_page)
	require.True(t, ok)
	require.EqualValues(t, 50, count)
}

func TestExtractPageNoTables(t *testing.T) {
	server := newFixtureServer(t)
	server.setPage(1, readFixture(t, "notables.html"))
	deps := newTestDeps(server)
	_, session := connect(t, deps)

	extractor := NewPageExtractor(deps.opts, deps.time, deps.tel)
	page, err := extractor.ExtractPage(context.Background(), session, QueryParameters{CityID: "15", Year: 2024, Month: 5}, 1)
	require.ErrorIs(t, err, ErrNoTables)
	require.True(t, page.Empty())
	require.Equal(t, 1, page.Number)

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	require.Equal(t, 1, extractErr.Attempts)
	require.Empty(t, deps.time.Sleeps())
	require.Len(t, deps.tel.Reports(telemetry.LevelWarning, report_extract_page), 1)
}

func TestExtractPageGivesUp(t *testing.T) {
	server := newFixtureServer(t)
	server.setPage(3, resultHtml("3/3", fixtureHeaders, fixtureRows(3, 20)))
	deps := newTestDeps(server)
	_, session := connect(t, deps)
	server.failNext(formPath, 3)

	extractor := NewPageExtractor(deps.opts, deps.time, deps.tel)
	page, err := extractor.ExtractPage(context.Background(), session, QueryParameters{CityID: "15", Year: 2024, Month: 5}, 3)

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	require.Equal(t, 3, extractErr.Page)
	require.Equal(t, 3, extractErr.Attempts)
	require.True(t, page.Empty())
	require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, deps.time.Sleeps())

	// the server recovered, the next call succeeds on the first attempt
	page, err = extractor.ExtractPage(context.Background(), session, QueryParameters{CityID: "15", Year: 2024, Month: 5}, 3)
	require.NoError(t, err)
	require.Len(t, page.Rows, 20)
}
