package jgxx

import (
	"slices"

	"lnprice/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// DefaultHeaders is used when the data table has no usable header row.
var DefaultHeaders = []string{
	"序号", "材料名称", "规格型号", "单位", "价格(元)", "备注", "发布地区", "发布时间", "材料类别",
}

func measureTable(index int, table *goquery.Selection) TableCandidate {
	rows := table.Find("tr")
	candidate := TableCandidate{
		Index:         index,
		TotalRowCount: rows.Length(),
	}
	if rows.Length() == 0 {
		return candidate
	}

	candidate.HeaderRowPresent = true
	candidate.DataRowCount = rows.Length() - 1
	candidate.ColumnCount = rows.First().Find("th, td").Length()
	if candidate.ColumnCount == 0 && rows.Length() > 1 {
		candidate.ColumnCount = rows.Eq(1).Find("th, td").Length()
	}
	return candidate
}

// ScoreTables measures every table of the document in document order.
func ScoreTables(doc *goquery.Document) []TableCandidate {
	tables := doc.Find("table")
	candidates := make([]TableCandidate, 0, tables.Length())
	tables.Each(func(i int, table *goquery.Selection) {
		candidates = append(candidates, measureTable(i, table))
	})
	return candidates
}

// SelectTable returns the index of the highest scoring candidate, the
// earliest one wins a tie. ok is false when there are no candidates.
func SelectTable(candidates []TableCandidate) (index int, ok bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score() > candidates[best].Score() {
			best = i
		}
	}
	return candidates[best].Index, true
}

// ParseTable reads headers and rows out of a data table. Blank header cells
// are dropped, every row is fitted to the resulting header width.
func ParseTable(table *goquery.Selection) (headers []string, rows [][]string) {
	trs := table.Find("tr")
	if trs.Length() == 0 {
		return slices.Clone(DefaultHeaders), nil
	}

	for _, text := range htmlutil.CellTexts(trs.First().Find("th, td")) {
		if text != "" {
			headers = append(headers, text)
		}
	}
	if len(headers) == 0 {
		headers = slices.Clone(DefaultHeaders)
	}

	trs.Slice(1, trs.Length()).Each(func(_ int, tr *goquery.Selection) {
		rows = append(rows, NormalizeRow(htmlutil.CellTexts(tr.Find("td")), len(headers)))
	})
	return headers, rows
}
