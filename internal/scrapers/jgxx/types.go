package jgxx

import (
	"fmt"
	"net/url"
	"strconv"
)

// PageSize is the number of records the server renders per result page.
const PageSize = 50

type City struct {
	ID          string
	DisplayName string
}

type QueryParameters struct {
	CityID string
	Year   int
	Month  int
}

func (p QueryParameters) Validate() error {
	if p.CityID == "" {
		return &ParameterError{Field: "city", Reason: "no city selected"}
	}
	if p.Year <= 0 {
		return &ParameterError{Field: "year", Reason: "no year selected"}
	}
	if p.Month < 1 || p.Month > 12 {
		return &ParameterError{Field: "month", Reason: fmt.Sprintf("month %d is not within 1..12", p.Month)}
	}
	return nil
}

// DateString is the `time1` value the query form submits, the server only
// looks at year and month so the day is always the 20th.
func (p QueryParameters) DateString() string {
	return fmt.Sprintf("%04d/%02d/20", p.Year, p.Month)
}

// values renders the query string for a result page, the unused filter
// fields have to be present but empty.
func (p QueryParameters) values(page int) url.Values {
	return url.Values{
		"pageno": {strconv.Itoa(page)},
		"dq_id":  {p.CityID},
		"cllb":   {""},
		"time1":  {p.DateString()},
		"clmc":   {""},
		"clid":   {""},
		"view":   {"hidden"},
		"tc":     {""},
	}
}

type QueryResult struct {
	TotalRecords int
	TotalPages   int
	// RecordsMethod names the heuristic that produced TotalRecords.
	RecordsMethod RecordsMethod
}

// TableCandidate is the shape of one <table> on a result page.
type TableCandidate struct {
	Index            int
	ColumnCount      int
	HeaderRowPresent bool
	DataRowCount     int
	TotalRowCount    int
}

// Score weighs a table by shape, the data table is reliably the widest and
// longest one on the page but carries no stable id or class.
func (c TableCandidate) Score() int {
	score := 0
	if c.ColumnCount >= 5 {
		score += 100
	}
	score += c.ColumnCount * 10
	if c.DataRowCount >= 10 {
		score += 50
	}
	score += c.DataRowCount
	score += c.TotalRowCount
	return score
}

// Page is what a single result page contributed.
type Page struct {
	Number  int
	Headers []string
	Rows    [][]string
}

func (p Page) Empty() bool {
	return len(p.Rows) == 0
}

type Dataset struct {
	Headers []string
	Rows    [][]string
}

// Append admits a row after fitting it to the header width.
func (d *Dataset) Append(row []string) {
	d.Rows = append(d.Rows, NormalizeRow(row, len(d.Headers)))
}

func (d Dataset) Empty() bool {
	return len(d.Rows) == 0
}

// NormalizeRow right-pads row with empty cells or truncates it so that it has exactly width cells.
func NormalizeRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

// ExtractReport summarizes an aggregate extraction run.
type ExtractReport struct {
	PagesRequested int
	PagesSucceeded int
	FailedPages    []int
	Rows           int
}
