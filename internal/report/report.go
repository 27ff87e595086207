package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"lnprice/internal/components/assert"
	"lnprice/internal/components/telemetry"
	"lnprice/internal/scrapers/jgxx"

	"github.com/xuri/excelize/v2"
)

const (
	report_write_xlsx = "writer.write-xlsx"
	report_write_csv  = "writer.write-csv"
)

const (
	SheetName = "材料价格"

	rowHeight      = 21
	maxColumnWidth = 100
)

// utf8Bom makes Excel on Windows open the csv as UTF-8.
var utf8Bom = []byte{0xef, 0xbb, 0xbf}

// DefaultFilename is the conventional name of an exported price list,
// ex. 辽宁省沈阳市2024年05月份网刊
func DefaultFilename(region, city string, year, month int) string {
	return fmt.Sprintf("%s%s%04d年%02d月份网刊", region, city, year, month)
}

type xlsxWriter func(path string, headers []string, rows [][]string) error

// Writer exports a dataset as a styled xlsx workbook, degrading to a plain
// workbook and then to csv when a richer format can't be written.
type Writer struct {
	tel  telemetry.API
	xlsx []xlsxWriter
}

func NewWriter(tel telemetry.API) Writer {
	assert.NotNil(tel)
	return Writer{
		tel:  telemetry.NewScopedAPI("report", tel),
		xlsx: []xlsxWriter{writeStyledXlsx, writePlainXlsx},
	}
}

// Write exports ds to path and returns the path that was actually written.
// A ".csv" path is written as csv, any other path becomes an xlsx workbook
// (".xlsx" is appended when missing).
func (w Writer) Write(path string, ds jgxx.Dataset) (string, error) {
	headers, rows := sanitize(ds)

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".csv" {
		err := writeCsv(path, headers, rows)
		if err != nil {
			w.tel.ReportBroken(report_write_csv, err, path)
			return "", err
		}
		return path, nil
	}
	if ext != ".xlsx" {
		path += ".xlsx"
	}

	var errs []error
	for _, write := range w.xlsx {
		err := write(path, headers, rows)
		if err == nil {
			return path, nil
		}
		w.tel.ReportWarning(report_write_xlsx, err, path)
		errs = append(errs, err)
	}

	csvPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
	err := writeCsv(csvPath, headers, rows)
	if err != nil {
		errs = append(errs, err)
		joined := errors.Join(errs...)
		w.tel.ReportBroken(report_write_csv, joined, csvPath)
		return "", joined
	}
	w.tel.ReportWarning(report_write_csv, "xlsx could not be written, saved as csv instead", csvPath)
	return csvPath, nil
}

// sanitize copies the dataset with invalid UTF-8 replaced so the caller's
// dataset is never touched.
func sanitize(ds jgxx.Dataset) ([]string, [][]string) {
	headers := make([]string, len(ds.Headers))
	for i, h := range ds.Headers {
		headers[i] = strings.ToValidUTF8(h, "�")
	}
	rows := make([][]string, len(ds.Rows))
	for i, row := range ds.Rows {
		clean := make([]string, len(row))
		for j, cell := range row {
			clean[j] = strings.ToValidUTF8(cell, "�")
		}
		rows[i] = clean
	}
	return headers, rows
}

func columnWidths(headers []string, rows [][]string) []float64 {
	widths := make([]float64, len(headers))
	for col := range headers {
		longest := utf8.RuneCountInString(headers[col])
		for _, row := range rows {
			if col < len(row) {
				longest = max(longest, utf8.RuneCountInString(row[col]))
			}
		}
		widths[col] = float64(min(longest+2, maxColumnWidth))
	}
	return widths
}

func toRow(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

func writeStyledXlsx(path string, headers []string, rows [][]string) (err error) {
	f := excelize.NewFile()
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()

	err = f.SetSheetName("Sheet1", SheetName)
	if err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 10},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}
	dataStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}
	stripeStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}

	if len(headers) == 0 {
		return f.SaveAs(path)
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}

	header := toRow(headers)
	err = f.SetSheetRow(SheetName, "A1", &header)
	if err != nil {
		return err
	}
	err = f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle)
	if err != nil {
		return err
	}
	err = f.SetRowHeight(SheetName, 1, rowHeight)
	if err != nil {
		return err
	}

	for i, row := range rows {
		excelRow := i + 2
		cell, err := excelize.CoordinatesToCellName(1, excelRow)
		if err != nil {
			return err
		}
		values := toRow(row)
		err = f.SetSheetRow(SheetName, cell, &values)
		if err != nil {
			return err
		}

		// every other row starting from the first data row is shaded
		style := dataStyle
		if i%2 == 0 {
			style = stripeStyle
		}
		err = f.SetCellStyle(SheetName, cell, fmt.Sprintf("%s%d", lastCol, excelRow), style)
		if err != nil {
			return err
		}
		err = f.SetRowHeight(SheetName, excelRow, rowHeight)
		if err != nil {
			return err
		}
	}

	for i, width := range columnWidths(headers, rows) {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		err = f.SetColWidth(SheetName, col, col, width)
		if err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

// writePlainXlsx streams the rows out without any styling.
func writePlainXlsx(path string, headers []string, rows [][]string) (err error) {
	f := excelize.NewFile()
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()

	err = f.SetSheetName("Sheet1", SheetName)
	if err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return err
	}
	err = sw.SetRow("A1", toRow(headers))
	if err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		err = sw.SetRow(cell, toRow(row))
		if err != nil {
			return err
		}
	}
	err = sw.Flush()
	if err != nil {
		return err
	}
	return f.SaveAs(path)
}

func writeCsv(path string, headers []string, rows [][]string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := file.Close()
		if err == nil {
			err = closeErr
		}
	}()

	_, err = file.Write(utf8Bom)
	if err != nil {
		return err
	}
	w := csv.NewWriter(file)
	err = w.Write(headers)
	if err != nil {
		return err
	}
	err = w.WriteAll(rows)
	if err != nil {
		return err
	}
	return w.Error()
}
