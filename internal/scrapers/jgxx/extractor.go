package jgxx

import (
	"context"
	"fmt"
	"strings"

	"lnprice/internal/components/assert"
	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_extract_page  = "extract.page"
	report_extract_table = "extract.table"
)

// PageExtractor pulls the data table out of a single result page.
type PageExtractor struct {
	tel   telemetry.API
	retry retrier
}

func NewPageExtractor(opts Options, time chrono.TimeAPI, tel telemetry.API) PageExtractor {
	assert.NotNil(time)
	assert.NotNil(tel)

	opts = opts.withDefaults()
	tel = telemetry.NewScopedAPI("jgxx.extract", tel)
	return PageExtractor{
		tel: tel,
		retry: retrier{
			attempts: opts.Attempts,
			delay:    opts.RetryDelay,
			time:     time,
			tel:      tel,
		},
	}
}

// ExtractPage fetches one result page and parses its data table. Failures
// come back as *ExtractionError alongside an empty Page, the caller is
// expected to move on to the next page.
func (e PageExtractor) ExtractPage(ctx context.Context, s *Session, params QueryParameters, page int) (Page, error) {
	ctx, span := tracer.Start(ctx, "extract:ExtractPage")
	defer span.End()
	span.SetAttributes(attribute.Int("jgxx.page", page))

	empty := Page{Number: page}
	fail := func(attempts int, err error) (Page, error) {
		extractErr := &ExtractionError{Page: page, Attempts: attempts, Err: err}
		e.tel.ReportWarning(report_extract_page, extractErr)
		span.RecordError(extractErr)
		span.SetStatus(codes.Error, "page extraction failed")
		return empty, extractErr
	}

	err := params.Validate()
	if err != nil {
		return fail(0, err)
	}
	if s == nil {
		return fail(0, ErrNotConnected)
	}

	var result Page
	var tableless bool
	attempts, err := e.retry.do(ctx, report_extract_page, func(ctx context.Context, _ int) error {
		res, err := s.get(ctx, formPath, params.values(page))
		if err != nil {
			return err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.text))
		if err != nil {
			return fmt.Errorf("parse html: %w", err)
		}

		candidates := ScoreTables(doc)
		index, ok := SelectTable(candidates)
		if !ok {
			// refetching won't grow a table
			tableless = true
			return nil
		}
		e.tel.ReportDebug(report_extract_table, fmt.Sprintf("page %d: picked table %d of %d", page, index, len(candidates)))

		headers, rows := ParseTable(doc.Find("table").Eq(index))
		result = Page{Number: page, Headers: headers, Rows: rows}
		return nil
	})
	if err != nil {
		return fail(attempts, err)
	}
	if tableless {
		return fail(attempts, ErrNoTables)
	}

	e.tel.ReportCount(report_extract_page, int64(len(result.Rows)))
	span.SetAttributes(attribute.Int("jgxx.rows", len(result.Rows)))
	return result, nil
}
