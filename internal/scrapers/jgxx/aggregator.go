package jgxx

import (
	"context"
	"fmt"

	"lnprice/internal/components/assert"
	"lnprice/internal/components/telemetry"

	"go.opentelemetry.io/otel/attribute"
)

const (
	report_aggregate_pages_ok     = "aggregate.pages-ok"
	report_aggregate_pages_failed = "aggregate.pages-failed"
	report_aggregate_rows         = "aggregate.rows"
)

// PageSource yields the contents of one result page.
type PageSource interface {
	ExtractPage(ctx context.Context, s *Session, params QueryParameters, page int) (Page, error)
}

// Progress is told which page is about to be fetched out of how many.
type Progress func(page, total int)

// Aggregator walks the result pages of a query in order and stitches them
// into a single Dataset.
type Aggregator struct {
	source PageSource
	tel    telemetry.API
}

func NewAggregator(source PageSource, tel telemetry.API) Aggregator {
	assert.NotNil(source)
	assert.NotNil(tel)
	return Aggregator{
		source: source,
		tel:    telemetry.NewScopedAPI("jgxx.aggregate", tel),
	}
}

// ExtractAll fetches pages 1..pageCount (or only page 1 when allPages is
// false). Failed and empty pages are skipped and listed in the report, the
// headers of the first non-empty page are the headers of the dataset.
func (a Aggregator) ExtractAll(
	ctx context.Context,
	s *Session,
	params QueryParameters,
	pageCount int,
	allPages bool,
	progress Progress,
) (Dataset, ExtractReport) {
	ctx, span := tracer.Start(ctx, "aggregate:ExtractAll")
	defer span.End()

	total := 1
	if allPages {
		total = max(pageCount, 1)
	}
	span.SetAttributes(attribute.Int("jgxx.pages", total))

	var dataset Dataset
	report := ExtractReport{PagesRequested: total}

	for page := 1; page <= total; page++ {
		if ctx.Err() != nil {
			a.tel.ReportWarning(report_aggregate_rows, fmt.Errorf("stopped before page %d: %w", page, ctx.Err()))
			for rest := page; rest <= total; rest++ {
				report.FailedPages = append(report.FailedPages, rest)
			}
			break
		}
		if progress != nil {
			progress(page, total)
		}

		result, err := a.source.ExtractPage(ctx, s, params, page)
		if err != nil || result.Empty() {
			if err == nil {
				a.tel.ReportDebug(report_aggregate_rows, fmt.Sprintf("page %d has no rows", page))
			}
			report.FailedPages = append(report.FailedPages, page)
			continue
		}

		if dataset.Headers == nil {
			dataset.Headers = result.Headers
		}
		for _, row := range result.Rows {
			dataset.Append(row)
		}
		report.PagesSucceeded++
	}
	report.Rows = len(dataset.Rows)

	a.tel.ReportCount(report_aggregate_pages_ok, int64(report.PagesSucceeded))
	a.tel.ReportCount(report_aggregate_pages_failed, int64(len(report.FailedPages)))
	a.tel.ReportCount(report_aggregate_rows, int64(report.Rows))
	span.SetAttributes(attribute.Int("jgxx.rows", report.Rows))

	return dataset, report
}
