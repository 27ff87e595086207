package jgxx

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"lnprice/internal/components/assert"
	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_query_plan    = "query.plan"
	report_query_records = "query.records"
	report_query_pages   = "query.pages"
)

// RecordsMethod names which pattern the record count was read from.
type RecordsMethod string

const (
	RecordsFound    RecordsMethod = "found"
	RecordsTotal    RecordsMethod = "total"
	RecordsFirstTag RecordsMethod = "first-count"
	RecordsMaxInt   RecordsMethod = "max-integer"
	RecordsNone     RecordsMethod = "none"
)

var (
	foundRegex       = regexp.MustCompile(`共找到(\d+)条信息`)
	totalRegex       = regexp.MustCompile(`共(\d+)条记录`)
	countTagRegex    = regexp.MustCompile(`(\d+)条`)
	integerRegex     = regexp.MustCompile(`\d+`)
	pageCounterRegex = regexp.MustCompile(`\d+/(\d+)`)
)

// ParseTotalRecords reads the record count out of the plain text of the
// first result page. The patterns are tried from most to least specific,
// the last one takes the largest integer anywhere on the page and is only
// a guess.
func ParseTotalRecords(text string) (int, RecordsMethod) {
	if m := foundRegex.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), RecordsFound
	}
	if m := totalRegex.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), RecordsTotal
	}
	if m := countTagRegex.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), RecordsFirstTag
	}

	numbers := integerRegex.FindAllString(text, -1)
	if len(numbers) == 0 {
		return 0, RecordsNone
	}
	largest := 0
	for _, n := range numbers {
		if v := atoi(n); v > largest {
			largest = v
		}
	}
	return largest, RecordsMaxInt
}

// ParseTotalPages takes the denominator of the first "N/M" page counter, or
// derives the count from records when the page has none. It is never below 1.
func ParseTotalPages(text string, records int) int {
	pages := 0
	if m := pageCounterRegex.FindStringSubmatch(text); m != nil {
		pages = atoi(m[1])
	} else {
		pages = int(math.Ceil(float64(records) / float64(PageSize)))
	}
	return max(pages, 1)
}

// atoi saturates instead of failing, a count too large for int is as good as unbounded.
func atoi(digits string) int {
	v, err := strconv.Atoi(digits)
	if err != nil {
		return math.MaxInt
	}
	return v
}

// QueryPlanner probes the first result page of a selection to learn how
// many records and pages it has.
type QueryPlanner struct {
	tel   telemetry.API
	retry retrier
}

func NewQueryPlanner(opts Options, time chrono.TimeAPI, tel telemetry.API) QueryPlanner {
	assert.NotNil(time)
	assert.NotNil(tel)

	opts = opts.withDefaults()
	tel = telemetry.NewScopedAPI("jgxx.query", tel)
	return QueryPlanner{
		tel: tel,
		retry: retrier{
			attempts: opts.Attempts,
			delay:    opts.RetryDelay,
			time:     time,
			tel:      tel,
		},
	}
}

func (p QueryPlanner) Plan(ctx context.Context, s *Session, params QueryParameters) (QueryResult, error) {
	ctx, span := tracer.Start(ctx, "query:Plan")
	defer span.End()
	span.SetAttributes(
		attribute.String("jgxx.city", params.CityID),
		attribute.String("jgxx.date", params.DateString()),
	)

	err := params.Validate()
	if err != nil {
		return QueryResult{}, err
	}
	if s == nil {
		return QueryResult{}, ErrNotConnected
	}

	var page document
	attempts, err := p.retry.do(ctx, report_query_plan, func(ctx context.Context, _ int) error {
		res, err := s.get(ctx, formPath, params.values(1))
		if err != nil {
			return err
		}
		page = res
		return nil
	})
	if err != nil {
		queryErr := &QueryError{Params: params, Attempts: attempts, Err: err}
		p.tel.ReportBroken(report_query_plan, queryErr)
		span.RecordError(queryErr)
		span.SetStatus(codes.Error, "query failed")
		return QueryResult{}, queryErr
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.text))
	if err != nil {
		queryErr := &QueryError{Params: params, Attempts: attempts, Err: fmt.Errorf("parse html: %w", err)}
		p.tel.ReportBroken(report_query_plan, queryErr)
		span.RecordError(queryErr)
		span.SetStatus(codes.Error, "unparseable result page")
		return QueryResult{}, queryErr
	}
	text := doc.Text()

	records, method := ParseTotalRecords(text)
	if method == RecordsMaxInt || method == RecordsNone {
		p.tel.ReportWarning(report_query_records, fmt.Sprintf("no record counter on page, guessed %d via %s", records, method))
	}
	pages := ParseTotalPages(text, records)

	p.tel.ReportCount(report_query_records, int64(records))
	p.tel.ReportCount(report_query_pages, int64(pages))
	span.SetAttributes(
		attribute.Int("jgxx.records", records),
		attribute.Int("jgxx.pages", pages),
	)

	return QueryResult{
		TotalRecords:  records,
		TotalPages:    pages,
		RecordsMethod: method,
	}, nil
}
