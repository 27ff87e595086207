package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"lnprice/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
	report_resty_bytes    = "resty.response-bytes"
)

var restyTracer = otel.Tracer("lnprice/resty")

type exchangeKeyType int

var exchangeKey exchangeKeyType

// inflight is stored on the request context between the before and after
// hooks. Elapsed time is measured with the monotonic clock, it never needs
// the chrono fault injection point.
type inflight struct {
	seq   uint64
	start time.Time
}

type restyInstrument struct {
	tel    API
	output restyutil.InstrumentOutput
	seq    *atomic.Uint64
}

// InstrumentResty opens a span per request, reports each exchange and, when
// output is not nil, writes every completed exchange to it.
func InstrumentResty(client *resty.Client, tel API, output restyutil.InstrumentOutput) {
	i := restyInstrument{tel: tel, output: output, seq: &atomic.Uint64{}}
	client.OnBeforeRequest(i.before)
	client.OnAfterResponse(i.after)
	client.OnError(i.failed)
}

func spanName(method, rawUrl string) string {
	u, err := url.Parse(rawUrl)
	if err != nil || u.Path == "" {
		return "http " + method
	}
	return fmt.Sprintf("http %s %s", method, u.Path)
}

func (i restyInstrument) before(_ *resty.Client, req *resty.Request) error {
	seq := i.seq.Add(1)
	ctx, span := restyTracer.Start(req.Context(), spanName(req.Method, req.URL))
	span.SetAttributes(attribute.Int64("http.exchange_seq", int64(seq)))

	ctx = context.WithValue(ctx, exchangeKey, inflight{seq: seq, start: time.Now()})
	req.SetContext(ctx)

	i.tel.ReportDebug(report_resty_request, seq, req.Method, req.URL)
	return nil
}

func (i restyInstrument) after(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()

	state, ok := ctx.Value(exchangeKey).(inflight)
	if !ok {
		return fmt.Errorf("response without instrumented request context: %s", res.Request.URL)
	}
	elapsed := time.Since(state.start)

	// the raw request only exists once the request was sent
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)

	i.tel.ReportDebug(report_resty_response, state.seq, res.Status(), elapsed.String())
	i.tel.ReportCount(report_resty_bytes, int64(len(res.Body())))

	if i.output != nil {
		i.output.Write(restyutil.Exchange{
			Seq:      state.seq,
			Elapsed:  elapsed,
			Response: res,
		})
	}
	return nil
}

func (i restyInstrument) failed(req *resty.Request, err error) {
	ctx := req.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")
	if req.RawRequest != nil {
		span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
	}

	var elapsed time.Duration
	var seq uint64
	if state, ok := ctx.Value(exchangeKey).(inflight); ok {
		elapsed = time.Since(state.start)
		seq = state.seq
	}
	i.tel.ReportWarning(report_resty_response, seq, req.Method, req.URL, elapsed.String(), err)
}
