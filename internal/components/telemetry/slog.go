package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InitSlog installs a text handler on stderr-like output as the default slog logger.
func InitSlog(out io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	})))
}

// SlogAPI implements API using the log/slog package, counts are additionally
// recorded on an otel histogram so they show up wherever metrics are exported.
type SlogAPI struct {
	counts metric.Int64Histogram
}

func NewSlogAPI() SlogAPI {
	counts, err := otel.Meter("lnprice").Int64Histogram(
		"lnprice.count",
		metric.WithDescription("point-in-time counts reported through telemetry.API"),
	)
	if err != nil {
		slog.Warn("failed to create count histogram", "err", err)
	}
	return SlogAPI{counts: counts}
}

func (SlogAPI) formatParams(out *[]any, params []any) {
	for i, p := range params {
		*out = append(
			*out,
			fmt.Sprintf("params.%d", i),
			p,
		)
	}
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Error("broken component", remainingPairs...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Warn("warning", remainingPairs...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Debug(message, remainingPairs...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "n", count)
	if s.counts != nil {
		s.counts.Record(
			context.Background(),
			count,
			metric.WithAttributes(attribute.String("id", id)),
		)
	}
}
