package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/a-nagdy/anasityshop/pkg/database"

// QueryTracer implements pgx.QueryTracer. It opens a client span per query
// and logs statements slower than SlowThreshold.
type QueryTracer struct {
	tracer        trace.Tracer
	logger        *slog.Logger
	slowThreshold time.Duration
}

// NewQueryTracer creates a tracer using the global OpenTelemetry provider.
// A zero slowThreshold disables slow query logging.
func NewQueryTracer(logger *slog.Logger, slowThreshold time.Duration) *QueryTracer {
	return &QueryTracer{
		tracer:        otel.Tracer(tracerName),
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

type queryStartKey struct{}

type queryStart struct {
	sql   string
	start time.Time
	span  trace.Span
}

// TraceQueryStart implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := operationName(data.SQL)
	ctx, span := t.tracer.Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.statement", data.SQL),
		),
	)
	return context.WithValue(ctx, queryStartKey{}, &queryStart{sql: data.SQL, start: time.Now(), span: span})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(*queryStart)
	if !ok {
		return
	}
	if data.Err != nil {
		qs.span.RecordError(data.Err)
		qs.span.SetStatus(codes.Error, data.Err.Error())
	}
	qs.span.End()

	if t.slowThreshold <= 0 || t.logger == nil {
		return
	}
	if elapsed := time.Since(qs.start); elapsed >= t.slowThreshold {
		attrs := []any{
			slog.String("statement", qs.sql),
			slog.Duration("duration", elapsed),
		}
		if data.Err != nil {
			attrs = append(attrs, slog.String("error", data.Err.Error()))
		}
		t.logger.WarnContext(ctx, "slow query detected", attrs...)
	}
}

// operationName returns the leading SQL keyword, e.g. SELECT or UPDATE.
func operationName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "query"
	}
	return strings.ToUpper(fields[0])
}
