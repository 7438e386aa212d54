package database

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noirepd/precinct/internal/shared/metrics"
)

type queryStartKey struct{}

// queryTracer times every statement into the db_query_duration histogram,
// labelled by the leading SQL keyword.
type queryTracer struct{}

func (queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	metrics.RecordDBQuery(operation(data.CommandTag.String()), time.Since(start))
}

// operation reduces a command tag such as "UPDATE 1" to "update".
func operation(tag string) string {
	op, _, _ := strings.Cut(strings.TrimSpace(tag), " ")
	if op == "" {
		return "other"
	}
	return strings.ToLower(op)
}
