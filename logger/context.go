package logger

import (
	"context"
	"sync/atomic"
)

type contextKey string

const (
	queryCounterKey contextKey = "db_query_counter"
	queryElapsedKey contextKey = "db_query_elapsed_nanos"
)

// WithQueryCounter returns a context that accumulates the number of statements executed
// through it and their total elapsed time. Callers read the totals with QueryCount and QueryElapsed.
func WithQueryCounter(ctx context.Context) context.Context {
	counter := int64(0)
	elapsed := int64(0)
	ctx = context.WithValue(ctx, queryCounterKey, &counter)
	return context.WithValue(ctx, queryElapsedKey, &elapsed)
}

// RecordQuery adds one statement taking nanos to the counters in ctx, if any.
func RecordQuery(ctx context.Context, nanos int64) {
	if ctx == nil {
		return
	}
	if counter, ok := ctx.Value(queryCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
	if elapsed, ok := ctx.Value(queryElapsedKey).(*int64); ok && elapsed != nil {
		atomic.AddInt64(elapsed, nanos)
	}
}

// QueryCount returns the number of statements recorded in ctx.
func QueryCount(ctx context.Context) int64 {
	if counter, ok := ctx.Value(queryCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// QueryElapsed returns the total statement time recorded in ctx, in nanoseconds.
func QueryElapsed(ctx context.Context) int64 {
	if elapsed, ok := ctx.Value(queryElapsedKey).(*int64); ok && elapsed != nil {
		return atomic.LoadInt64(elapsed)
	}
	return 0
}
