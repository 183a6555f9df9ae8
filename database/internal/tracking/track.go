package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-sql/logger"
)

const (
	defaultOperation = "query"

	dbVendorPostgreSQL = "postgresql"
	dbVendorMySQL      = "mysql"

	dbTracerName      = "go-bricks-sql/database"
	maxDBQueryAttrLen = 2000

	// Pseudo statements used to track transaction control
	opBegin    = "BEGIN"
	opCommit   = "COMMIT"
	opRollback = "ROLLBACK"
)

// TrackDBOperation records a completed statement: it adds the statement to the request
// counters in ctx, emits a span and metrics, and logs it. Errors are logged at error level
// except sql.ErrNoRows, statements slower than the configured threshold at warn level,
// everything else at debug level.
//
// rowsAffected is the write count for INSERT, UPDATE and DELETE; pass 0 for reads.
// TrackDBOperation is a no-op if tc or its Logger is nil.
func TrackDBOperation(ctx context.Context, tc *Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	if tc == nil || tc.Logger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	elapsed := time.Since(start)
	logger.RecordQuery(ctx, elapsed.Nanoseconds())

	createDBSpan(ctx, tc, query, start, err)
	recordDBMetrics(ctx, tc, query, elapsed, rowsAffected, err)

	fields := map[string]any{
		"vendor":      tc.Vendor,
		"duration_ms": elapsed.Milliseconds(),
		"duration_ns": elapsed.Nanoseconds(),
		"query":       TruncateString(query, tc.Settings.MaxQueryLength()),
	}
	if tc.TxID != "" {
		fields["tx_id"] = tc.TxID
	}
	if rowsAffected > 0 {
		fields["rows_affected"] = rowsAffected
	}
	if tc.Settings.LogQueryParameters() && len(args) > 0 {
		fields["args"] = SanitizeArgs(args, tc.Settings.MaxQueryLength())
	}
	log := tc.Logger.WithContext(ctx).WithFields(fields)

	switch {
	case err != nil && errors.Is(err, sql.ErrNoRows):
		log.Debug().Msg("Database operation returned no rows")
	case err != nil:
		log.Error().Err(err).Msg("Database operation error")
	case elapsed > tc.Settings.SlowQueryThreshold():
		log.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		log.Debug().Msg("Database operation executed")
	}
}

// extractRowsAffected returns the write count of result, or 0 when it is unavailable.
func extractRowsAffected(result sql.Result, err error) int64 {
	if result == nil || err != nil {
		return 0
	}
	affected, affErr := result.RowsAffected()
	if affErr != nil {
		return 0
	}
	return affected
}

// TruncateString truncates value to at most maxLen runes. When maxLen > 3 the last three
// runes are replaced by "...". maxLen <= 0 disables truncation.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SanitizeArgs returns a copy of args suitable for logging: strings and formatted values
// are truncated to maxLen runes and byte slices become "<bytes len=N>".
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	sanitized := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			sanitized[i] = TruncateString(v, maxLen)
		case []byte:
			sanitized[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		case nil:
			sanitized[i] = nil
		default:
			sanitized[i] = TruncateString(fmt.Sprintf("%v", v), maxLen)
		}
	}
	return sanitized
}

// createDBSpan emits a client span covering start until now.
func createDBSpan(ctx context.Context, tc *Context, query string, start time.Time, err error) {
	operation := extractDBOperation(query)

	_, span := otel.Tracer(dbTracerName).Start(ctx, "db."+operation,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("db.system.name", normalizeDBVendor(tc.Vendor)),
		semconv.DBQueryText(TruncateString(query, maxDBQueryAttrLen)),
	}
	if operation != defaultOperation {
		attrs = append(attrs, semconv.DBOperationName(operation))
	}
	if table := extractTableName(query); table != unknownTable {
		attrs = append(attrs, semconv.DBCollectionName(table))
	}
	if tc.Namespace != "" {
		attrs = append(attrs, semconv.DBNamespace(tc.Namespace))
	}
	if tc.ServerAddress != "" {
		attrs = append(attrs, semconv.ServerAddress(tc.ServerAddress))
		if tc.ServerPort > 0 {
			attrs = append(attrs, semconv.ServerPort(tc.ServerPort))
		}
	}
	if tc.TxID != "" {
		attrs = append(attrs, attribute.String("db.transaction.id", tc.TxID))
	}
	span.SetAttributes(attrs...)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// extractDBOperation returns the lowercase statement verb, or "query" when it is not recognised.
func extractDBOperation(query string) string {
	query = strings.TrimSpace(query)
	switch query {
	case "":
		return defaultOperation
	case opBegin:
		return "begin"
	case opCommit:
		return "commit"
	case opRollback:
		return "rollback"
	}

	operation := strings.ToLower(strings.Fields(query)[0])
	switch operation {
	case "select", "insert", "update", "delete", "with", "listen", "unlisten", "notify":
		return operation
	default:
		return defaultOperation
	}
}

// normalizeDBVendor maps vendor names onto OpenTelemetry db.system.name values.
func normalizeDBVendor(vendor string) string {
	vendor = strings.ToLower(vendor)
	switch vendor {
	case "postgres", "pgx", dbVendorPostgreSQL:
		return dbVendorPostgreSQL
	case "mariadb", dbVendorMySQL:
		return dbVendorMySQL
	default:
		return vendor
	}
}
