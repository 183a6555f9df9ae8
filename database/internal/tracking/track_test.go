package tracking

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-sql/config"
	"github.com/gaborage/go-bricks-sql/logger"
)

func TestTrackDBOperationLogLevels(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		err     error
		level   string
		message string
	}{
		{name: "success", level: "debug", message: "Database operation executed"},
		{name: "no rows", err: sql.ErrNoRows, level: "debug", message: "Database operation returned no rows"},
		{name: "error", err: errors.New("connection refused"), level: "error", message: "Database operation error"},
		{name: "slow", elapsed: 300 * time.Millisecond, level: "warn", message: "Slow database operation detected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newBufferLogger()
			tc := &Context{Logger: log, Vendor: "postgresql", Settings: NewSettings(nil)}

			TrackDBOperation(context.Background(), tc, testQuerySelect, nil, time.Now().Add(-tt.elapsed), 0, tt.err)

			entries := logEntries(t, buf)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0]["level"])
			assert.True(t, strings.HasPrefix(entries[0]["message"].(string), tt.message))
			assert.Equal(t, "postgresql", entries[0]["vendor"])
			assert.Equal(t, testQuerySelect, entries[0]["query"])
		})
	}
}

func TestTrackDBOperationFields(t *testing.T) {
	log, buf := newBufferLogger()
	cfg := &config.DatabaseConfig{}
	cfg.Query.Log.Parameters = true
	cfg.Query.Log.MaxLength = 20
	tc := &Context{Logger: log, Vendor: "mysql", Settings: NewSettings(cfg), TxID: "tx-1"}

	TrackDBOperation(context.Background(), tc, "UPDATE users SET name = ? WHERE id = ?", []any{"a very long name value", 7}, time.Now(), 3, nil)

	entries := logEntries(t, buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "UPDATE users SET ...", entry["query"])
	assert.Equal(t, "tx-1", entry["tx_id"])
	assert.EqualValues(t, 3, entry["rows_affected"])
	assert.Equal(t, []any{"a very long name ...", "7"}, entry["args"])
}

func TestTrackDBOperationWithoutParameterLogging(t *testing.T) {
	log, buf := newBufferLogger()
	tc := &Context{Logger: log, Vendor: "postgresql", Settings: NewSettings(nil)}

	TrackDBOperation(context.Background(), tc, testQueryInsert, []any{"secret"}, time.Now(), 0, nil)

	entries := logEntries(t, buf)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0], "args")
	assert.NotContains(t, entries[0], "rows_affected")
	assert.NotContains(t, entries[0], "tx_id")
}

func TestTrackDBOperationNilSafety(t *testing.T) {
	assert.NotPanics(t, func() {
		TrackDBOperation(context.Background(), nil, testQuerySelect, nil, time.Now(), 0, nil)
		TrackDBOperation(context.Background(), &Context{}, testQuerySelect, nil, time.Now(), 0, nil)
		//nolint:staticcheck // nil context is handled
		TrackDBOperation(nil, &Context{Logger: logger.Nop()}, testQuerySelect, nil, time.Now(), 0, nil)
	})
}

func TestTrackDBOperationCountsQueries(t *testing.T) {
	ctx := logger.WithQueryCounter(context.Background())
	tc := &Context{Logger: logger.Nop(), Vendor: "postgresql", Settings: NewSettings(nil)}

	TrackDBOperation(ctx, tc, testQuerySelect, nil, time.Now().Add(-time.Millisecond), 0, nil)
	TrackDBOperation(ctx, tc, testQueryInsert, nil, time.Now().Add(-time.Millisecond), 1, nil)

	assert.EqualValues(t, 2, logger.QueryCount(ctx))
	assert.GreaterOrEqual(t, logger.QueryElapsed(ctx), int64(2*time.Millisecond))
}

func TestCreateDBSpan(t *testing.T) {
	exporter := setupTestTracerProvider(t)

	tc := &Context{
		Logger:        logger.Nop(),
		Vendor:        "postgres",
		Settings:      NewSettings(nil),
		ServerAddress: "db.internal",
		ServerPort:    5432,
		Namespace:     "app",
		TxID:          "tx-42",
	}
	start := time.Now().Add(-50 * time.Millisecond)
	createDBSpan(context.Background(), tc, `SELECT "users"."id" FROM "public"."users"`, start, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "db.select", span.Name)
	assert.Equal(t, trace.SpanKindClient, span.SpanKind)
	assert.Equal(t, codes.Unset, span.Status.Code)
	assert.Equal(t, start.UnixNano(), span.StartTime.UnixNano())

	attrs := make(map[attribute.Key]attribute.Value, len(span.Attributes))
	for _, kv := range span.Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "postgresql", attrs["db.system.name"].AsString())
	assert.Equal(t, "select", attrs["db.operation.name"].AsString())
	assert.Equal(t, "users", attrs["db.collection.name"].AsString())
	assert.Equal(t, "app", attrs["db.namespace"].AsString())
	assert.Equal(t, "db.internal", attrs["server.address"].AsString())
	assert.EqualValues(t, 5432, attrs["server.port"].AsInt64())
	assert.Equal(t, "tx-42", attrs["db.transaction.id"].AsString())
}

func TestCreateDBSpanErrors(t *testing.T) {
	exporter := setupTestTracerProvider(t)
	tc := &Context{Logger: logger.Nop(), Vendor: "mysql", Settings: NewSettings(nil)}

	createDBSpan(context.Background(), tc, testQuerySelect, time.Now(), errors.New("boom"))
	createDBSpan(context.Background(), tc, testQuerySelect, time.Now(), sql.ErrNoRows)
	createDBSpan(context.Background(), tc, "VACUUM", time.Now(), nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
	assert.Len(t, spans[0].Events, 1)
	assert.Equal(t, codes.Unset, spans[1].Status.Code)
	assert.Equal(t, "db.query", spans[2].Name)
	for _, kv := range spans[2].Attributes {
		assert.NotEqual(t, attribute.Key("db.operation.name"), kv.Key)
		assert.NotEqual(t, attribute.Key("db.collection.name"), kv.Key)
	}
}

func TestExtractDBOperation(t *testing.T) {
	tests := []struct {
		query    string
		expected string
	}{
		{"SELECT * FROM users", "select"},
		{"  insert into users values (1)", "insert"},
		{"UPDATE users SET name = 'x'", "update"},
		{"DELETE FROM users", "delete"},
		{"WITH t AS (SELECT 1) SELECT * FROM t", "with"},
		{"SELECT\n1", "select"},
		{"LISTEN \"orders\"", "listen"},
		{"BEGIN", "begin"},
		{"COMMIT", "commit"},
		{"ROLLBACK", "rollback"},
		{"VACUUM", "query"},
		{"", "query"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractDBOperation(tt.query))
		})
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", TruncateString("hello", 0))
	assert.Equal(t, "hello", TruncateString("hello", 5))
	assert.Equal(t, "he...", TruncateString("hello world", 5))
	assert.Equal(t, "hel", TruncateString("hello", 3))
	assert.Equal(t, "héll...", TruncateString("héllo wörld", 7))
}

func TestSanitizeArgs(t *testing.T) {
	assert.Nil(t, SanitizeArgs(nil, 10))
	got := SanitizeArgs([]any{"abcdefghijkl", []byte{1, 2, 3}, nil, 42, 3.5}, 10)
	assert.Equal(t, []any{"abcdefg...", "<bytes len=3>", nil, "42", "3.5"}, got)
}

func TestNormalizeDBVendor(t *testing.T) {
	assert.Equal(t, "postgresql", normalizeDBVendor("pgx"))
	assert.Equal(t, "postgresql", normalizeDBVendor("PostgreSQL"))
	assert.Equal(t, "mysql", normalizeDBVendor("mariadb"))
	assert.Equal(t, "sqlite", normalizeDBVendor("sqlite"))
}

func TestNewSettings(t *testing.T) {
	s := NewSettings(nil)
	assert.Equal(t, DefaultSlowQueryThreshold, s.SlowQueryThreshold())
	assert.Equal(t, DefaultMaxQueryLength, s.MaxQueryLength())
	assert.False(t, s.LogQueryParameters())

	cfg := &config.DatabaseConfig{}
	cfg.Query.Slow.Threshold = time.Second
	cfg.Query.Log.MaxLength = 50
	cfg.Query.Log.Parameters = true
	s = NewSettings(cfg)
	assert.Equal(t, time.Second, s.SlowQueryThreshold())
	assert.Equal(t, 50, s.MaxQueryLength())
	assert.True(t, s.LogQueryParameters())
}
