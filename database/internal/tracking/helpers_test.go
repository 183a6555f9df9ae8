package tracking

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gaborage/go-bricks-sql/config"
	"github.com/gaborage/go-bricks-sql/database/internal/sqldb"
	"github.com/gaborage/go-bricks-sql/logger"
)

const (
	testQuerySelect = "SELECT id, name FROM users WHERE id = $1"
	testQueryInsert = "INSERT INTO users (name) VALUES ($1)"
)

// setupTestTracerProvider installs an in-memory tracer provider for the test.
func setupTestTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	original := otel.GetTracerProvider()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Failed to shutdown test tracer provider: %v", err)
		}
		otel.SetTracerProvider(original)
	})
	return exporter
}

// setupTestMeterProvider installs a meter provider with a manual reader and rebinds the
// cached instruments to it.
func setupTestMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	original := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	resetInstruments()

	t.Cleanup(func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			t.Logf("Failed to shutdown test meter provider: %v", err)
		}
		otel.SetMeterProvider(original)
		resetInstruments()
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// newBufferLogger returns a debug logger writing JSON lines into a buffer.
func newBufferLogger() (logger.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return logger.NewWithWriter(buf, "debug", nil), buf
}

func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	return entries
}

// newMockTrackedConnection wraps a sqlmock backed connection.
func newMockTrackedConnection(t *testing.T, log logger.Logger, cfg *config.DatabaseConfig) (*Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewConnection(sqldb.New(db, "postgresql", logger.Nop()), log, cfg), mock
}
