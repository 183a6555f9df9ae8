package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	dbMeterName = "go-bricks-sql/database"

	metricDBCalls      = "db.client.calls"
	metricDBDuration   = "db.client.operation.duration"
	metricRowsAffected = "db.rows.affected"

	metricPoolActive = "db.connection.pool.active"
	metricPoolIdle   = "db.connection.pool.idle"
	metricPoolTotal  = "db.connection.pool.total"

	attrDBTable     = "db.sql.table"
	attrDBOperation = "db.operation.name"
	attrDBSystem    = "db.system.name"

	unknownTable = "unknown"
)

// instruments holds the statement metrics of one meter.
type instruments struct {
	meter        metric.Meter
	calls        metric.Int64Counter
	duration     metric.Float64Histogram
	rowsAffected metric.Int64Counter
}

var (
	meterMu   sync.Mutex
	meterInst *instruments
)

// logMetricError reports instrument failures on stderr; metrics never fail a statement.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", metricName, err)
	}
}

// getInstruments lazily creates the instruments from the global meter provider.
func getInstruments() *instruments {
	meterMu.Lock()
	defer meterMu.Unlock()
	if meterInst != nil {
		return meterInst
	}

	meter := otel.Meter(dbMeterName)
	inst := &instruments{meter: meter}

	var err error
	inst.calls, err = meter.Int64Counter(metricDBCalls,
		metric.WithDescription("Total number of database client calls"))
	logMetricError(metricDBCalls, err)

	inst.duration, err = meter.Float64Histogram(metricDBDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"))
	logMetricError(metricDBDuration, err)

	inst.rowsAffected, err = meter.Int64Counter(metricRowsAffected,
		metric.WithDescription("Number of rows affected by database operations"))
	logMetricError(metricRowsAffected, err)

	meterInst = inst
	return inst
}

// resetInstruments drops the cached instruments so the next statement binds to the
// current global meter provider.
func resetInstruments() {
	meterMu.Lock()
	meterInst = nil
	meterMu.Unlock()
}

// recordDBMetrics records the call counter, the duration histogram and, for successful
// writes, the affected row count.
func recordDBMetrics(ctx context.Context, tc *Context, query string, duration time.Duration, rowsAffected int64, err error) {
	inst := getInstruments()

	isError := err != nil && !errors.Is(err, sql.ErrNoRows)
	attrs := []attribute.KeyValue{
		attribute.String(attrDBSystem, normalizeDBVendor(tc.Vendor)),
		attribute.String(attrDBOperation, extractDBOperation(query)),
		attribute.String(attrDBTable, extractTableName(query)),
	}

	if inst.calls != nil {
		callAttrs := append(append([]attribute.KeyValue(nil), attrs...), attribute.Bool("error", isError))
		inst.calls.Add(ctx, 1, metric.WithAttributes(callAttrs...))
	}
	if inst.duration != nil {
		inst.duration.Record(ctx, float64(duration.Nanoseconds())/1e6, metric.WithAttributes(attrs...))
	}
	if inst.rowsAffected != nil && rowsAffected > 0 && !isError {
		inst.rowsAffected.Add(ctx, rowsAffected, metric.WithAttributes(attrs...))
	}
}

// Table patterns accept double quoted, backtick quoted and schema qualified names and
// capture the unqualified table.
var (
	selectTableRegex = regexp.MustCompile("(?i)FROM\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
	insertTableRegex = regexp.MustCompile("(?i)^INSERT\\s+INTO\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
	updateTableRegex = regexp.MustCompile("(?i)^UPDATE\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
	deleteTableRegex = regexp.MustCompile("(?i)^DELETE\\s+FROM\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
)

// extractTableName returns the first table a statement touches, lowercased, or "unknown".
// It is a pattern match over the statement head, not a parser.
func extractTableName(query string) string {
	query = strings.TrimSpace(query)

	var pattern *regexp.Regexp
	switch extractDBOperation(query) {
	case "select", "with":
		pattern = selectTableRegex
	case "insert":
		pattern = insertTableRegex
	case "update":
		pattern = updateTableRegex
	case "delete":
		pattern = deleteTableRegex
	default:
		return unknownTable
	}

	if matches := pattern.FindStringSubmatch(query); len(matches) > 1 {
		return strings.ToLower(matches[1])
	}
	return unknownTable
}

// asInt64 converts the numeric kinds drivers put in Stats maps.
func asInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float64:
		return int64(val), true
	default:
		return 0, false
	}
}

// StatsProvider is the part of a connection pool metrics are read from.
type StatsProvider interface {
	Stats() (map[string]any, error)
}

// RegisterConnectionPoolMetrics registers gauges reporting the in_use, idle and
// max_open_connections entries of conn.Stats() whenever metrics are collected.
// The returned function unregisters them.
func RegisterConnectionPoolMetrics(conn StatsProvider, vendor string) func() {
	meter := getInstruments().meter
	attrs := metric.WithAttributes(attribute.String(attrDBSystem, normalizeDBVendor(vendor)))

	gauges := make(map[string]metric.Int64ObservableGauge, 3)
	observables := make([]metric.Observable, 0, 3)
	for _, g := range []struct{ name, statKey, description string }{
		{metricPoolActive, "in_use", "Number of active database connections"},
		{metricPoolIdle, "idle", "Number of idle database connections"},
		{metricPoolTotal, "max_open_connections", "Maximum number of database connections configured"},
	} {
		gauge, err := meter.Int64ObservableGauge(g.name, metric.WithDescription(g.description))
		if err != nil {
			logMetricError(g.name, err)
			continue
		}
		gauges[g.statKey] = gauge
		observables = append(observables, gauge)
	}
	if len(observables) == 0 {
		return func() {}
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		stats, statsErr := conn.Stats()
		if statsErr != nil {
			return nil
		}
		for key, gauge := range gauges {
			if v, ok := asInt64(stats[key]); ok {
				observer.ObserveInt64(gauge, v, attrs)
			}
		}
		return nil
	}, observables...)
	if err != nil {
		logMetricError("pool_metrics_callback", err)
		return func() {}
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			logMetricError("pool_metrics_unregister", err)
		}
	}
}
