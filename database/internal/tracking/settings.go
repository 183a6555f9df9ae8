// Package tracking wraps connections and transactions with statement logging,
// slow query detection, OpenTelemetry spans and metrics.
package tracking

import (
	"time"

	"github.com/gaborage/go-bricks-sql/config"
	"github.com/gaborage/go-bricks-sql/logger"
)

const (
	// DefaultSlowQueryThreshold defines the default threshold for slow query detection
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	// DefaultMaxQueryLength defines the default maximum query length for logging
	DefaultMaxQueryLength = 1000
)

// Settings controls how statements are logged.
type Settings struct {
	slowQueryThreshold time.Duration
	maxQueryLength     int
	logQueryParameters bool
}

// Context groups what TrackDBOperation needs about the connection a statement ran on.
type Context struct {
	Logger   logger.Logger
	Vendor   string
	Settings Settings

	// Server metadata for span attributes; empty values are omitted.
	ServerAddress string
	ServerPort    int
	Namespace     string

	// TxID correlates the statements of one transaction in logs and spans.
	TxID string
}

// NewSettings creates Settings from cfg. Non-positive values fall back to the defaults.
func NewSettings(cfg *config.DatabaseConfig) Settings {
	settings := Settings{
		slowQueryThreshold: DefaultSlowQueryThreshold,
		maxQueryLength:     DefaultMaxQueryLength,
	}
	if cfg == nil {
		return settings
	}

	if cfg.Query.Slow.Threshold > 0 {
		settings.slowQueryThreshold = cfg.Query.Slow.Threshold
	}
	if cfg.Query.Log.MaxLength > 0 {
		settings.maxQueryLength = cfg.Query.Log.MaxLength
	}
	settings.logQueryParameters = cfg.Query.Log.Parameters

	return settings
}

// SlowQueryThreshold returns the threshold for slow query detection
func (s Settings) SlowQueryThreshold() time.Duration {
	return s.slowQueryThreshold
}

// MaxQueryLength returns the maximum query length for logging
func (s Settings) MaxQueryLength() int {
	return s.maxQueryLength
}

// LogQueryParameters returns whether query parameters should be logged
func (s Settings) LogQueryParameters() bool {
	return s.logQueryParameters
}
