package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Database type constants
const (
	PostgreSQL = "postgresql"
	MySQL      = "mysql"
)

// Config is the root configuration. The koanf instance it was loaded from stays
// reachable through the Get accessors for keys outside the typed sections.
type Config struct {
	Database DatabaseConfig `koanf:"database" json:"database" yaml:"database"`
	Log      LogConfig      `koanf:"log" json:"log" yaml:"log"`

	k *koanf.Koanf `json:"-" yaml:"-"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string `koanf:"type" json:"type" yaml:"type" validate:"omitempty,oneof=postgresql mysql"`
	Host     string `koanf:"host" json:"host" yaml:"host"`
	Port     int    `koanf:"port" json:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
	Database string `koanf:"database" json:"database" yaml:"database"`
	Username string `koanf:"username" json:"username" yaml:"username"`
	Password string `koanf:"password" json:"password" yaml:"password"`

	// ConnectionString overrides the discrete fields when set
	ConnectionString string `koanf:"connectionstring" json:"connectionstring" yaml:"connectionstring"`

	Pool   PoolConfig   `koanf:"pool" json:"pool" yaml:"pool"`
	Query  QueryConfig  `koanf:"query" json:"query" yaml:"query"`
	Notify NotifyConfig `koanf:"notify" json:"notify" yaml:"notify"`

	PostgreSQL PostgreSQLConfig `koanf:"postgresql" json:"postgresql" yaml:"postgresql"`
	MySQL      MySQLConfig      `koanf:"mysql" json:"mysql" yaml:"mysql"`
}

// PoolConfig holds connection pool settings.
//   - Max.Connections: 25
//   - Idle.Connections: 2
//   - Idle.Time: 5m
//   - Lifetime.Max: 30m
type PoolConfig struct {
	Max      PoolMaxConfig  `koanf:"max" json:"max" yaml:"max"`
	Idle     PoolIdleConfig `koanf:"idle" json:"idle" yaml:"idle"`
	Lifetime LifetimeConfig `koanf:"lifetime" json:"lifetime" yaml:"lifetime"`
}

// PoolMaxConfig holds maximum connections settings.
type PoolMaxConfig struct {
	Connections int32 `koanf:"connections" json:"connections" yaml:"connections" validate:"gte=0"`
}

// PoolIdleConfig holds idle connections settings.
type PoolIdleConfig struct {
	Connections int32 `koanf:"connections" json:"connections" yaml:"connections" validate:"gte=0"`
	// Time is how long an idle connection may stay unused before it is closed.
	Time time.Duration `koanf:"time" json:"time" yaml:"time" validate:"gte=0"`
}

// LifetimeConfig holds maximum lifetime settings for connections.
type LifetimeConfig struct {
	// Max is how long a connection may be reused. Zero means no limit.
	Max time.Duration `koanf:"max" json:"max" yaml:"max" validate:"gte=0"`
}

// QueryConfig holds settings related to query logging and slow query detection.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" json:"slow" yaml:"slow"`
	Log  QueryLogConfig  `koanf:"log" json:"log" yaml:"log"`
}

// SlowQueryConfig holds settings for slow query detection.
type SlowQueryConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" validate:"gte=0"`
}

// QueryLogConfig holds settings for query logging.
type QueryLogConfig struct {
	// Parameters enables logging of sanitized statement arguments
	Parameters bool `koanf:"parameters" json:"parameters" yaml:"parameters"`
	MaxLength  int  `koanf:"max" json:"max" yaml:"max" validate:"gte=0"`
}

// NotifyConfig holds settings for the notification listener.
type NotifyConfig struct {
	// Interval is the wait between polls for pending notifications
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"gte=0"`
}

// PostgreSQLConfig holds PostgreSQL-specific settings.
type PostgreSQLConfig struct {
	Schema  string `koanf:"schema" json:"schema" yaml:"schema"`
	SSLMode string `koanf:"sslmode" json:"sslmode" yaml:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// MySQLConfig holds MySQL-specific settings.
type MySQLConfig struct {
	// Params are extra DSN parameters such as charset or collation
	Params map[string]string `koanf:"params" json:"params" yaml:"params"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}
