// Package postgresql opens PostgreSQL connections through the pgx database/sql driver
// and listens for notifications on dedicated pgx connections.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/gaborage/go-bricks-sql/config"
	"github.com/gaborage/go-bricks-sql/database/internal/sqldb"
	"github.com/gaborage/go-bricks-sql/database/types"
	"github.com/gaborage/go-bricks-sql/logger"
)

const defaultNotifyInterval = time.Second

// Connection is a pooled PostgreSQL connection. It keeps the parsed pgx configuration
// so listeners can open their own session.
type Connection struct {
	*sqldb.Connection
	connConfig     *pgx.ConnConfig
	notifyInterval time.Duration
	logger         logger.Logger
}

var openPostgresDB = func(cfg *pgx.ConnConfig) *sql.DB {
	return stdlib.OpenDB(*cfg)
}

// quoteDSN quotes a keyword/value DSN value according to libpq rules.
func quoteDSN(value string) string {
	if value == "" {
		return "''"
	}

	needsQuoting := strings.ContainsFunc(value, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') && r != '.' && r != '_' && r != '-'
	})
	if !needsQuoting {
		return value
	}

	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}

// BuildDSN returns the connection string override or a keyword/value DSN built from cfg.
func BuildDSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	parts := []string{
		"host=" + quoteDSN(cfg.Host),
		"user=" + quoteDSN(cfg.Username),
		"password=" + quoteDSN(cfg.Password),
		"dbname=" + quoteDSN(cfg.Database),
	}
	if cfg.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", cfg.Port))
	}
	if cfg.PostgreSQL.SSLMode != "" {
		parts = append(parts, "sslmode="+cfg.PostgreSQL.SSLMode)
	}
	return strings.Join(parts, " ")
}

// ParseConfig parses the DSN of cfg and applies the configured search_path.
func ParseConfig(cfg *config.DatabaseConfig) (*pgx.ConnConfig, error) {
	connConfig, err := pgx.ParseConfig(BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL config: %w", err)
	}
	if schema := cfg.PostgreSQL.Schema; schema != "" {
		if connConfig.RuntimeParams == nil {
			connConfig.RuntimeParams = map[string]string{}
		}
		connConfig.RuntimeParams["search_path"] = schema
	}
	return connConfig, nil
}

// NewConnection opens a pool, applies the pool settings and verifies it with a ping.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (*Connection, error) {
	connConfig, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sqldb.Open(openPostgresDB(connConfig), types.PostgreSQL, &cfg.Pool, log)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", connConfig.Host).
		Uint64("port", uint64(connConfig.Port)).
		Str("database", connConfig.Database).
		Msg("Connected to PostgreSQL database")

	interval := cfg.Notify.Interval
	if interval <= 0 {
		interval = defaultNotifyInterval
	}

	return &Connection{
		Connection:     conn,
		connConfig:     connConfig,
		notifyInterval: interval,
		logger:         log,
	}, nil
}

// ServerInfo returns the host, port and database the connection was opened against.
func (c *Connection) ServerInfo() (address string, port int, namespace string) {
	return c.connConfig.Host, int(c.connConfig.Port), c.connConfig.Database
}

// Listen opens a dedicated session, subscribes to channel and runs handler until it
// returns false or ctx is cancelled. The session is closed on return.
func (c *Connection) Listen(ctx context.Context, channel string, handler Handler) error {
	pgConn, err := pgx.ConnectConfig(ctx, c.connConfig)
	if err != nil {
		return fmt.Errorf("failed to open listener connection: %w", err)
	}

	listener := newListener(pgConn, channel, c.notifyInterval, c.logger)
	return listener.Run(ctx, handler)
}
