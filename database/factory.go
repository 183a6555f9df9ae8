package database

import (
	"context"
	"fmt"
	"slices"

	"github.com/gaborage/go-bricks-sql/config"
	"github.com/gaborage/go-bricks-sql/database/internal/tracking"
	"github.com/gaborage/go-bricks-sql/database/mysql"
	"github.com/gaborage/go-bricks-sql/database/postgresql"
	"github.com/gaborage/go-bricks-sql/database/types"
	"github.com/gaborage/go-bricks-sql/logger"
)

// vendorConnection is a driver connection that knows the server it talks to.
type vendorConnection interface {
	types.Interface
	ServerInfo() (address string, port int, namespace string)
}

// Driver constructors, replaceable in tests.
var (
	connectPostgreSQL = func(cfg *config.DatabaseConfig, log logger.Logger) (vendorConnection, error) {
		return postgresql.NewConnection(cfg, log)
	}
	connectMySQL = func(cfg *config.DatabaseConfig, log logger.Logger) (vendorConnection, error) {
		return mysql.NewConnection(cfg, log)
	}
)

// trackedConnection owns the pool metrics registered for its connection.
type trackedConnection struct {
	*tracking.Connection
	unregisterMetrics func()
}

func (c *trackedConnection) Close() error {
	c.unregisterMetrics()
	return c.Connection.Close()
}

// NewConnection creates a new database connection according to cfg and returns it wrapped
// with performance tracking. The concrete driver is selected by cfg.Type (supported:
// "postgresql", "mysql"). If cfg.Type is unsupported an error is returned; if the chosen
// driver fails to initialize, that underlying error is returned.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (Interface, error) {
	var conn vendorConnection
	var err error

	switch cfg.Type {
	case PostgreSQL:
		conn, err = connectPostgreSQL(cfg, log)
	case MySQL:
		conn, err = connectMySQL(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: postgresql, mysql)", cfg.Type)
	}

	if err != nil {
		return nil, err
	}

	tracked := tracking.NewConnection(conn, log, cfg)
	tracked.SetServerInfo(conn.ServerInfo())

	return &trackedConnection{
		Connection:        tracked,
		unregisterMetrics: tracking.RegisterConnectionPoolMetrics(conn, cfg.Type),
	}, nil
}

// listenerConnection is implemented by connections supporting LISTEN/NOTIFY.
type listenerConnection interface {
	Listen(ctx context.Context, channel string, handler postgresql.Handler) error
}

// Listen subscribes to a notification channel on conn and runs handler until it returns
// false or ctx is cancelled. Only PostgreSQL connections support notifications.
func Listen(ctx context.Context, conn Interface, channel string, handler postgresql.Handler) error {
	for {
		if l, ok := conn.(listenerConnection); ok {
			return l.Listen(ctx, channel, handler)
		}
		u, ok := conn.(interface{ Unwrap() types.Interface })
		if !ok {
			return fmt.Errorf("%w: notifications on %s", types.ErrUnsupportedByDialect, conn.DatabaseType())
		}
		conn = u.Unwrap()
	}
}

// ValidateDatabaseType returns nil if dbType is one of the supported database types.
// If dbType is not supported, it returns an error describing the invalid value and listing the supported types.
func ValidateDatabaseType(dbType string) error {
	supportedTypes := GetSupportedDatabaseTypes()
	if !slices.Contains(supportedTypes, dbType) {
		return fmt.Errorf("unsupported database type: %s (supported: %v)", dbType, supportedTypes)
	}
	return nil
}

// GetSupportedDatabaseTypes returns a list of supported database types
func GetSupportedDatabaseTypes() []string {
	return []string{PostgreSQL, MySQL}
}
