// Package mysql opens MySQL connections through go-sql-driver/mysql.
package mysql

import (
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/gaborage/go-bricks-sql/config"
	"github.com/gaborage/go-bricks-sql/database/internal/sqldb"
	"github.com/gaborage/go-bricks-sql/database/types"
	"github.com/gaborage/go-bricks-sql/logger"
)

const defaultPort = 3306

// Connection is a pooled MySQL connection.
type Connection struct {
	*sqldb.Connection
	driverConfig *mysql.Config
}

var openMySQLDB = func(cfg *mysql.Config) (*sql.DB, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// DriverConfig builds the driver configuration from cfg. The connection string, when
// set, is parsed as a go-sql-driver DSN. Matched rather than changed rows are always
// reported as affected so an UPDATE that writes identical values still counts its rows.
func DriverConfig(cfg *config.DatabaseConfig) (*mysql.Config, error) {
	var driverConfig *mysql.Config
	if cfg.ConnectionString != "" {
		parsed, err := mysql.ParseDSN(cfg.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse MySQL DSN: %w", err)
		}
		driverConfig = parsed
	} else {
		port := cfg.Port
		if port <= 0 {
			port = defaultPort
		}
		driverConfig = mysql.NewConfig()
		driverConfig.Net = "tcp"
		driverConfig.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		driverConfig.User = cfg.Username
		driverConfig.Passwd = cfg.Password
		driverConfig.DBName = cfg.Database
	}

	driverConfig.ClientFoundRows = true
	driverConfig.ParseTime = true
	if len(cfg.MySQL.Params) > 0 {
		if driverConfig.Params == nil {
			driverConfig.Params = make(map[string]string, len(cfg.MySQL.Params))
		}
		for k, v := range cfg.MySQL.Params {
			driverConfig.Params[k] = v
		}
	}
	return driverConfig, nil
}

// NewConnection opens a pool, applies the pool settings and verifies it with a ping.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (*Connection, error) {
	driverConfig, err := DriverConfig(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openMySQLDB(driverConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	conn, err := sqldb.Open(db, types.MySQL, &cfg.Pool, log)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("address", driverConfig.Addr).
		Str("database", driverConfig.DBName).
		Msg("Connected to MySQL database")

	return &Connection{Connection: conn, driverConfig: driverConfig}, nil
}

// ServerInfo returns the host, port and database the connection was opened against.
func (c *Connection) ServerInfo() (address string, port int, namespace string) {
	host, portText, err := net.SplitHostPort(c.driverConfig.Addr)
	if err != nil {
		return c.driverConfig.Addr, 0, c.driverConfig.DBName
	}
	port, _ = strconv.Atoi(portText)
	return host, port, c.driverConfig.DBName
}
