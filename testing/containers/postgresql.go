//go:build integration

package containers

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-bricks-sql/config"
)

// PostgreSQLOptions configures the PostgreSQL test server
type PostgreSQLOptions struct {
	// ImageTag of the postgres image (default: "17-alpine")
	ImageTag string
	Username string
	Password string
	Database string
	// StartupTimeout bounds the wait for the server to accept connections (default: 60s)
	StartupTimeout time.Duration
}

// DefaultPostgreSQLOptions returns the options used when none are given.
func DefaultPostgreSQLOptions() *PostgreSQLOptions {
	return &PostgreSQLOptions{
		ImageTag:       "17-alpine",
		Username:       "testuser",
		Password:       "testpass",
		Database:       "testdb",
		StartupTimeout: 60 * time.Second,
	}
}

// PostgreSQL is a running PostgreSQL server owned by a test.
type PostgreSQL struct {
	container *postgres.PostgresContainer
	opts      *PostgreSQLOptions
	host      string
	port      int
}

// StartPostgreSQL starts a server and terminates it when t finishes. The test is skipped
// when Docker is unavailable and failed when the server does not come up.
func StartPostgreSQL(ctx context.Context, t *testing.T, opts *PostgreSQLOptions) *PostgreSQL {
	t.Helper()

	if opts == nil {
		opts = DefaultPostgreSQLOptions()
	}
	if !dockerAvailable(ctx) {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctr, err := postgres.Run(ctx,
		"postgres:"+opts.ImageTag,
		postgres.WithDatabase(opts.Database),
		postgres.WithUsername(opts.Username),
		postgres.WithPassword(opts.Password),
		testcontainers.WithWaitStrategy(
			// the server restarts once after running its init scripts
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(opts.StartupTimeout),
		),
	)
	if ctr != nil {
		t.Cleanup(func() {
			if termErr := ctr.Terminate(context.Background()); termErr != nil {
				t.Logf("Failed to terminate PostgreSQL container: %v", termErr)
			}
		})
	}
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	pg := &PostgreSQL{container: ctr, opts: opts}
	if pg.host, err = ctr.Host(ctx); err != nil {
		t.Fatalf("Failed to resolve PostgreSQL host: %v", err)
	}
	mapped, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("Failed to resolve PostgreSQL port: %v", err)
	}
	pg.port = mapped.Int()

	if dsn, dsnErr := ctr.ConnectionString(ctx, "sslmode=disable"); dsnErr == nil {
		t.Logf("PostgreSQL container started at %s", redactPassword(dsn))
	}
	return pg
}

// Config returns a database configuration pointing at the server.
func (p *PostgreSQL) Config() *config.DatabaseConfig {
	cfg := &config.DatabaseConfig{
		Type:     config.PostgreSQL,
		Host:     p.host,
		Port:     p.port,
		Database: p.opts.Database,
		Username: p.opts.Username,
		Password: p.opts.Password,
	}
	cfg.PostgreSQL.SSLMode = "disable"
	return cfg
}


// redactPassword masks the password of a URL style connection string.
func redactPassword(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "postgres://****@<host>"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
