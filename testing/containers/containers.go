// Package containers gives integration tests an isolated PostgreSQL schema.
//
// It connects to an already running server, normally the one started by
// docker-compose.test.yml, and skips the test when none is reachable.
package containers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// EnvDatabaseURL overrides every other connection setting.
const EnvDatabaseURL = "TEST_DATABASE_URL"

// Postgres describes how to reach the test server.
type Postgres struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string

	url string
}

// Option configures Postgres.
type Option func(*Postgres)

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(p *Postgres) { p.Database = name }
}

// WithPort sets the host port.
func WithPort(port string) Option {
	return func(p *Postgres) { p.Port = port }
}

// WithURL sets a complete connection URL.
func WithURL(url string) Option {
	return func(p *Postgres) { p.url = url }
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// FromEnv reads POSTGRES_* settings, falling back to the defaults of
// docker-compose.test.yml.
func FromEnv(opts ...Option) *Postgres {
	p := &Postgres{
		Host:     env("POSTGRES_HOST", "localhost"),
		Port:     env("POSTGRES_PORT", "5432"),
		Database: env("POSTGRES_DB", "cartflow_test"),
		User:     env("POSTGRES_USER", "postgres"),
		Password: env("POSTGRES_PASSWORD", "postgres"),
		url:      os.Getenv(EnvDatabaseURL),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConnectionString returns the connection URL.
func (p *Postgres) ConnectionString() string {
	if p.url != "" {
		return p.url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Database)
}

// Open connects and pings, retrying until ctx is done.
func (p *Postgres) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", p.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("containers: failed to open connection: %w", err)
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err = db.PingContext(ctx); err == nil {
			return db, nil
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("containers: database not ready: %w", err)
		case <-ticker.C:
		}
	}
}

var schemaSeq atomic.Int64

// SchemaName returns a schema name unique to this process.
func SchemaName(prefix string) string {
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), schemaSeq.Add(1))
}

// QuoteIdentifier quotes a PostgreSQL identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Schema is a database connection plus a schema that is dropped when the
// test ends.
type Schema struct {
	DB   *sql.DB
	Name string
}

// NewSchema connects to the test server and creates a fresh schema.
// The test is skipped in short mode, when EnvDatabaseURL is unset and
// POSTGRES_HOST is unset, or when the server does not answer in time.
func NewSchema(t testing.TB, prefix string, opts ...Option) *Schema {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv(EnvDatabaseURL) == "" && os.Getenv("POSTGRES_HOST") == "" {
		t.Skipf("%s not set, skipping integration test", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := FromEnv(opts...).Open(ctx)
	if err != nil {
		t.Skipf("PostgreSQL not available (run docker-compose -f docker-compose.test.yml up -d): %v", err)
	}

	name := SchemaName(prefix)
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA "+QuoteIdentifier(name)); err != nil {
		_ = db.Close()
		t.Fatalf("containers: failed to create schema %s: %v", name, err)
	}

	t.Cleanup(func() {
		if _, err := db.Exec("DROP SCHEMA IF EXISTS " + QuoteIdentifier(name) + " CASCADE"); err != nil {
			t.Logf("containers: failed to drop schema %s: %v", name, err)
		}
		_ = db.Close()
	})

	return &Schema{DB: db, Name: name}
}
