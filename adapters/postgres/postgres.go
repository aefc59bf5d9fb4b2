// Package postgres provides a PostgreSQL event store adapter.
//
// The adapter talks to PostgreSQL through database/sql. The default driver is
// pgx's stdlib driver ("pgx"); lib/pq ("postgres") can be selected with
// WithDriver. Optimistic concurrency is enforced twice: the stream row is
// locked with SELECT ... FOR UPDATE while the revision is compared, and
// UNIQUE(stream_id, revision) turns any race that slips past the lock (two
// creators of the same stream) into a concurrency conflict.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/eventdriven/cartflow/adapters"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

const (
	// DriverPgx selects the pgx stdlib driver.
	DriverPgx = "pgx"
	// DriverPQ selects the lib/pq driver.
	DriverPQ = "postgres"

	// DefaultSchema is the schema used when none is configured.
	DefaultSchema = "cartflow"

	uniqueViolation = "23505"
)

var schemaPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Ensure PostgresAdapter implements the adapter interfaces.
var (
	_ adapters.EventStoreAdapter = (*PostgresAdapter)(nil)
	_ adapters.HealthChecker     = (*PostgresAdapter)(nil)
)

// PostgresAdapter stores streams in two tables: streams (one row per stream
// holding its current revision) and events.
type PostgresAdapter struct {
	db     *sql.DB
	schema string
	closed bool
}

type config struct {
	driver          string
	schema          string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

// Option configures a PostgresAdapter.
type Option func(*config)

// WithDriver selects the database/sql driver name (DriverPgx or DriverPQ).
func WithDriver(driver string) Option {
	return func(c *config) {
		c.driver = driver
	}
}

// WithSchema sets the database schema name.
func WithSchema(schema string) Option {
	return func(c *config) {
		c.schema = schema
	}
}

// WithMaxConnections sets the maximum number of open connections.
func WithMaxConnections(n int) Option {
	return func(c *config) {
		c.maxOpenConns = n
	}
}

// WithMaxIdleConnections sets the maximum number of idle connections.
func WithMaxIdleConnections(n int) Option {
	return func(c *config) {
		c.maxIdleConns = n
	}
}

// WithConnectionMaxLifetime sets the maximum connection lifetime.
func WithConnectionMaxLifetime(d time.Duration) Option {
	return func(c *config) {
		c.connMaxLifetime = d
	}
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{driver: DriverPgx, schema: DefaultSchema}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.driver != DriverPgx && cfg.driver != DriverPQ {
		return nil, fmt.Errorf("cartflow/postgres: unsupported driver %q", cfg.driver)
	}
	if !schemaPattern.MatchString(cfg.schema) {
		return nil, fmt.Errorf("cartflow/postgres: invalid schema name %q", cfg.schema)
	}
	return cfg, nil
}

// NewAdapter opens a connection pool for connStr.
func NewAdapter(connStr string, opts ...Option) (*PostgresAdapter, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("cartflow/postgres: failed to open database: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	return &PostgresAdapter{db: db, schema: cfg.schema}, nil
}

// NewAdapterWithDB wraps an existing connection pool.
func NewAdapterWithDB(db *sql.DB, opts ...Option) (*PostgresAdapter, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return &PostgresAdapter{db: db, schema: cfg.schema}, nil
}

func (a *PostgresAdapter) table(name string) string {
	return pgx.Identifier{a.schema, name}.Sanitize()
}

// Initialize creates the schema and tables.
func (a *PostgresAdapter) Initialize(ctx context.Context) error {
	return a.Migrate(ctx)
}

// Migrate creates the schema, tables and indexes if they do not exist yet.
func (a *PostgresAdapter) Migrate(ctx context.Context) error {
	if a.closed {
		return adapters.ErrAdapterClosed
	}

	statements := []struct {
		what string
		sql  string
	}{
		{"schema", fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{a.schema}.Sanitize())},
		{"streams table", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				stream_id   VARCHAR(500) PRIMARY KEY,
				category    VARCHAR(250) NOT NULL,
				revision    BIGINT NOT NULL,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, a.table("streams"))},
		{"events table", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				global_position BIGSERIAL PRIMARY KEY,
				stream_id       VARCHAR(500) NOT NULL,
				revision        BIGINT NOT NULL,
				event_id        UUID NOT NULL DEFAULT gen_random_uuid(),
				event_type      VARCHAR(500) NOT NULL,
				data            BYTEA NOT NULL,
				metadata        JSONB,
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (stream_id, revision)
			)`, a.table("events"))},
		{"category index", fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_streams_category ON %s (category)`, a.table("streams"))},
		{"event type index", fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_events_type ON %s (event_type)`, a.table("events"))},
	}

	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt.sql); err != nil {
			return fmt.Errorf("cartflow/postgres: failed to create %s: %w", stmt.what, err)
		}
	}
	return nil
}

// Append stores events with optimistic concurrency control.
func (a *PostgresAdapter) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedRevision int64) ([]adapters.StoredEvent, error) {
	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}
	if len(events) == 0 {
		return nil, adapters.ErrNoEvents
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("cartflow/postgres: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current := adapters.NoStream
	exists := true
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT revision FROM %s
		WHERE stream_id = $1
		FOR UPDATE`, a.table("streams")), streamID).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists = false
		current = adapters.NoStream
	case err != nil:
		return nil, fmt.Errorf("cartflow/postgres: failed to read stream revision: %w", err)
	}

	if err := adapters.CheckRevision(streamID, expectedRevision, current, exists); err != nil {
		return nil, err
	}

	if !exists {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (stream_id, category, revision)
			VALUES ($1, $2, $3)`, a.table("streams")),
			streamID, adapters.ExtractCategory(streamID), adapters.NoStream)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, adapters.NewConcurrencyError(streamID, expectedRevision, adapters.NoStream)
			}
			return nil, fmt.Errorf("cartflow/postgres: failed to create stream: %w", err)
		}
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (stream_id, revision, event_type, data, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING global_position, event_id, created_at`, a.table("events"))

	stored := make([]adapters.StoredEvent, len(events))
	for i, event := range events {
		current++

		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return nil, fmt.Errorf("cartflow/postgres: failed to marshal metadata: %w", err)
		}

		ev := adapters.StoredEvent{
			StreamID: streamID,
			Type:     event.Type,
			Data:     event.Data,
			Metadata: event.Metadata,
			Revision: current,
		}
		var position int64
		err = tx.QueryRowContext(ctx, insert, streamID, current, event.Type, event.Data, metadataJSON).
			Scan(&position, &ev.ID, &ev.Timestamp)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, adapters.NewConcurrencyError(streamID, expectedRevision, current-1)
			}
			return nil, fmt.Errorf("cartflow/postgres: failed to insert event: %w", err)
		}
		ev.GlobalPosition = uint64(position)
		stored[i] = ev
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET revision = $1, updated_at = NOW()
		WHERE stream_id = $2`, a.table("streams")), current, streamID)
	if err != nil {
		return nil, fmt.Errorf("cartflow/postgres: failed to update stream revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, adapters.NewConcurrencyError(streamID, expectedRevision, adapters.NoStream)
		}
		return nil, fmt.Errorf("cartflow/postgres: failed to commit transaction: %w", err)
	}

	return stored, nil
}

// Load returns the events of a stream starting at fromRevision.
func (a *PostgresAdapter) Load(ctx context.Context, streamID string, fromRevision int64) ([]adapters.StoredEvent, error) {
	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}
	if streamID == "" {
		return nil, adapters.ErrEmptyStreamID
	}

	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT global_position, event_id, stream_id, revision, event_type, data, metadata, created_at
		FROM %s
		WHERE stream_id = $1 AND revision >= $2
		ORDER BY revision`, a.table("events")), streamID, fromRevision)
	if err != nil {
		return nil, fmt.Errorf("cartflow/postgres: failed to load events: %w", err)
	}
	defer rows.Close()

	events := make([]adapters.StoredEvent, 0)
	for rows.Next() {
		var (
			ev           adapters.StoredEvent
			position     int64
			metadataJSON []byte
		)
		if err := rows.Scan(&position, &ev.ID, &ev.StreamID, &ev.Revision, &ev.Type, &ev.Data, &metadataJSON, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("cartflow/postgres: failed to scan event: %w", err)
		}
		ev.GlobalPosition = uint64(position)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("cartflow/postgres: failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cartflow/postgres: error iterating events: %w", err)
	}
	return events, nil
}

// GetStreamInfo returns metadata about a stream.
func (a *PostgresAdapter) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	if a.closed {
		return nil, adapters.ErrAdapterClosed
	}

	var info adapters.StreamInfo
	err := a.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT stream_id, category, revision, created_at, updated_at
		FROM %s
		WHERE stream_id = $1`, a.table("streams")), streamID).Scan(
		&info.StreamID, &info.Category, &info.Revision, &info.CreatedAt, &info.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, adapters.NewStreamNotFoundError(streamID)
	}
	if err != nil {
		return nil, fmt.Errorf("cartflow/postgres: failed to get stream info: %w", err)
	}
	info.EventCount = info.Revision + 1

	return &info, nil
}

// GetLastPosition returns the global position of the last stored event.
func (a *PostgresAdapter) GetLastPosition(ctx context.Context) (uint64, error) {
	if a.closed {
		return 0, adapters.ErrAdapterClosed
	}

	var pos sql.NullInt64
	err := a.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT MAX(global_position) FROM %s`, a.table("events"))).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("cartflow/postgres: failed to get last position: %w", err)
	}
	if pos.Valid {
		return uint64(pos.Int64), nil
	}
	return 0, nil
}

// Ping checks database connectivity.
func (a *PostgresAdapter) Ping(ctx context.Context) error {
	if a.closed {
		return adapters.ErrAdapterClosed
	}
	return a.db.PingContext(ctx)
}

// Close releases the connection pool.
func (a *PostgresAdapter) Close() error {
	a.closed = true
	return a.db.Close()
}

// DB returns the underlying connection pool.
func (a *PostgresAdapter) DB() *sql.DB {
	return a.db
}

// Schema returns the schema name.
func (a *PostgresAdapter) Schema() string {
	return a.schema
}

// isUniqueViolation recognizes unique-constraint failures from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
