// Package postgres persists records into a PostgreSQL table keyed by (time, url).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/lib/pq"

	"github.com/telepair/webcheck/internal/record"
	"github.com/telepair/webcheck/pkg/logger"
)

const (
	// DefaultTable is the table records are written to.
	DefaultTable   = "webcheck"
	defaultTimeout = 10 * time.Second

	uniqueViolation = pq.ErrorCode("23505")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Config describes the database connection.
type Config struct {
	DSN     string
	Table   string
	Timeout time.Duration
}

// Writer inserts records. Repeated (time, url) pairs are logged and skipped.
type Writer struct {
	db      *sql.DB
	table   string
	timeout time.Duration
	log     *slog.Logger
}

// Open connects to the database, checks connectivity and returns a writer
// that owns the connection pool.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Writer, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	w, err := New(db, cfg.Table, cfg.Timeout, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := w.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// New wraps an existing pool. Zero table and timeout select the defaults.
func New(db *sql.DB, table string, timeout time.Duration, log *slog.Logger) (*Writer, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Writer{db: db, table: table, timeout: timeout, log: logger.Component(log, "postgres")}, nil
}

func (w *Writer) Name() string { return "postgres" }

// Table is the unquoted table name.
func (w *Writer) Table() string { return w.table }

func (w *Writer) ident() string { return pq.QuoteIdentifier(w.table) }

// Write inserts rec and returns the number of rows added. A duplicate key is
// not an error: it returns 0 and logs a warning.
func (w *Writer) Write(ctx context.Context, rec record.Record) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	q := "INSERT INTO " + w.ident() +
		" (time, url, status, response_time, regex_matched) VALUES (to_timestamp($1), $2, $3, $4, $5)" +
		" ON CONFLICT (time, url) DO NOTHING"
	var matched sql.NullBool
	if rec.RegexMatched != nil {
		matched = sql.NullBool{Bool: *rec.RegexMatched, Valid: true}
	}

	res, err := w.db.ExecContext(ctx, q, rec.Time, rec.URL, rec.Status, rec.ResponseTime, matched)
	if err != nil {
		if isUniqueViolation(err) {
			w.logDuplicate(rec)
			return 0, nil
		}
		return 0, fmt.Errorf("insert %s: %w", rec.URL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		w.logDuplicate(rec)
	}
	return int(n), nil
}

func (w *Writer) logDuplicate(rec record.Record) {
	w.log.Warn("duplicate record ignored", "time", rec.Time, "url", rec.URL)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Ping checks that the database answers.
func (w *Writer) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Version returns the server version string.
func (w *Writer) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	var v string
	if err := w.db.QueryRowContext(ctx, "SELECT version()").Scan(&v); err != nil {
		return "", fmt.Errorf("query version: %w", err)
	}
	return v, nil
}

// CreateTable creates the table when it does not exist.
func (w *Writer) CreateTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	q := "CREATE TABLE IF NOT EXISTS " + w.ident() + ` (
	time          TIMESTAMPTZ NOT NULL,
	url           VARCHAR     NOT NULL,
	status        SMALLINT,
	response_time REAL,
	regex_matched BOOL,
	PRIMARY KEY (time, url)
)`
	if _, err := w.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", w.table, err)
	}
	w.log.Info("table ready", "table", w.table)
	return nil
}

// DropTable removes the table and its data.
func (w *Writer) DropTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if _, err := w.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+w.ident()); err != nil {
		return fmt.Errorf("drop table %s: %w", w.table, err)
	}
	w.log.Info("table dropped", "table", w.table)
	return nil
}

// Close releases the connection pool.
func (w *Writer) Close() error {
	return w.db.Close()
}
