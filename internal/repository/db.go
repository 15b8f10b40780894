package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB wraps the *sql.DB plus the pgx pool when one backs it. Postgres DSNs go
// through pgxpool; anything else is treated as a sqlite path, which keeps the
// single-binary deployment working without a database server.
type DB struct {
	SQL  *sql.DB
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Open connects according to the DSN's scheme and applies the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "dsn", cfg.DSN)

	var (
		db   *sql.DB
		pool *pgxpool.Pool
	)
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("failed to parse database config", "error", err)
			return nil, err
		}
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		if cfg.MinConns > 0 {
			pc.MinConns = cfg.MinConns
		}
		if cfg.MaxConnLifetime > 0 {
			pc.MaxConnLifetime = cfg.MaxConnLifetime
		}
		if cfg.MaxConnIdleTime > 0 {
			pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "verifactura"
		if cfg.StatementTimeout > 0 {
			pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
		}

		dialCtx := ctx
		if cfg.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
			defer cancel()
		}
		pool, err = pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return nil, err
		}
		db = stdlib.OpenDBFromPool(pool)
	} else {
		var err error
		db, err = sql.Open("sqlite", cfg.DSN)
		if err != nil {
			logger.Error("failed to open sqlite database", "error", err)
			return nil, err
		}
		// sqlite tolerates exactly one writer
		db.SetMaxOpenConns(1)
	}

	d := &DB{SQL: db, pool: pool, log: logger}
	if err := d.migrate(ctx); err != nil {
		d.Close()
		return nil, err
	}
	logger.Info("successfully connected to database")
	return d, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	text_origin    TEXT NOT NULL DEFAULT '',
	fields_json    TEXT,
	raw_text       TEXT,
	warnings_json  TEXT,
	category       TEXT,
	probs_json     TEXT,
	attempts_json  TEXT,
	error_message  TEXT,
	created_at     TIMESTAMP NOT NULL,
	started_at     TIMESTAMP,
	finished_at    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_status ON extraction_jobs (status);
`

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaDDL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			d.log.Error("schema migration failed", "error", err)
			return err
		}
	}
	return nil
}

// Close closes the database connections gracefully.
func (d *DB) Close() {
	d.log.Info("closing database connections")
	if d.SQL != nil {
		if err := d.SQL.Close(); err != nil {
			d.log.Error("failed to close database", "error", err)
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
	d.log.Info("database connections closed")
}

// HealthCheck pings to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.SQL.PingContext(ctx)
}
