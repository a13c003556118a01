package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/feedbackbot/core/logger"
)

// Connect opens the SQL database, configures the pool, and verifies connectivity.
func Connect(cfg Config) (*sqlx.DB, error) {
	if !cfg.SQL() {
		return nil, fmt.Errorf("db connect: driver %q is not an SQL driver", cfg.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	attrs := []slog.Attr{slog.String("driver", cfg.Driver)}
	if cfg.Driver == DriverSQLite {
		attrs = append(attrs, slog.String("db", cfg.Path))
	} else {
		attrs = append(attrs,
			slog.String("host", cfg.Host),
			slog.String("port", cfg.Port),
			slog.String("db", cfg.Name),
		)
	}

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.Error(ctx, logger.CompDB, "db.connect",
			append(attrs, slog.Duration("duration", took), slog.String("err", err.Error()))...,
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	open := cfg.MaxConnections
	if cfg.Driver == DriverSQLite {
		// sqlite allows a single writer; one connection keeps every statement serialized.
		open = 1
	}
	db.SetMaxOpenConns(open)
	db.SetMaxIdleConns(open)

	logger.Info(ctx, logger.CompDB, "db.connect",
		append(attrs,
			slog.Int("pool_open", open),
			slog.Duration("duration", took),
		)...,
	)
	return db, nil
}

// WaitForPostgres polls the server until it answers a ping or timeout elapses.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-ticker.C:
		}
	}
}
