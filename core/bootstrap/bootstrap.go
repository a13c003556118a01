package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/feedbackbot/core/config"
	coredatabase "github.com/m3rciful/feedbackbot/core/database"
	"github.com/m3rciful/feedbackbot/core/logger"
)

// Options control the bootstrap pipeline.
type Options[T any] struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Modules  Modules[T]

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result[T any] struct {
	DB       *sqlx.DB
	Services T
}

// Close releases the SQL connection, if one was opened.
func (r *Result[T]) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger, connects to the database, applies migrations,
// builds the services and runs the seeders, in that order.
func Run[T any](ctx context.Context, opts Options[T]) (*Result[T], error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result[T]{}
	if opts.Database.SQL() {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(opts.Database); err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	if opts.Modules.Services != nil {
		svc, err := opts.Modules.Services.Provide(ctx, res.DB)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: services: %w", err)
		}
		res.Services = svc
	}

	for i, seeder := range opts.Modules.Seeders {
		start := time.Now()
		if err := seeder.Seed(ctx, res.Services); err != nil {
			logger.Error(ctx, logger.CompSeed, "seed",
				slog.Int("seeder", i),
				slog.String("err", err.Error()),
			)
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: seeder %d: %w", i, err)
		}
		logger.Debug(ctx, logger.CompSeed, "seed",
			slog.String("status", "ok"),
			slog.Int("seeder", i),
			slog.Duration("duration", logger.Took(start)),
		)
	}

	return res, nil
}
