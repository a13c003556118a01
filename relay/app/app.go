// Package app assembles the relay: storage, engine, Telegram transport and
// the optional audit API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/feedbackbot/core/bootstrap"
	"github.com/m3rciful/feedbackbot/core/logger"
	coretelegram "github.com/m3rciful/feedbackbot/core/telegram"
	tgsender "github.com/m3rciful/feedbackbot/core/telegram/sender"
	"github.com/m3rciful/feedbackbot/relay/audit"
	"github.com/m3rciful/feedbackbot/relay/dialog"
	"github.com/m3rciful/feedbackbot/relay/engine"
	"github.com/m3rciful/feedbackbot/relay/store"
	relaytg "github.com/m3rciful/feedbackbot/relay/telegram"
)

// App is built once at startup and owns every long-lived component.
type App struct {
	cfg     *Config
	res     *bootstrap.Result[store.Repository]
	store   store.Repository
	dialogs dialog.Manager
	engine  *engine.Engine
	audit   *audit.Server
}

// provideStore opens the configured backend.
func provideStore(cfg *Config) bootstrap.ServiceProviderFunc[store.Repository] {
	return func(ctx context.Context, db *sqlx.DB) (store.Repository, error) {
		if db != nil {
			return store.Serialize(store.NewSQL(db)), nil
		}
		d, err := store.OpenDynamo(ctx, cfg.Database.Dynamo)
		if err != nil {
			return nil, err
		}
		return store.Serialize(d), nil
	}
}

// seedAdmin grants the configured bootstrap administrator.
func seedAdmin(adminID int64) bootstrap.SeederFunc[store.Repository] {
	return func(ctx context.Context, repo store.Repository) error {
		if adminID <= 0 {
			return nil
		}
		_, err := repo.AddAdministrator(ctx, adminID, "", 0)
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		if err == nil {
			logger.Info(ctx, logger.CompSeed, "admin.granted", slog.Int64("user_id", adminID))
		}
		return err
	}
}

// Bootstrap runs the bootstrap pipeline for cfg. pipeline may replace the
// logger, connect and migrate steps; its Config, Database and Modules are
// always taken from cfg.
func Bootstrap(ctx context.Context, cfg *Config, pipeline bootstrap.Options[store.Repository]) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	pipeline.Config = &cfg.Config
	pipeline.Database = cfg.Database
	pipeline.Modules = bootstrap.Modules[store.Repository]{
		Services: provideStore(cfg),
		Seeders:  []bootstrap.Seeder[store.Repository]{seedAdmin(cfg.Telegram.AdminID)},
	}

	res, err := bootstrap.Run(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:     cfg,
		res:     res,
		store:   res.Services,
		dialogs: dialog.NewMemoryManager(),
	}
	if cfg.Audit.Listen != "" {
		a.audit = audit.NewServer(cfg.Audit.Listen, a.store)
	}
	logger.Info(ctx, logger.CompApp, "bootstrap",
		slog.String("db_driver", cfg.Database.Driver),
		slog.Bool("audit", a.audit != nil),
		slog.Bool("self_grant", !cfg.Relay.DisableSelfGrant),
	)
	return a, nil
}

// Store returns the serialized repository.
func (a *App) Store() store.Repository { return a.store }

// Engine returns the engine once the routes have been built.
func (a *App) Engine() *engine.Engine { return a.engine }

// Routes builds the engine on top of the running bot and returns its routes.
func (a *App) Routes(rt coretelegram.Runtime) ([]coretelegram.Route, error) {
	sender := relaytg.NewSender(rt.Bot, rt.Dispatcher)
	a.engine = engine.New(a.store, a.dialogs, sender, engine.Options{
		RecentLimit: a.cfg.Relay.RecentLimit,
		Greeting:    a.cfg.Relay.Greeting,
		SelfGrant:   !a.cfg.Relay.DisableSelfGrant,
	})
	return relaytg.Routes(rt.Registry, relaytg.NewHandlers(a.engine, a.dialogs))
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		Config:   &a.cfg.Config,
		Registry: coretelegram.NewRegistry(),
		DispatcherOptions: tgsender.Options{
			Workers:    4,
			MaxRetries: 3,
		},
		Middlewares:  coretelegram.DefaultMiddlewares(),
		RouteBuilder: a.Routes,
		OnStart:      a.start,
		OnStop:       a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ coretelegram.Runtime) error {
	if a.audit == nil {
		return nil
	}
	if _, err := a.audit.Start(ctx); err != nil {
		return fmt.Errorf("app: audit api: %w", err)
	}
	return nil
}

func (a *App) stop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.audit == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.audit.Shutdown(ctx)
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.res.Close()
}
