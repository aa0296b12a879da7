// Package app wires the household services together from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"family-ops/internal/cache"
	"family-ops/internal/clipper"
	"family-ops/internal/config"
	"family-ops/internal/content"
	"family-ops/internal/database"
	"family-ops/internal/entitlement"
	"family-ops/internal/generation"
	"family-ops/internal/httpapi"
	"family-ops/internal/llm"
	"family-ops/internal/metrics"
	"family-ops/internal/planner"
	"family-ops/internal/ratelimit"
	"family-ops/internal/routine"
	"family-ops/internal/shared"
	"family-ops/internal/shopping"
	"family-ops/internal/store"
	"family-ops/internal/telegram"
)

// App holds the application's dependencies.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Location *time.Location

	Store   store.Gateway
	Metrics *metrics.Store
	Checker *entitlement.Checker

	Generator *generation.Orchestrator
	Lists     *shopping.Service
	Packing   *shopping.PackingPlanner
	Meals     *planner.MealRepository
	Weeks     *planner.WeekPlanner
	Importer  *planner.Importer
	Routines  *routine.Service
	Engine    *routine.Engine
	Guard     routine.Guard
	Notifier  telegram.Sink

	ready   func(context.Context) error
	closers []func() error
}

// New builds an App. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := shared.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Location: loc}

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}

	textGen, closer, err := llm.NewFromConfig(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create text generator: %w", err)
	}
	a.closers = append(a.closers, closer.Close)

	counter, guard, err := a.counters(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Guard = guard

	validator, err := content.NewValidator()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Checker = entitlement.NewChecker(a.Store, cfg.Entitlement)
	opts := []generation.Option{
		generation.WithLimiter(ratelimit.NewLimiter(counter, cfg.AIMaxPerHour, cfg.AIMaxPerDay)),
		generation.WithLogger(logger),
		generation.WithTimeout(cfg.GenerationTimeout),
		generation.WithLocation(loc),
	}
	if a.Metrics != nil {
		opts = append(opts, generation.WithMetrics(a.Metrics))
	}
	a.Generator = generation.New(a.Checker, textGen, validator, opts...)

	a.Notifier = telegram.NewFromConfig(cfg, logger)
	a.Lists = shopping.NewService(a.Store, logger)
	a.Packing = shopping.NewPackingPlanner(a.Generator, a.Lists, loc, logger)
	a.Meals = planner.NewMealRepository(a.Store)
	a.Weeks = planner.NewWeekPlanner(a.Generator, a.Meals, a.Lists, a.Notifier, logger)
	a.Importer = planner.NewImporter(clipper.NewClipper(), a.Meals, logger)
	a.Routines = routine.NewService(a.Store, a.Checker, logger)
	a.Engine = routine.NewEngine(a.Store, routine.RemoveRow, logger)
	return a, nil
}

func (a *App) openStore() error {
	if a.Config.StoreDriver == config.StoreMemory {
		a.Store = store.NewMemory()
		return nil
	}
	db, err := database.NewDB(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	a.Store = store.NewSQLite(db.SQL)
	a.ready = db.Ready
	a.Metrics = metrics.NewStore(db.SQL)
	a.Logger.Info("database.ready", "path", db.Path)
	return nil
}

// counters picks Redis for the quota counter and toggle guard when
// configured and process-local ones otherwise.
func (a *App) counters(ctx context.Context) (ratelimit.Counter, routine.Guard, error) {
	if a.Config.RedisURL == "" {
		return ratelimit.NewMemoryCounter(), routine.NewLocalGuard(), nil
	}
	client, err := cache.Connect(ctx, a.Config.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return cache.NewCounter(client), cache.NewGuard(client, 30*time.Second), nil
}

// ToggleClient returns a routine toggler that tries the server at baseURL
// first and falls back to writing the store directly. An empty baseURL
// always uses the store.
func (a *App) ToggleClient(baseURL, token string) *routine.Client {
	var primary routine.Toggler
	if baseURL != "" {
		primary = routine.NewHTTPToggler(baseURL, token)
	}
	return routine.NewClient(primary, routine.NewEngine(a.Store, routine.ClearFlag, a.Logger), a.Guard, a.Logger)
}

// Router returns the HTTP API.
func (a *App) Router() http.Handler {
	h := httpapi.NewHandler(httpapi.Deps{
		Members:  a.Checker,
		Toggler:  a.Engine,
		Routines: a.Routines,
		Weeks:    a.Weeks,
		Importer: a.Importer,
		Packing:  a.Packing,
		Lists:    a.Lists,
		DataPath: filepath.Dir(a.Config.DatabasePath),
		Ready:    a.ready,
		Logger:   a.Logger,
	})
	return httpapi.NewRouter(h, httpapi.NewAuthenticator(a.Config.JWTSecret, a.Config.Entitlement.QABypass))
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
