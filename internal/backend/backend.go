// Package backend opens the storage driver named in the configuration and
// exposes it through the contracts the binaries wire together.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/events"
	"github.com/claude/liftlog/internal/seed"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/storage/memory"
	"github.com/claude/liftlog/internal/storage/sqlite"
	"github.com/claude/liftlog/internal/workout"
)

// UserResolver maps a login to an owner id.
type UserResolver interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

// Backend bundles what the configured storage driver provides.
type Backend struct {
	Driver  string
	Store   workout.Store
	Plans   workout.PlanReader
	Users   UserResolver
	Catalog seed.Target
	Outbox  events.Source
	Ping    func(ctx context.Context) error
	Close   func()
}

// Open connects the configured driver. PostgreSQL migrations are applied
// from migrationsPath; SQLite carries its own.
func Open(ctx context.Context, cfg config.DatabaseConfig, migrationsPath string, log *slog.Logger) (*Backend, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		dsn := cfg.DSN()
		if err := storage.RunMigrations(dsn, migrationsPath); err != nil {
			return nil, err
		}
		log.Info("migrations applied")
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Driver: cfg.Driver, Store: db, Plans: db, Users: db, Catalog: db, Outbox: db,
			Ping: db.Ping, Close: db.Close,
		}, nil

	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite database opened", "path", cfg.Path)
		return &Backend{
			Driver: cfg.Driver, Store: st, Plans: st, Users: st, Catalog: st, Outbox: st,
			Ping: st.Ping, Close: func() { st.Close() },
		}, nil

	case config.DriverMemory:
		st := memory.New()
		log.Warn("using in-memory storage, data is lost on exit")
		return &Backend{
			Driver: cfg.Driver, Store: st, Plans: st, Users: st, Catalog: st, Outbox: st,
			Ping:  func(context.Context) error { return nil },
			Close: func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// Persistent reports whether data outlives the process.
func (b *Backend) Persistent() bool {
	return b.Driver != config.DriverMemory
}

// SeedFile loads a fixture file into the backend's catalog and plans.
func (b *Backend) SeedFile(ctx context.Context, path string, log *slog.Logger) (seed.Summary, error) {
	f, err := seed.LoadFile(path)
	if err != nil {
		return seed.Summary{}, fmt.Errorf("loading fixture %s: %w", path, err)
	}
	return seed.Apply(ctx, b.Catalog, f, log)
}
