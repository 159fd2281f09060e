package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/liftlog/internal/backend"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/seed"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	fixturePath := flag.String("fixture", "", "path to YAML fixture (required)")
	migrationsPath := flag.String("migrations", "migrations", "PostgreSQL migrations directory")
	dryRun := flag.Bool("dry-run", false, "validate the fixture without writing to the database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *fixturePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-seed -config config.yaml -fixture plans.yaml [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fixture, err := seed.LoadFile(*fixturePath)
	if err != nil {
		log.Error("invalid fixture", "path", *fixturePath, "error", err)
		os.Exit(1)
	}
	log.Info("fixture parsed", "owner", fixture.Owner, "exercises", len(fixture.Catalog), "plans", len(fixture.Plans))

	if *dryRun {
		log.Info("dry run, nothing written")
		return
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	be, err := backend.Open(ctx, cfg.Database, *migrationsPath, log)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer be.Close()
	if !be.Persistent() {
		log.Error("seeding needs a persistent driver; use liftlog -fixture with the memory driver", "driver", cfg.Database.Driver)
		os.Exit(1)
	}

	sum, err := seed.Apply(ctx, be.Catalog, fixture, log)
	if err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}
	log.Info("seed complete", "owner_id", sum.OwnerID, "exercises", sum.Exercises, "plans", sum.Plans)
}
