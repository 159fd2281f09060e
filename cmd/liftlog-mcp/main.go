package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/liftlog/internal/backend"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/workout"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "liftlog server URL for remote mode (e.g. https://liftlog.tail1234.ts.net)")
	token := flag.String("token", os.Getenv("LIFTLOG_TOKEN"), "bearer token for remote mode")
	configPath := flag.String("config", "config.yaml", "path to config file for local mode")
	login := flag.String("login", "local", "login the local mode acts as")
	migrationsPath := flag.String("migrations", "migrations", "PostgreSQL migrations directory for local mode")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("liftlog-mcp", Version)
		return
	}

	// stdout carries the protocol
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var (
		source  mcp.Backend
		ownerID int
	)
	if *serverURL != "" {
		source = mcp.NewHTTPClient(*serverURL, *token)
		log.Info("remote mode", "server", *serverURL)
	} else {
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
			log.Error("local mode needs a persistent driver", "driver", cfg.Database.Driver)
			os.Exit(1)
		}

		ownerID, err = be.Users.GetOrCreateUser(ctx, *login, "")
		if err != nil {
			log.Error("resolving login failed", "login", *login, "error", err)
			os.Exit(1)
		}
		source = workout.NewEngine(be.Store, be.Plans, workout.SystemClock{}, log)
		log.Info("local mode", "driver", cfg.Database.Driver, "login", *login)
	}

	s := mcp.New(source, Version, log)
	if err := mcp.ServeStdio(s, ownerID); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
