package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/liftlog/internal/auth"
	"github.com/claude/liftlog/internal/backend"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/events"
	"github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/server"
	"github.com/claude/liftlog/internal/workout"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	migrationsPath := flag.String("migrations", "migrations", "PostgreSQL migrations directory")
	issueToken := flag.String("issue-token", "", "print a bearer token for this login and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of tokens printed by -issue-token")
	fixturePath := flag.String("fixture", "", "YAML fixture of catalog entries and plans to load at startup")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	authCfg := auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer}

	if *issueToken != "" {
		if authCfg.Secret == "" {
			log.Error("auth.jwt_secret is required to issue tokens")
			os.Exit(1)
		}
		token, err := auth.Issue(*issueToken, "", *tokenTTL, authCfg)
		if err != nil {
			log.Error("issuing token failed", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	log.Info("liftlog starting", "version", Version, "driver", cfg.Database.Driver)

	// Open storage and run migrations
	ctx := context.Background()
	be, err := backend.Open(ctx, cfg.Database, *migrationsPath, log)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer be.Close()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	if *fixturePath != "" {
		sum, err := be.SeedFile(ctx, *fixturePath, log)
		if err != nil {
			log.Error("seeding failed", "error", err)
			os.Exit(1)
		}
		log.Info("fixture loaded", "owner_id", sum.OwnerID, "exercises", sum.Exercises, "plans", sum.Plans)
	} else if !be.Persistent() {
		log.Warn("memory driver without -fixture: no plans to start sessions from")
	}

	engine := workout.NewEngine(be.Store, be.Plans, workout.SystemClock{}, log)

	// Create server
	srv := server.New(engine, be.Users, log)
	srv.SetHealthCheck(func(r *http.Request) error { return be.Ping(r.Context()) })
	if authCfg.Secret != "" {
		srv.SetBearer(authCfg)
		log.Info("bearer token identity enabled", "issuer", authCfg.Issuer)
	}
	if cfg.MCP.Enabled {
		srv.SetMCP(mcp.NewHTTPHandler(mcp.New(engine, Version, log)))
		log.Info("mcp endpoint enabled", "path", "/mcp")
	}

	// Outbox dispatcher
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	var (
		dispatcher *events.Dispatcher
		producer   *events.KafkaProducer
	)
	if cfg.Events.Enabled {
		producer = events.NewKafkaProducer(cfg.Events.Brokers)
		dispatcher = events.NewDispatcher(be.Outbox, producer, events.DispatcherConfig{
			Topic:        cfg.Events.Topic,
			PollInterval: cfg.Events.PollInterval,
			BatchSize:    cfg.Events.BatchSize,
			MaxAttempts:  cfg.Events.MaxAttempts,
		}, log)
		go dispatcher.Run(runCtx)
		log.Info("event dispatcher started", "topic", cfg.Events.Topic, "brokers", cfg.Events.Brokers)
	}

	// Serve over tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	stopRun()
	if dispatcher != nil {
		dispatcher.Wait()
		if err := producer.Close(); err != nil {
			log.Error("closing producer", "error", err)
		}
	}
	log.Info("server stopped")
}
