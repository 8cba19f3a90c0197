package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"
	"watchtower/config"
	"watchtower/internals/app"
	"watchtower/internals/security"
	"watchtower/internals/server"
	"watchtower/pkg/db"
	"watchtower/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	once := flag.Bool("once", false, "run every check a single time, report, and exit")
	mintToken := flag.String("mint-token", "", "print an access token for the named operator and exit")
	flag.Parse()

	// Load envs
	cfg, err := config.LoadConfig("env.yaml")
	if err != nil {
		stdlog.Fatalf("failed to load config: %v", err)
	}

	// Get Context with signals attached -> when ever a signal occurs , then `Done` channel of ctx will get closed
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Base/global logger
	log := logger.Init(cfg)
	log.Info().Msg("logger initialized")

	// mint an operator token for the protected API routes and exit
	if *mintToken != "" {
		tok, err := security.NewTokenService(&cfg.Auth).GenerateAccessToken(security.RequestClaims{Operator: *mintToken, Role: "operator"})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to mint token")
		}
		fmt.Println(tok)
		return
	}

	// Initialize DB Pool (optional in dev mode)
	var dbPool *pgxpool.Pool
	if cfg.DB.URL != "" {
		dbPool, err = db.ConnectToDB(ctx, &cfg.DB, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize db pool")
		}
		log.Info().Msg("database pool initialized")
	}

	// Inject Dependencies
	container, err := app.NewContainer(ctx, dbPool, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dependencies")
	}
	log.Info().Msg("dependencies initialized")

	// one-shot mode: probe every target once, report, exit non-zero on failure
	if *once {
		failed := container.Scheduler.RunOnce(ctx)
		if err := container.Shutdown(); err != nil {
			log.Error().Err(err).Msg("dependecies shutdown failed")
		}
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	// start escalation delivery workers
	container.AlertSvc.Start()

	// start the per-target monitoring workers
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		container.Scheduler.Run(ctx)
	}()

	// Register Routes
	router := app.RegisterRoutes(container)
	log.Info().Msg("routes registered")

	// Start HTTP Server -> Runs in a seperate goroutine in background and receive requests
	srv := server.New(fmt.Sprintf(":%d", cfg.Port), router, log)
	srv.Start()

	// main goroutine is for gracefull shutdown

	<-ctx.Done() // WAIT FOR SIGNAL
	log.Info().Msg("shutdown signal received")

	// 1. Stop HTTP server (stop accepting requests)
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	// 2. Wait for the scheduler to wind down, bounded by the shutdown grace
	select {
	case <-schedulerDone:
	case <-time.After(cfg.Scheduler.ShutdownGrace):
		log.Warn().Msg("scheduler did not stop within the shutdown grace")
	}

	// 3. Shutdown background workers & infra
	if err := container.Shutdown(); err != nil {
		log.Error().Err(err).Msg("dependecies shutdown failed")
	}

	// Shutdown done
	log.Info().Msg("graceful shutdown complete")
}
