package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/seantiz/babelpdf/internal/api"
	"github.com/seantiz/babelpdf/internal/auth"
	"github.com/seantiz/babelpdf/internal/config"
	"github.com/seantiz/babelpdf/internal/jobs"
	"github.com/seantiz/babelpdf/internal/store"
	"github.com/seantiz/babelpdf/internal/translator"
)

const sessionSweepInterval = time.Hour

func main() {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogWriter(), cfg.LogLevel)

	logger.Info("babelpdf: starting",
		"listen_addr", cfg.ListenAddr,
		"data_dir", cfg.DataDir,
		"db_path", cfg.DBPath,
		"engine_cmd", cfg.EngineCmd,
	)

	layout, err := config.NewLayout(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to prepare data directory: %v", err)
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	var jobStore jobs.Store
	if cfg.RedisAddr != "" {
		rs, err := jobs.NewRedisStore(context.Background(), cfg.RedisAddr)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer rs.Close()
		jobStore = rs
		logger.Info("using redis job store", "addr", cfg.RedisAddr)
	} else {
		jobStore = jobs.NewMemoryStore()
	}

	engineArgs := strings.Fields(cfg.EngineCmd)
	if len(engineArgs) == 0 {
		log.Fatalf("engine command is empty")
	}
	engine := translator.NewCommandBridge(logger, engineArgs[0], engineArgs[1:]...)

	runner := jobs.NewRunner(jobStore, db, engine, logger)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret)
	sessions := auth.NewSessionStore(layout.SessionsDir(), issuer, logger)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sessions.RunSweeper(sweepCtx, sessionSweepInterval)

	srv := api.NewServer(cfg.ListenAddr, api.Deps{
		Store:             db,
		Jobs:              jobStore,
		Runner:            runner,
		Tokens:            issuer,
		Sessions:          sessions,
		Layout:            layout,
		AllowRegistration: cfg.AllowRegistration,
	}, logger)

	err = srv.Run()

	// Let in-flight translations write their history before exiting.
	runner.Wait()

	if err != nil {
		log.Fatalf("server error: %v", err)
	}
}
