package main

import (
	"log"
	"os"

	"github.com/seantiz/cadence/internal/api"
	"github.com/seantiz/cadence/internal/config"
	"github.com/seantiz/cadence/internal/engine"
	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/store"
	"github.com/seantiz/cadence/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("cadence: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"retry", cfg.Retry,
		"order", cfg.Order,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// No executor: the server journals and plans runs but does not execute them.
	broker := stream.NewBroker()
	eng := engine.NewEngine(db, broker, nil, logger, engine.Settings{
		Retry:          cfg.RetryOptions(),
		Filter:         cfg.FilterOptions(),
		Order:          cfg.OrderOptions(),
		Environment:    model.DefaultRunEnvironment(),
		HandlerTimeout: cfg.HandlerTimeout,
	})
	srv := api.NewServer(cfg.ListenAddr, db, broker, eng, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
