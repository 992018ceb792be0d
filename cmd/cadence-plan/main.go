// cadence-plan reads newline-delimited message envelopes on stdin and writes
// the pickles a run would execute, filtered and ordered per CADENCE_TAGS,
// CADENCE_NAMES and CADENCE_ORDER, as pickle envelopes on stdout.
//
// Usage: gherkin-stream features/*.feature | cadence-plan
package main

import (
	"context"
	"log"
	"os"

	"github.com/seantiz/cadence/internal/config"
	"github.com/seantiz/cadence/internal/engine"
	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	pickles, err := source.Read(os.Stdin)
	if err != nil {
		log.Fatalf("failed to read envelopes: %v", err)
	}

	eng := engine.NewEngine(nil, nil, nil, logger, engine.Settings{
		Filter:         cfg.FilterOptions(),
		Order:          cfg.OrderOptions(),
		Environment:    model.DefaultRunEnvironment(),
		HandlerTimeout: cfg.HandlerTimeout,
	})
	planned, err := eng.Plan(context.Background(), engine.RunRequest{Pickles: pickles})
	if err != nil {
		log.Fatalf("failed to plan: %v", err)
	}

	logger.Info("cadence-plan: planned", "read", len(pickles), "planned", len(planned))
	if err := source.Write(os.Stdout, planned); err != nil {
		log.Fatalf("failed to write plan: %v", err)
	}
}
