// testserver starts a Cadence API server with a stub executor and submits a
// demo run so the stream and journal routes have something to show.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	messages "github.com/cucumber/messages/go/v21"

	"github.com/seantiz/cadence/internal/api"
	"github.com/seantiz/cadence/internal/config"
	"github.com/seantiz/cadence/internal/engine"
	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/retry"
	"github.com/seantiz/cadence/internal/store"
	"github.com/seantiz/cadence/internal/stream"
)

// stubExecutor passes every pickle after a delay, except that @flaky pickles
// fail their first attempt and @broken pickles always fail.
type stubExecutor struct {
	delay time.Duration
}

func (s *stubExecutor) Execute(ctx context.Context, p *messages.Pickle, attempt int) (*messages.TestStepResult, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	status := messages.TestStepResultStatus_PASSED
	for _, name := range model.PickleTagNames(p) {
		if name == "@broken" || (name == "@flaky" && attempt == 0) {
			status = messages.TestStepResultStatus_FAILED
		}
	}
	return &messages.TestStepResult{
		Status:   status,
		Duration: model.Duration(s.delay),
	}, nil
}

func demoPickles() []model.FilterablePickle {
	specs := []struct {
		id, name string
		tags     []string
	}{
		{"demo-1", "user signs in", []string{"@smoke"}},
		{"demo-2", "user resets password", []string{"@flaky"}},
		{"demo-3", "admin exports report", nil},
		{"demo-4", "checkout with expired card", []string{"@broken"}},
	}
	out := make([]model.FilterablePickle, 0, len(specs))
	for _, s := range specs {
		p := &messages.Pickle{Id: s.id, Uri: "features/demo.feature", Name: s.name}
		for _, tag := range s.tags {
			p.Tags = append(p.Tags, &messages.PickleTag{Name: tag})
		}
		out = append(out, model.FilterablePickle{Pickle: p})
	}
	return out
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	broker := stream.NewBroker()
	eng := engine.NewEngine(db, broker, &stubExecutor{delay: 500 * time.Millisecond}, logger, engine.Settings{
		Retry:          retry.Options{Retry: 1},
		Filter:         cfg.FilterOptions(),
		Order:          cfg.OrderOptions(),
		Environment:    model.DefaultRunEnvironment(),
		HandlerTimeout: cfg.HandlerTimeout,
	})

	run, err := eng.Submit(context.Background(), engine.RunRequest{Pickles: demoPickles()})
	if err != nil {
		log.Fatalf("failed to submit demo run: %v", err)
	}

	srv := api.NewServer(cfg.ListenAddr, db, broker, eng, logger)
	logger.Info("testserver: starting", "addr", cfg.ListenAddr, "demo_run_id", run.ID)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	eng.Wait()
}
