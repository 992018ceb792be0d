// Package journal provides the built-in plugin that records every message
// envelope of a run into the store and republishes it to live subscribers.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	messages "github.com/cucumber/messages/go/v21"

	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/plugin"
	"github.com/seantiz/cadence/internal/store"
	"github.com/seantiz/cadence/internal/stream"
)

// PluginName is the name the journal plugin is initialized under.
const PluginName = "journal"

// Options selects the run the journal writes to. The run record must exist.
type Options struct {
	RunID string
}

// Plugin returns the journal plugin writing to s and publishing to b.
func Plugin(s store.Store, b *stream.Broker) plugin.Plugin[Options] {
	return plugin.New(PluginName, func(ctx context.Context, pc plugin.Context[Options]) (plugin.Cleanup, error) {
		if pc.Options.RunID == "" {
			return nil, fmt.Errorf("journal: run id is required")
		}
		if _, err := s.GetRun(ctx, pc.Options.RunID); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}

		j := &journal{store: s, broker: b, runID: pc.Options.RunID, logger: pc.Logger}
		if err := plugin.OnVoid(pc, plugin.Message, j.record); err != nil {
			return nil, err
		}
		return j.finish, nil
	})
}

type journal struct {
	store  store.Store
	broker *stream.Broker
	runID  string
	logger *slog.Logger

	mu       sync.Mutex
	seq      int
	pickles  int
	attempts int
	started  bool
	finished *messages.TestRunFinished // last one seen
}

func (j *journal) record(ctx context.Context, env *messages.Envelope) error {
	if env == nil {
		return nil
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	typ := model.EnvelopeType(env)

	j.mu.Lock()
	defer j.mu.Unlock()

	if env.TestRunStarted != nil && !j.started {
		if err := j.store.UpdateRunStatus(ctx, j.runID, model.StatusRunning); err != nil {
			return fmt.Errorf("mark run running: %w", err)
		}
		j.started = true
	}
	if tcs := env.TestCaseStarted; tcs != nil {
		j.attempts++
		if tcs.Attempt == 0 {
			j.pickles++
		}
	}
	if env.TestRunFinished != nil {
		j.finished = env.TestRunFinished
	}

	seq := j.seq
	if err := j.store.InsertMessage(ctx, j.runID, seq, typ, payload); err != nil {
		return err
	}
	j.seq++

	j.broker.Publish(j.runID, stream.Event{Seq: seq, Type: typ, Data: payload})
	j.logger.Debug("message recorded", "run_id", j.runID, "seq", seq, "type", typ)
	return nil
}

// finish writes the terminal run state, then closes the run's stream. A run
// that never emitted testRunFinished is recorded as failed.
func (j *journal) finish(ctx context.Context) error {
	// Subscribers see the topic close only once the run record is final.
	defer j.broker.Close(j.runID)

	j.mu.Lock()
	defer j.mu.Unlock()

	run := &model.Run{
		ID:           j.runID,
		Status:       model.StatusFailed,
		PickleCount:  j.pickles,
		AttemptCount: j.attempts,
	}
	now := time.Now().UTC()
	run.FinishedAt = &now

	success := false
	switch {
	case j.finished == nil:
		run.Error = "run ended without testRunFinished"
	case j.finished.Success:
		success = true
		run.Status = model.StatusPassed
	default:
		run.Error = j.finished.Message
	}
	run.Success = &success

	if err := j.store.FinishRun(ctx, run); err != nil {
		return fmt.Errorf("finish run %s: %w", j.runID, err)
	}
	return nil
}
