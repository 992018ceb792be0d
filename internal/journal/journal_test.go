package journal_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	messages "github.com/cucumber/messages/go/v21"
	"github.com/google/go-cmp/cmp"

	"github.com/seantiz/cadence/internal/journal"
	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/plugin"
	"github.com/seantiz/cadence/internal/store"
	"github.com/seantiz/cadence/internal/stream"
)

type fixture struct {
	store  *store.SQLiteStore
	broker *stream.Broker
	run    *model.Run
	c      *plugin.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	run := &model.Run{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		Operation: model.OperationRunCucumber,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	f := &fixture{store: s, broker: stream.NewBroker(), run: run, c: plugin.NewCoordinator(logger)}
	err = plugin.Init(context.Background(), f.c, model.OperationRunCucumber,
		journal.Plugin(s, f.broker), journal.Options{RunID: run.ID}, logger, model.RunEnvironment{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return f
}

func (f *fixture) emit(t *testing.T, envs ...*messages.Envelope) {
	t.Helper()
	for _, env := range envs {
		if err := plugin.Emit(context.Background(), f.c, plugin.Message, env); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
}

func runStarted() *messages.Envelope {
	return &messages.Envelope{TestRunStarted: &messages.TestRunStarted{Timestamp: model.Timestamp(time.Now())}}
}

func caseStarted(id string, attempt int64) *messages.Envelope {
	return &messages.Envelope{TestCaseStarted: &messages.TestCaseStarted{Id: id, TestCaseId: "tc", Attempt: attempt}}
}

func runFinished(success bool, msg string) *messages.Envelope {
	return &messages.Envelope{TestRunFinished: &messages.TestRunFinished{Success: success, Message: msg}}
}

func TestJournalRecordsMessagesInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	events, unsub := f.broker.Subscribe(f.run.ID)
	defer unsub()

	f.emit(t, runStarted(), caseStarted("a", 0), caseStarted("b", 1), runFinished(true, ""))
	if err := f.c.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	records, err := f.store.GetMessages(ctx, f.run.ID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	var gotTypes []string
	for _, r := range records {
		gotTypes = append(gotTypes, r.Type)
	}
	want := []string{"testRunStarted", "testCaseStarted", "testCaseStarted", "testRunFinished"}
	if diff := cmp.Diff(want, gotTypes); diff != "" {
		t.Errorf("recorded types mismatch (-want +got):\n%s", diff)
	}

	var streamed []string
	for ev := range events {
		streamed = append(streamed, ev.Type)
	}
	if diff := cmp.Diff(want, streamed); diff != "" {
		t.Errorf("streamed types mismatch (-want +got):\n%s", diff)
	}
}

func TestJournalLastRunFinishedWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.emit(t, runStarted(), caseStarted("a", 0), runFinished(true, ""), runFinished(false, "reporter down"))
	if err := f.c.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	got, err := f.store.GetRun(ctx, f.run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusFailed)
	}
	if got.Success == nil || *got.Success {
		t.Errorf("Success = %v, want false", got.Success)
	}
	if got.Error != "reporter down" {
		t.Errorf("Error = %q, want %q", got.Error, "reporter down")
	}
}

func TestJournalFinishesPassedRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.emit(t, runStarted(), caseStarted("a", 0), caseStarted("a2", 1), caseStarted("b", 0), runFinished(true, ""))
	if err := f.c.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	got, err := f.store.GetRun(ctx, f.run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.StatusPassed {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusPassed)
	}
	if got.Success == nil || !*got.Success {
		t.Errorf("Success = %v, want true", got.Success)
	}
	if got.PickleCount != 2 {
		t.Errorf("PickleCount = %d, want 2", got.PickleCount)
	}
	if got.AttemptCount != 3 {
		t.Errorf("AttemptCount = %d, want 3", got.AttemptCount)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Errorf("StartedAt/FinishedAt = %v/%v, want both set", got.StartedAt, got.FinishedAt)
	}
}

func TestJournalFinishesFailedRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.emit(t, runStarted(), runFinished(false, "step failed"))
	if err := f.c.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	got, err := f.store.GetRun(ctx, f.run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusFailed)
	}
	if got.Error != "step failed" {
		t.Errorf("Error = %q, want %q", got.Error, "step failed")
	}
}

func TestJournalAbortedRunIsFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.c.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	got, err := f.store.GetRun(ctx, f.run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusFailed)
	}
	if got.Error == "" {
		t.Error("Error should describe the aborted run")
	}

	// The stream is closed for late subscribers.
	ch, unsub := f.broker.Subscribe(f.run.ID)
	defer unsub()
	if _, ok := <-ch; ok {
		t.Error("stream should be closed after cleanup")
	}
}

func TestJournalRequiresExistingRun(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	tests := []struct {
		name  string
		runID string
	}{
		{"empty", ""},
		{"unknown", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := plugin.NewCoordinator(nil)
			err := plugin.Init(context.Background(), c, model.OperationRunCucumber,
				journal.Plugin(s, stream.NewBroker()), journal.Options{RunID: tt.runID}, nil, model.RunEnvironment{})
			if err == nil {
				t.Fatal("expected init error")
			}
			if tt.runID != "" && !errors.Is(err, store.ErrNotFound) {
				t.Errorf("error = %v, want ErrNotFound", err)
			}
		})
	}
}
