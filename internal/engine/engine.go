package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	messages "github.com/cucumber/messages/go/v21"
	"go.uber.org/multierr"

	"github.com/seantiz/cadence/internal/filter"
	"github.com/seantiz/cadence/internal/journal"
	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/order"
	"github.com/seantiz/cadence/internal/plugin"
	"github.com/seantiz/cadence/internal/retry"
	"github.com/seantiz/cadence/internal/store"
	"github.com/seantiz/cadence/internal/stream"
)

// ErrNoExecutor is returned by Run and Submit on an engine built without an
// executor. Such an engine can still Plan.
var ErrNoExecutor = errors.New("engine has no executor")

// Executor runs one attempt of a pickle and reports its overall result.
// A returned error aborts the whole run; a failing scenario is reported
// through the result instead.
type Executor interface {
	Execute(ctx context.Context, pickle *messages.Pickle, attempt int) (*messages.TestStepResult, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, pickle *messages.Pickle, attempt int) (*messages.TestStepResult, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, pickle *messages.Pickle, attempt int) (*messages.TestStepResult, error) {
	return f(ctx, pickle, attempt)
}

// Settings holds the options for the built-in plugins.
type Settings struct {
	Retry       retry.Options
	Filter      filter.Options
	Order       order.Options
	Environment model.RunEnvironment

	// HandlerTimeout bounds each handler of a user plugin. A late handler's
	// result is dropped. Zero leaves handlers unbounded.
	HandlerTimeout time.Duration
}

// RunRequest is the input of one run.
type RunRequest struct {
	Pickles []model.FilterablePickle
	Paths   model.ResolvedPaths
}

// initializer initializes one user plugin on a coordinator.
type initializer func(ctx context.Context, c *plugin.Coordinator, op model.Operation, env model.RunEnvironment) error

// Option configures an Engine.
type Option func(*Engine)

// WithPlugin adds a user plugin initialized after the built-ins on every
// run, with the given options.
func WithPlugin[O any](p plugin.Plugin[O], options O) Option {
	return func(e *Engine) {
		e.plugins = append(e.plugins, func(ctx context.Context, c *plugin.Coordinator, op model.Operation, env model.RunEnvironment) error {
			return plugin.Init(ctx, c, op, p, options, nil, env)
		})
	}
}

// Engine drives runs. Each run gets its own coordinator.
type Engine struct {
	store    store.Store
	broker   *stream.Broker
	executor Executor
	logger   *slog.Logger
	settings Settings
	plugins  []initializer
	wg       sync.WaitGroup
}

// NewEngine creates a new run driver.
func NewEngine(s store.Store, b *stream.Broker, exec Executor, logger *slog.Logger, settings Settings, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		store:    s,
		broker:   b,
		executor: exec,
		logger:   logger,
		settings: settings,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes req synchronously and returns the finished run record.
// Plugin, executor and cleanup errors are combined into the returned error;
// the run record is returned whenever it was created.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*model.Run, error) {
	run, err := e.create(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.drive(ctx, run, req)
}

// Submit creates the run record and drives the run on a goroutine. The
// returned run is still pending.
func (e *Engine) Submit(ctx context.Context, req RunRequest) (*model.Run, error) {
	run, err := e.create(ctx, req)
	if err != nil {
		return nil, err
	}

	runCopy := *run
	e.wg.Go(func() {
		if _, err := e.drive(context.WithoutCancel(ctx), &runCopy, req); err != nil {
			e.logger.Error("run failed", "run_id", runCopy.ID, "error", err)
		}
	})
	return run, nil
}

// Wait blocks until all submitted runs complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) create(ctx context.Context, req RunRequest) (*model.Run, error) {
	if e.executor == nil {
		return nil, ErrNoExecutor
	}
	run := &model.Run{
		ID:          model.NewID(),
		Status:      model.StatusPending,
		Operation:   model.OperationRunCucumber,
		PickleCount: len(req.Pickles),
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// execution is the state of one run being driven.
type execution struct {
	e      *Engine
	run    *model.Run
	c      *plugin.Coordinator
	logger *slog.Logger

	journaled bool
	finished  bool
	failures  int
}

func (e *Engine) drive(ctx context.Context, run *model.Run, req RunRequest) (*model.Run, error) {
	start := time.Now()
	logger := e.logger.With("run_id", run.ID)
	x := &execution{e: e, run: run, c: plugin.NewCoordinator(logger), logger: logger}

	runErr := x.execute(ctx, req)
	if runErr != nil && x.journaled && !x.finished {
		// Record the failure in the journal before it closes. The journal keeps
		// the last testRunFinished it saw, so this supersedes one that a later
		// handler rejected.
		if err := x.emit(context.WithoutCancel(ctx), &messages.Envelope{TestRunFinished: &messages.TestRunFinished{
			Success:   false,
			Message:   runErr.Error(),
			Timestamp: model.Timestamp(time.Now()),
		}}); err != nil {
			logger.Error("failed to record run error", "error", err)
		}
	}

	cleanupErr := x.c.Cleanup(context.WithoutCancel(ctx))
	if !x.journaled {
		e.finishFailed(run.ID, runErr)
	}
	err := multierr.Combine(runErr, cleanupErr)

	runDuration.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		runsTotal.WithLabelValues(outcomeError).Inc()
		logger.Error("run errored", "error", err)
	case x.failures > 0:
		runsTotal.WithLabelValues(outcomeFailed).Inc()
		logger.Info("run failed", "failures", x.failures)
	default:
		runsTotal.WithLabelValues(outcomePassed).Inc()
		logger.Info("run passed")
	}

	final, getErr := e.store.GetRun(context.WithoutCancel(ctx), run.ID)
	if getErr != nil {
		return run, multierr.Append(err, fmt.Errorf("reload run: %w", getErr))
	}
	return final, err
}

// finishFailed marks a run that never got a journal as failed.
func (e *Engine) finishFailed(id string, cause error) {
	success := false
	now := time.Now().UTC()
	r := &model.Run{
		ID:         id,
		Status:     model.StatusFailed,
		Success:    &success,
		FinishedAt: &now,
	}
	if cause != nil {
		r.Error = cause.Error()
	}
	if err := e.store.FinishRun(context.Background(), r); err != nil {
		e.logger.Error("failed to update failed run", "run_id", id, "error", err)
	}
}

func (x *execution) execute(ctx context.Context, req RunRequest) error {
	e := x.e
	op := model.OperationRunCucumber
	env := e.settings.Environment

	if err := plugin.Init(ctx, x.c, op, journal.Plugin(e.store, e.broker), journal.Options{RunID: x.run.ID}, nil, env); err != nil {
		return err
	}
	x.journaled = true

	pickles, err := resolvePickles(ctx, x.c, op, e.settings, e.plugins, req, false)
	if err != nil {
		return err
	}
	for i, fp := range pickles {
		if fp.Pickle == nil {
			return fmt.Errorf("pickle %d has no content", i)
		}
	}

	if err := x.emit(ctx, &messages.Envelope{TestRunStarted: &messages.TestRunStarted{
		Timestamp: model.Timestamp(time.Now()),
	}}); err != nil {
		return err
	}

	testCases := make([]string, len(pickles))
	for i, fp := range pickles {
		testCases[i] = model.NewID()
		if err := x.emit(ctx, &messages.Envelope{TestCase: &messages.TestCase{
			Id:        testCases[i],
			PickleId:  fp.Pickle.Id,
			TestSteps: []*messages.TestStep{},
		}}); err != nil {
			return err
		}
	}

	for i, fp := range pickles {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled: %w", err)
		}
		if err := x.runPickle(ctx, testCases[i], fp.Pickle); err != nil {
			return err
		}
	}

	success := x.failures == 0
	finished := &messages.TestRunFinished{Success: success, Timestamp: model.Timestamp(time.Now())}
	if !success {
		finished.Message = fmt.Sprintf("%d of %d scenarios failed", x.failures, len(pickles))
	}
	if err := x.emit(ctx, &messages.Envelope{TestRunFinished: finished}); err != nil {
		return err
	}
	x.finished = true
	return nil
}

// runPickle executes p until it passes, fails without a granted retry, or
// the executor errors.
func (x *execution) runPickle(ctx context.Context, testCaseID string, p *messages.Pickle) error {
	for attempt := 0; ; attempt++ {
		startedID := model.NewID()
		if err := x.emit(ctx, &messages.Envelope{TestCaseStarted: &messages.TestCaseStarted{
			Id:         startedID,
			TestCaseId: testCaseID,
			Attempt:    int64(attempt),
			Timestamp:  model.Timestamp(time.Now()),
		}}); err != nil {
			return err
		}

		begin := time.Now()
		result, err := x.e.executor.Execute(ctx, p, attempt)
		if err != nil {
			return fmt.Errorf("execute pickle %s attempt %d: %w", p.Id, attempt, err)
		}
		if result == nil {
			result = &messages.TestStepResult{Status: messages.TestStepResultStatus_UNKNOWN}
		}
		if result.Duration == nil {
			result.Duration = model.Duration(time.Since(begin))
		}
		attemptsTotal.WithLabelValues(string(result.Status)).Inc()

		willRetry := false
		if model.Failed(result) {
			willRetry, err = plugin.Predicate(ctx, x.c, plugin.TestCaseRetry, model.RetryableFailure{
				Pickle:  p,
				Attempt: attempt,
				Result:  result,
			})
			if err != nil {
				return err
			}
		}

		if err := x.emit(ctx, &messages.Envelope{TestStepFinished: &messages.TestStepFinished{
			TestCaseStartedId: startedID,
			TestStepResult:    result,
			Timestamp:         model.Timestamp(time.Now()),
		}}); err != nil {
			return err
		}
		if err := x.emit(ctx, &messages.Envelope{TestCaseFinished: &messages.TestCaseFinished{
			TestCaseStartedId: startedID,
			WillBeRetried:     willRetry,
			Timestamp:         model.Timestamp(time.Now()),
		}}); err != nil {
			return err
		}

		x.logger.Debug("attempt finished",
			"pickle_id", p.Id,
			"attempt", attempt,
			"status", string(result.Status),
			"will_be_retried", willRetry,
		)
		if willRetry {
			continue
		}
		if !model.Succeeded(result) {
			x.failures++
		}
		return nil
	}
}

func (x *execution) emit(ctx context.Context, env *messages.Envelope) error {
	return plugin.Emit(ctx, x.c, plugin.Message, env)
}

// Plan resolves req to the pickles a run would execute, in execution order,
// without running anything or creating a run record.
func (e *Engine) Plan(ctx context.Context, req RunRequest) ([]model.FilterablePickle, error) {
	c := plugin.NewCoordinator(e.logger)
	pickles, err := resolvePickles(ctx, c, model.OperationLoadSources, e.settings, e.plugins, req, true)
	return pickles, multierr.Append(err, c.Cleanup(context.WithoutCancel(ctx)))
}

// resolvePickles initializes the selection plugins, the retry plugin unless
// planOnly, and the user plugins, then runs the paths notification and the
// filter and order pipelines.
func resolvePickles(ctx context.Context, c *plugin.Coordinator, op model.Operation, s Settings, users []initializer, req RunRequest, planOnly bool) ([]model.FilterablePickle, error) {
	env := s.Environment
	if err := plugin.Init(ctx, c, op, filter.Plugin(), s.Filter, nil, env); err != nil {
		return nil, err
	}
	if err := plugin.Init(ctx, c, op, order.Plugin(), s.Order, nil, env); err != nil {
		return nil, err
	}
	if !planOnly {
		if err := plugin.Init(ctx, c, op, retry.Plugin(), s.Retry, nil, env); err != nil {
			return nil, err
		}
	}
	c.SetHandlerTimeout(s.HandlerTimeout)
	for _, initUser := range users {
		if err := initUser(ctx, c, op, env); err != nil {
			return nil, err
		}
	}

	if err := plugin.Emit(ctx, c, plugin.PathsResolve, req.Paths); err != nil {
		return nil, err
	}
	pickles, err := plugin.Transform(ctx, c, plugin.PicklesFilter, req.Pickles)
	if err != nil {
		return nil, err
	}
	return plugin.Transform(ctx, c, plugin.PicklesOrder, pickles)
}
