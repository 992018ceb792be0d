package retry

import (
	"context"

	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/plugin"
)

// PluginName is the name the retry plugin is initialized under.
const PluginName = "retry"

// Plugin returns the built-in retry plugin. With Retry below 1 it registers
// nothing. A malformed RetryTagFilter fails initialization.
func Plugin() plugin.Plugin[Options] {
	return plugin.New(PluginName, coordinate)
}

func coordinate(_ context.Context, pc plugin.Context[Options]) (plugin.Cleanup, error) {
	policy, err := NewPolicy(pc.Options)
	if err != nil {
		return nil, err
	}
	if !policy.Enabled() {
		pc.Logger.Debug("retries disabled")
		return nil, nil
	}

	logger := pc.Logger
	err = plugin.OnPredicate(pc, plugin.TestCaseRetry, func(_ context.Context, failure model.RetryableFailure) (bool, error) {
		decision := policy.decide(failure)
		decisionsTotal.WithLabelValues(decision).Inc()
		if failure.Pickle != nil {
			logger.Debug("retry decision",
				"pickle_id", failure.Pickle.Id,
				"attempt", failure.Attempt,
				"decision", decision,
			)
		}
		return decision == decisionRetry, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("retries enabled", "retry", pc.Options.Retry, "retry_tag_filter", pc.Options.RetryTagFilter)
	return nil, nil
}
