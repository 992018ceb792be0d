package retry

import (
	"errors"
	"fmt"

	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/tags"
)

// ErrInvalidOptions is returned for a negative retry count or a malformed tag filter.
var ErrInvalidOptions = errors.New("invalid retry options")

// Options configures retries for a run.
type Options struct {
	// Retry is the maximum number of extra attempts per test case. Zero disables retries.
	Retry int

	// RetryTagFilter limits retries to pickles matching this tag expression.
	// Empty means every pickle is eligible.
	RetryTagFilter string
}

// Policy is a compiled set of Options. It keeps no state between decisions.
type Policy struct {
	retry  int
	filter *tags.Expression
}

// NewPolicy validates and compiles opts.
func NewPolicy(opts Options) (*Policy, error) {
	if opts.Retry < 0 {
		return nil, fmt.Errorf("%w: retry must not be negative, got %d", ErrInvalidOptions, opts.Retry)
	}
	filter, err := tags.Compile(opts.RetryTagFilter)
	if err != nil {
		return nil, fmt.Errorf("%w: retry tag filter: %w", ErrInvalidOptions, err)
	}
	return &Policy{retry: opts.Retry, filter: filter}, nil
}

// Enabled reports whether the policy can ever grant a retry.
func (p *Policy) Enabled() bool {
	return p.retry >= 1
}

// ShouldRetry reports whether failure should be attempted again. A pickle
// outside the tag filter is never retried; otherwise retries are granted
// while the attempt number is below the retry limit.
func (p *Policy) ShouldRetry(failure model.RetryableFailure) bool {
	return p.decide(failure) == decisionRetry
}

func (p *Policy) decide(failure model.RetryableFailure) string {
	if !p.filter.Empty() && !p.filter.Matches(failure.Pickle) {
		return decisionFiltered
	}
	if failure.Attempt < p.retry {
		return decisionRetry
	}
	return decisionExhausted
}

// ShouldRetry compiles opts and evaluates failure against it.
func ShouldRetry(failure model.RetryableFailure, opts Options) (bool, error) {
	p, err := NewPolicy(opts)
	if err != nil {
		return false, err
	}
	return p.ShouldRetry(failure), nil
}
