package retry

import (
	"errors"
	"fmt"
	"testing"

	messages "github.com/cucumber/messages/go/v21"

	"github.com/seantiz/cadence/internal/model"
)

var failedResult = &messages.TestStepResult{
	Status:   messages.TestStepResultStatus_FAILED,
	Duration: &messages.Duration{Seconds: 1},
}

func failure(attempt int, tagNames ...string) model.RetryableFailure {
	p := &messages.Pickle{Id: "pickle-1"}
	for _, n := range tagNames {
		p.Tags = append(p.Tags, &messages.PickleTag{Name: n, AstNodeId: "123"})
	}
	return model.RetryableFailure{Pickle: p, Attempt: attempt, Result: failedResult}
}

func TestShouldRetryTagFilterMismatch(t *testing.T) {
	for _, attempt := range []int{0, 1, 5} {
		got, err := ShouldRetry(failure(attempt, "@things"), Options{Retry: 2, RetryTagFilter: "@stuff"})
		if err != nil {
			t.Fatalf("ShouldRetry: %v", err)
		}
		if got {
			t.Errorf("attempt %d: ShouldRetry = true for a pickle outside the tag filter", attempt)
		}
	}
}

func TestShouldRetryTagFilterMatch(t *testing.T) {
	got, err := ShouldRetry(failure(0, "@stuff"), Options{Retry: 2, RetryTagFilter: "@stuff"})
	if err != nil {
		t.Fatalf("ShouldRetry: %v", err)
	}
	if !got {
		t.Error("ShouldRetry = false for a pickle matching the tag filter")
	}
}

func TestShouldRetryAttempts(t *testing.T) {
	tests := []struct {
		max, attempt int
		want         bool
	}{
		{2, 0, true},
		{2, 1, true},
		{2, 2, false},
		{2, 3, false},
		{0, 0, false},
		{1, 0, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%d/attempt=%d", tt.max, tt.attempt), func(t *testing.T) {
			got, err := ShouldRetry(failure(tt.attempt), Options{Retry: tt.max, RetryTagFilter: ""})
			if err != nil {
				t.Fatalf("ShouldRetry: %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldRetry = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRetryComplexFilter(t *testing.T) {
	opts := Options{Retry: 3, RetryTagFilter: "@flaky and not (@wip or @manual)"}
	tests := []struct {
		tags []string
		want bool
	}{
		{[]string{"@flaky"}, true},
		{[]string{"@flaky", "@wip"}, false},
		{[]string{"@manual"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		got, err := ShouldRetry(failure(0, tt.tags...), opts)
		if err != nil {
			t.Fatalf("ShouldRetry: %v", err)
		}
		if got != tt.want {
			t.Errorf("tags %v: ShouldRetry = %v, want %v", tt.tags, got, tt.want)
		}
	}
}

func TestShouldRetryIsDeterministic(t *testing.T) {
	p, err := NewPolicy(Options{Retry: 2, RetryTagFilter: "@stuff"})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	f := failure(1, "@stuff")
	first := p.ShouldRetry(f)
	for i := 0; i < 10; i++ {
		if p.ShouldRetry(f) != first {
			t.Fatal("repeated evaluation changed the decision")
		}
	}
}

func TestNewPolicyInvalid(t *testing.T) {
	tests := []Options{
		{Retry: -1},
		{Retry: 1, RetryTagFilter: "@a and"},
		{Retry: 1, RetryTagFilter: "(@a"},
	}
	for _, opts := range tests {
		if _, err := NewPolicy(opts); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("NewPolicy(%+v) error = %v, want ErrInvalidOptions", opts, err)
		}
	}
}
