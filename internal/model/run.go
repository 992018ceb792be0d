package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	messages "github.com/cucumber/messages/go/v21"
)

// Run status constants.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusPassed: true,
		StatusFailed: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether status ends a run.
func Terminal(status string) bool {
	return status == StatusPassed || status == StatusFailed
}

// Run is the journal record of a single test run.
type Run struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Operation    Operation  `json:"operation"`
	PickleCount  int        `json:"pickle_count"`
	AttemptCount int        `json:"attempt_count"`
	Success      *bool      `json:"success,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// MessageRecord is one envelope persisted for a run.
type MessageRecord struct {
	ID        int64           `json:"id"`
	RunID     string          `json:"run_id"`
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EnvelopeType returns the JSON name of the populated field of env, such as
// "testCaseFinished". It returns "unknown" when no field is set.
func EnvelopeType(env *messages.Envelope) string {
	if env == nil {
		return "unknown"
	}
	v := reflect.ValueOf(env).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() != reflect.Pointer || f.IsNil() {
			continue
		}
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" {
			name = t.Field(i).Name
		}
		return name
	}
	return "unknown"
}

// Timestamp converts t into the message schema representation.
func Timestamp(t time.Time) *messages.Timestamp {
	return &messages.Timestamp{
		Seconds: t.Unix(),
		Nanos:   int64(t.Nanosecond()),
	}
}

// Duration converts d into the message schema representation.
func Duration(d time.Duration) *messages.Duration {
	return &messages.Duration{
		Seconds: int64(d / time.Second),
		Nanos:   int64(d % time.Second),
	}
}

// Failed reports whether result is a failure eligible for retry. Pending,
// undefined and ambiguous steps fail a run but are never retried.
func Failed(result *messages.TestStepResult) bool {
	return result != nil && result.Status == messages.TestStepResultStatus_FAILED
}

// Succeeded reports whether result leaves the run passing.
func Succeeded(result *messages.TestStepResult) bool {
	if result == nil {
		return false
	}
	return result.Status == messages.TestStepResultStatus_PASSED ||
		result.Status == messages.TestStepResultStatus_SKIPPED
}
