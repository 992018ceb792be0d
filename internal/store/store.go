package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/seantiz/cadence/internal/model"
)

// ErrInvalidTransition is returned when a run status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// RunStats holds aggregate run statistics.
type RunStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	Messages      int            `json:"messages"`
	AvgAttempts   float64        `json:"avg_attempts"`
}

// Store defines the persistence operations for the run journal.
type Store interface {
	CreateRun(ctx context.Context, r *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error)
	UpdateRunStatus(ctx context.Context, id, status string) error
	FinishRun(ctx context.Context, r *model.Run) error
	GetRunStats(ctx context.Context) (*RunStats, error)
	InsertMessage(ctx context.Context, runID string, seq int, msgType string, payload json.RawMessage) error
	GetMessages(ctx context.Context, runID string) ([]model.MessageRecord, error)
	Close() error
}
