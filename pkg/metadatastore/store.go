package metadatastore

import (
	"context"
	"errors"

	"github.com/shipcost/shipcost/pkg/models"
)

var ErrRunNotFound = errors.New("run not found")

// RunStore is the interface for run ledger persistence.
// It records what each training run did; runs are never resumed from it.
type RunStore interface {
	// SaveRun inserts a run or replaces the stored state of an existing one
	SaveRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	// ListRuns returns the most recent runs first. limit <= 0 returns all.
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
	Close() error
}
