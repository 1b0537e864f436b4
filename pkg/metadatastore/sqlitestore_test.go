package metadatastore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipcost/shipcost/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveRunUpserts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	started := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	run := &models.RunRecord{
		ID:          "run-1",
		Timestamp:   "2024_05_01_10_30_00",
		Status:      models.RunStatusRunning,
		TriggerType: "manual",
		StartedAt:   started,
	}
	require.NoError(t, store.SaveRun(ctx, run))

	completed := started.Add(90 * time.Second)
	score, accepted := 0.91, true
	run.Status = models.RunStatusPublished
	run.CompletedAt = &completed
	run.ModelName = "RandomForestRegressor"
	run.CandidateScore = &score
	run.Accepted = &accepted
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPublished, got.Status)
	assert.Equal(t, "RandomForestRegressor", got.ModelName)
	require.NotNil(t, got.CandidateScore)
	assert.Equal(t, 0.91, *got.CandidateScore)
	assert.Equal(t, 90*time.Second, got.Duration())

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveRun(ctx, &models.RunRecord{
			ID:          id,
			Status:      models.RunStatusFailed,
			FailedStage: "ingestion",
			TriggerType: "scheduled",
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.Equal(t, "ingestion", runs[0].FailedStage)

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(ctx, &models.RunRecord{ID: "kept", Status: models.RunStatusSkippedPublish, StartedAt: time.Now()}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetRun(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSkippedPublish, got.Status)
}
