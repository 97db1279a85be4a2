package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keizerzilla/latin/internal/recognition"
	"github.com/keizerzilla/latin/internal/timeutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSummaries() []recognition.Summary {
	return []recognition.Summary{
		{
			Protocol: "NonNeutralRank", Classifier: "KNN_euclidean", RatePercent: 96.5,
			TrainRows: 105, TestRows: 453,
			Results: map[string]recognition.ClassificationResult{
				"KNN_euclidean": {Classifier: "KNN_euclidean", RecognitionRate: 0.965, Elapsed: 2 * time.Second},
				"SVM_radial":    {Classifier: "SVM_radial", Err: errors.New("empty test set")},
			},
		},
		{
			Protocol: "ROC3", Classifier: "GaussianNB", RatePercent: 88.1,
			TrainRows: 299, TestRows: 453,
			Results: map[string]recognition.ClassificationResult{
				"GaussianNB": {Classifier: "GaussianNB", RecognitionRate: 0.881, Elapsed: time.Millisecond},
			},
		},
	}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	db := openTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// A second migration pass is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	db, err := Open(path)
	require.NoError(t, err)
	id, err := NewResultStore(db, nil).SaveRun(context.Background(), "a.dat", sampleSummaries())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	run, err := NewResultStore(db, nil).GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "a.dat", run.FeaturesPath)
}

func TestResultStore_SaveAndRead(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	store := NewResultStore(openTestDB(t), clock)

	id, err := store.SaveRun(ctx, "results/bosphorus-c60/neutral-zernike.dat", sampleSummaries())
	require.NoError(t, err)
	require.Len(t, id, 36)

	run, err := store.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Run{RunID: id, FeaturesPath: "results/bosphorus-c60/neutral-zernike.dat", CreatedAt: 1700000000 * int64(time.Second)}, *run)

	sums, err := store.Summaries(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []SummaryRow{
		{Protocol: "NonNeutralRank", Classifier: "KNN_euclidean", RatePercent: 96.5, TrainRows: 105, TestRows: 453},
		{Protocol: "ROC3", Classifier: "GaussianNB", RatePercent: 88.1, TrainRows: 299, TestRows: 453},
	}, sums)

	rows, err := store.ClassifierResults(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []ClassifierRow{
		{Protocol: "NonNeutralRank", Classifier: "KNN_euclidean", RecognitionRate: 0.965, Elapsed: 2 * time.Second},
		{Protocol: "NonNeutralRank", Classifier: "SVM_radial", Error: "empty test set"},
		{Protocol: "ROC3", Classifier: "GaussianNB", RecognitionRate: 0.881, Elapsed: time.Millisecond},
	}, rows)
}

func TestResultStore_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	store := NewResultStore(openTestDB(t), clock)

	first, err := store.SaveRun(ctx, "first.dat", nil)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := store.SaveRun(ctx, "second.dat", nil)
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].RunID)
	assert.Equal(t, first, runs[1].RunID)
}

func TestResultStore_DeleteRun(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore(openTestDB(t), nil)

	id, err := store.SaveRun(ctx, "a.dat", sampleSummaries())
	require.NoError(t, err)
	require.NoError(t, store.DeleteRun(ctx, id))

	_, err = store.GetRun(ctx, id)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	rows, err := store.ClassifierResults(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rows)

	err = store.DeleteRun(ctx, id)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryOnBusy(func() error {
		calls++
		return errors.New("no such table: rank_runs")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
