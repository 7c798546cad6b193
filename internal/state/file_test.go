package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonstopautomation/service-fusion/internal/common/logger"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync_state.json")
	return NewFileStore(path, 24*time.Hour, logger.NewTestLogger(t))
}

func TestFileStore_CursorRoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	cursor := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, store.SetLastPoll(ctx, KindJobs, cursor))

	got, err := store.LastPoll(ctx, KindJobs)
	require.NoError(t, err)
	assert.True(t, got.Equal(cursor), "got %v, want %v", got, cursor)
}

func TestFileStore_CursorsAreIndependent(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	jobCursor := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	custCursor := time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetLastPoll(ctx, KindJobs, jobCursor))
	require.NoError(t, store.SetLastPoll(ctx, KindCustomers, custCursor))

	got, err := store.LastPoll(ctx, KindJobs)
	require.NoError(t, err)
	assert.True(t, got.Equal(jobCursor))

	got, err = store.LastPoll(ctx, KindCustomers)
	require.NoError(t, err)
	assert.True(t, got.Equal(custCursor))
}

func TestFileStore_MissingFileFallsBackToLookback(t *testing.T) {
	store := newTestFileStore(t)

	got, err := store.LastPoll(context.Background(), KindJobs)
	require.NoError(t, err)

	want := time.Now().UTC().Add(-24 * time.Hour)
	assert.WithinDuration(t, want, got, 5*time.Second)
}

func TestFileStore_CorruptFileFallsBackToLookback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path, 24*time.Hour, logger.NewTestLogger(t))
	got, err := store.LastPoll(context.Background(), KindEstimates)
	require.NoError(t, err)

	want := time.Now().UTC().Add(-24 * time.Hour)
	assert.WithinDuration(t, want, got, 5*time.Second)
}

func TestFileStore_Counters(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.IncrementCounters(ctx, map[string]int64{
		CounterTotalChecks:      1,
		ChecksCounter(KindJobs): 1,
	}))
	require.NoError(t, store.IncrementCounters(ctx, map[string]int64{
		CounterTotalChecks:       1,
		CounterTotalUpdatesFound: 3,
	}))

	counters, err := store.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counters[CounterTotalChecks])
	assert.Equal(t, int64(1), counters[ChecksCounter(KindJobs)])
	assert.Equal(t, int64(3), counters[CounterTotalUpdatesFound])
}

func TestFileStore_StateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync_state.json")
	ctx := context.Background()

	first := NewFileStore(path, 24*time.Hour, logger.NewTestLogger(t))
	cursor := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, first.SetLastPoll(ctx, KindCustomers, cursor))
	require.NoError(t, first.IncrementCounters(ctx, map[string]int64{CounterTotalChecks: 5}))

	second := NewFileStore(path, 24*time.Hour, logger.NewTestLogger(t))
	got, err := second.LastPoll(ctx, KindCustomers)
	require.NoError(t, err)
	assert.True(t, got.Equal(cursor))

	counters, err := second.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), counters[CounterTotalChecks])
}
