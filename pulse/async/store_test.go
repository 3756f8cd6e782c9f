package async

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/dirjobs/errors"
	dirtest "github.com/teranos/dirjobs/internal/testing"
	"github.com/teranos/dirjobs/pulse/monitor"
)

func TestHistoryStoreRecordAndGet(t *testing.T) {
	store := NewHistoryStore(dirtest.CreateTestDB(t))
	ctx := context.Background()

	submitted := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	rec := HistoryRecord{
		ID:             "job-1",
		Name:           "Delete entries",
		JobType:        "delete",
		Status:         JobStatusFailed,
		Result:         "ok",
		ExternalResult: "error",
		Message:        "entry is locked",
		LockIDs:        []string{"ldap.example.com:389"},
		SubmittedAt:    submitted,
		StartedAt:      submitted.Add(time.Second),
		FinishedAt:     submitted.Add(3 * time.Second),
	}
	require.NoError(t, store.Record(ctx, rec))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, rec.ExternalResult, got.ExternalResult)
	assert.Equal(t, rec.Message, got.Message)
	assert.Equal(t, rec.LockIDs, got.LockIDs)
	assert.True(t, rec.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 2*time.Second, got.Duration())

	_, err = store.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestHistoryStoreNeverStarted(t *testing.T) {
	store := NewHistoryStore(dirtest.CreateTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Record(ctx, HistoryRecord{
		ID: "job-2", Name: "Cancelled early", JobType: "x",
		Status: JobStatusCancelled, Result: "cancelled", ExternalResult: "cancelled",
		SubmittedAt: now, FinishedAt: now,
	}))

	got, err := store.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.True(t, got.StartedAt.IsZero())
	assert.Zero(t, got.Duration())
	assert.Empty(t, got.LockIDs)
	assert.Empty(t, got.Message)
}

func TestHistoryStoreListAndPrune(t *testing.T) {
	store := NewHistoryStore(dirtest.CreateTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	statuses := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCompleted}
	for i, status := range statuses {
		finished := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Record(ctx, HistoryRecord{
			ID: string(rune('a' + i)), Name: "job", JobType: "x",
			Status: status, Result: "ok", ExternalResult: "ok",
			SubmittedAt: finished, FinishedAt: finished,
		}))
	}

	all, err := store.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")

	completed, err := store.List(ctx, JobStatusCompleted, 10)
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	limited, err := store.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	removed, err := store.Prune(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestSchedulerRecordsHistory(t *testing.T) {
	store := NewHistoryStore(dirtest.CreateTestDB(t))
	s := newTestScheduler(t, testConfig(), Options{History: store})

	h, err := s.Submit(Descriptor{
		Name:          "Modify entry",
		Type:          "modify",
		LockedObjects: []interface{}{"ldap.example.com:389"},
		Payload: Plain(RunFunc(func(context.Context, monitor.Monitor) error {
			return errors.New("no such object")
		})),
	})
	require.NoError(t, err)
	h.Join()

	rec, err := store.Get(context.Background(), h.ID())
	require.NoError(t, err)
	assert.Equal(t, "Modify entry", rec.Name)
	assert.Equal(t, "modify", rec.JobType)
	assert.Equal(t, JobStatusFailed, rec.Status)
	assert.Equal(t, "error", rec.Result)
	assert.Equal(t, "no such object", rec.Message)
	assert.Equal(t, []string{"ldap.example.com:389"}, rec.LockIDs)
	assert.False(t, rec.StartedAt.IsZero())
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, HistoryRecord) error {
	return errors.New("database is locked")
}

func TestHistoryFailureDoesNotAffectResult(t *testing.T) {
	s := newTestScheduler(t, testConfig(), Options{History: failingRecorder{}})

	h, err := s.Submit(Descriptor{Name: "fine", Payload: Plain(noop{})})
	require.NoError(t, err)
	assert.True(t, h.Join().IsOk())
}
