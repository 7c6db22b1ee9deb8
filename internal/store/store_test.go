package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return New(db)
}

func TestCreateJob_DedupByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job1, created1, err := s.CreateJob(ctx, "T", "hash-1", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.True(t, created1)

	job2, created2, err := s.CreateJob(ctx, "T", "hash-1", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, job1.ID, job2.ID)
}

func TestClaim_OnlyOneWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job, _, err := s.CreateJob(ctx, "T", "hash-claim", []byte(`{}`))
	require.NoError(t, err)

	changed1, err := s.Claim(ctx, job.ID, "runner-1")
	require.NoError(t, err)
	changed2, err := s.Claim(ctx, job.ID, "runner-2")
	require.NoError(t, err)

	assert.True(t, changed1)
	assert.False(t, changed2)

	got, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClaimedBy)
	assert.Equal(t, "runner-1", *got.ClaimedBy)
	assert.Equal(t, StatusClaimed, got.Status)
}

func TestHeartbeat_WrongRunnerRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job, _, err := s.CreateJob(ctx, "T", "hash-hb", []byte(`{}`))
	require.NoError(t, err)
	_, err = s.Claim(ctx, job.ID, "runner-1")
	require.NoError(t, err)

	progress := 1
	changed, err := s.Heartbeat(ctx, job.ID, "runner-2", &progress, nil, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, got.Status)
	assert.Nil(t, got.ProgressCurrent)
}

func TestHeartbeat_CorrectRunnerAdvancesToInProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job, _, err := s.CreateJob(ctx, "T", "hash-hb2", []byte(`{}`))
	require.NoError(t, err)
	_, err = s.Claim(ctx, job.ID, "runner-1")
	require.NoError(t, err)

	cur, total := 1, 2
	console := "half"
	changed, err := s.Heartbeat(ctx, job.ID, "runner-1", &cur, &total, &console)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
	require.NotNil(t, got.ProgressCurrent)
	assert.Equal(t, 1, *got.ProgressCurrent)
}

func TestComplete_AfterTerminalRejectsFurtherTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job, _, err := s.CreateJob(ctx, "T", "hash-complete", []byte(`{}`))
	require.NoError(t, err)
	_, err = s.Claim(ctx, job.ID, "runner-1")
	require.NoError(t, err)

	changed, err := s.Complete(ctx, job.ID, "runner-1", []byte(`{"ok":true}`), nil)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Fail(ctx, job.ID, "runner-1", "late failure", nil)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestSweepStale_TransitionsToFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job, _, err := s.CreateJob(ctx, "T", "hash-stale", []byte(`{}`))
	require.NoError(t, err)
	_, err = s.Claim(ctx, job.ID, "runner-1")
	require.NoError(t, err)

	old := time.Now().UTC().Add(-200 * time.Second)
	require.NoError(t, s.db.Model(&Job{}).Where("id = ?", job.ID).Update("last_heartbeat", old).Error)

	n, err := s.SweepStale(ctx, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, TimeoutErrorMessage, *got.ErrorMessage)
}

func TestDeleteJob_UnknownIDReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.DeleteJob(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteJobs_PartialSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job, _, err := s.CreateJob(ctx, "T", "hash-batch", []byte(`{}`))
	require.NoError(t, err)

	results, err := s.DeleteJobs(ctx, []string{job.ID, "missing-id"})
	require.NoError(t, err)
	assert.True(t, results[job.ID])
	assert.False(t, results["missing-id"])
}

func TestRegisterRunner_UpsertPreservesRegisteredAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r1, err := s.RegisterRunner(ctx, "runner-1", "first-name", []byte(`["T"]`))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	r2, err := s.RegisterRunner(ctx, "runner-1", "renamed", []byte(`["T","U"]`))
	require.NoError(t, err)

	assert.Equal(t, r1.RegisteredAt.Unix(), r2.RegisteredAt.Unix())
	assert.Equal(t, "renamed", r2.Name)

	got, err := s.GetRunner(ctx, "runner-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
}

func TestGetByHash_NotFoundReturnsNilNoError(t *testing.T) {
	s := newTestStore(t)
	job, err := s.GetByHash(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestCreateJob_ConflictClassification(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _, err := s.CreateJob(ctx, "T", "hash-classified", []byte(`{}`))
	require.NoError(t, err)

	_, created, err := s.CreateJob(ctx, "T", "hash-classified", []byte(`{"different":true}`))
	require.NoError(t, err)
	assert.False(t, created)
}
