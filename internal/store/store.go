// Package store is the coordinator's only shared mutable resource. Every
// multi-field transition is expressed as a single conditional
// UPDATE ... WHERE against gorm (Where(...).Updates(...), then inspect
// RowsAffected) so concurrent callers race on the database row, never on
// in-process state.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/magland/runpack/internal/apperr"
	"github.com/magland/runpack/internal/identity"
)

// Store is the persistence contract the lifecycle engine depends on. It
// never parses input_params/output_data; they are opaque JSON blobs to it.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new pending job. If a row with the same job_hash
// already exists (a racing submit beat this one to the unique index), it
// returns that existing row instead of erroring loudly — the caller
// (lifecycle.Submit) falls into the "already exists" path exactly as if it
// had found the row on the initial lookup.
func (s *Store) CreateJob(ctx context.Context, jobType, jobHash string, inputParams datatypes.JSON) (job *Job, created bool, err error) {
	row := &Job{
		ID:          identity.NewID(),
		JobHash:     jobHash,
		JobType:     jobType,
		Status:      StatusPending,
		InputParams: inputParams,
	}
	err = s.db.WithContext(ctx).Create(row).Error
	if err == nil {
		return row, true, nil
	}

	classified := apperr.Classify("store.CreateJob", err)
	if !apperr.Is(classified, apperr.CodeConflict) {
		return nil, false, classified
	}

	existing, getErr := s.GetByHash(ctx, jobHash)
	if getErr != nil {
		return nil, false, getErr
	}
	if existing == nil {
		// The row vanished between the insert conflict and our re-read
		// (concurrent delete); surface the original conflict.
		return nil, false, classified
	}
	return existing, false, nil
}

func (s *Store) GetByHash(ctx context.Context, jobHash string) (*Job, error) {
	var job Job
	err := s.db.WithContext(ctx).Where("job_hash = ?", jobHash).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Classify("store.GetByHash", err)
	}
	return &job, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Classify("store.GetByID", err)
	}
	return &job, nil
}

func (s *Store) ListByRunner(ctx context.Context, runnerID string) ([]Job, error) {
	var jobs []Job
	err := s.db.WithContext(ctx).
		Where("claimed_by = ?", runnerID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, apperr.Classify("store.ListByRunner", err)
	}
	return jobs, nil
}

// ListAvailable returns pending jobs whose job_type is in types, oldest
// first (FIFO by creation time; there is no priority ordering).
func (s *Store) ListAvailable(ctx context.Context, types []string, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Where("status = ?", StatusPending)
	if len(types) > 0 {
		q = q.Where("job_type IN ?", types)
	}
	var jobs []Job
	if err := q.Order("created_at ASC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, apperr.Classify("store.ListAvailable", err)
	}
	return jobs, nil
}

func (s *Store) ListAll(ctx context.Context, status *JobStatus, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.db.WithContext(ctx)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var jobs []Job
	if err := q.Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, apperr.Classify("store.ListAll", err)
	}
	return jobs, nil
}

func (s *Store) StatsByStatus(ctx context.Context) (map[JobStatus]int64, error) {
	type row struct {
		Status JobStatus
		Count  int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&Job{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, apperr.Classify("store.StatsByStatus", err)
	}
	out := make(map[JobStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// Claim performs the pending -> claimed transition. It returns changed=false
// (no error) when another caller already claimed or the job no longer
// exists/is no longer pending — the precondition in the WHERE clause is the
// whole of the concurrency control.
func (s *Store) Claim(ctx context.Context, jobID, runnerID string) (changed bool, err error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", jobID, StatusPending).
		Updates(map[string]any{
			"status":         StatusClaimed,
			"claimed_by":     runnerID,
			"claimed_at":     now,
			"last_heartbeat": now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, apperr.Classify("store.Claim", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Heartbeat advances a claimed/in-progress job. Preconditions mirror the
// transition table: the caller's runner id must match claimed_by and the
// job must still be in a live state.
func (s *Store) Heartbeat(ctx context.Context, jobID, runnerID string, progressCurrent, progressTotal *int, console *string) (changed bool, err error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":         StatusInProgress,
		"last_heartbeat": now,
		"updated_at":     now,
	}
	if progressCurrent != nil {
		updates["progress_current"] = *progressCurrent
	}
	if progressTotal != nil {
		updates["progress_total"] = *progressTotal
	}
	if console != nil {
		updates["console_output"] = *console
	}
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND claimed_by = ? AND status IN ?", jobID, runnerID, []JobStatus{StatusClaimed, StatusInProgress}).
		Updates(updates)
	if res.Error != nil {
		return false, apperr.Classify("store.Heartbeat", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) Complete(ctx context.Context, jobID, runnerID string, output datatypes.JSON, console *string) (changed bool, err error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":         StatusCompleted,
		"output_data":    output,
		"last_heartbeat": now,
		"updated_at":     now,
	}
	if console != nil {
		updates["console_output"] = *console
	}
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND claimed_by = ? AND status IN ?", jobID, runnerID, []JobStatus{StatusClaimed, StatusInProgress}).
		Updates(updates)
	if res.Error != nil {
		return false, apperr.Classify("store.Complete", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) Fail(ctx context.Context, jobID, runnerID, errMessage string, console *string) (changed bool, err error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":         StatusFailed,
		"error_message":  errMessage,
		"last_heartbeat": now,
		"updated_at":     now,
	}
	if console != nil {
		updates["console_output"] = *console
	}
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND claimed_by = ? AND status IN ?", jobID, runnerID, []JobStatus{StatusClaimed, StatusInProgress}).
		Updates(updates)
	if res.Error != nil {
		return false, apperr.Classify("store.Fail", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SweepStale bulk-transitions any claimed/in-progress job whose
// last_heartbeat is older than threshold to failed, with the fixed timeout
// message. It returns the number of jobs swept.
func (s *Store) SweepStale(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("status IN ? AND last_heartbeat < ?", []JobStatus{StatusClaimed, StatusInProgress}, cutoff).
		Updates(map[string]any{
			"status":        StatusFailed,
			"error_message": TimeoutErrorMessage,
			"updated_at":    now,
		})
	if res.Error != nil {
		return 0, apperr.Classify("store.SweepStale", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Job{})
	if res.Error != nil {
		return false, apperr.Classify("store.DeleteJob", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteJobs deletes each id independently and reports per-id success, so a
// batch with some unknown ids still deletes the valid ones.
func (s *Store) DeleteJobs(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		ok, err := s.DeleteJob(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("delete job %s: %w", id, err)
		}
		out[id] = ok
	}
	return out, nil
}

// RegisterRunner upserts by id: a runner re-registering with the same id
// replaces its name/capabilities and refreshes last_seen.
func (s *Store) RegisterRunner(ctx context.Context, id, name string, capabilities datatypes.JSON) (*Runner, error) {
	now := time.Now().UTC()
	if id == "" {
		id = identity.NewID()
	}
	runner := &Runner{
		ID:           id,
		Name:         name,
		Capabilities: capabilities,
		RegisteredAt: now,
		LastSeen:     now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Runner
		err := tx.Where("id = ?", id).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(runner).Error
		case err != nil:
			return err
		default:
			runner.RegisteredAt = existing.RegisteredAt
			return tx.Model(&Runner{}).Where("id = ?", id).Updates(map[string]any{
				"name":         name,
				"capabilities": capabilities,
				"last_seen":    now,
			}).Error
		}
	})
	if err != nil {
		return nil, apperr.Classify("store.RegisterRunner", err)
	}
	return runner, nil
}

func (s *Store) TouchRunner(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Runner{}).
		Where("id = ?", id).
		Update("last_seen", time.Now().UTC())
	if res.Error != nil {
		return apperr.Classify("store.TouchRunner", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.CodeNotFound, "store.TouchRunner", "runner not found")
	}
	return nil
}

func (s *Store) GetRunner(ctx context.Context, id string) (*Runner, error) {
	var runner Runner
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&runner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Classify("store.GetRunner", err)
	}
	return &runner, nil
}

func (s *Store) ListRunners(ctx context.Context) ([]Runner, error) {
	var runners []Runner
	if err := s.db.WithContext(ctx).Order("last_seen DESC").Find(&runners).Error; err != nil {
		return nil, apperr.Classify("store.ListRunners", err)
	}
	return runners, nil
}
