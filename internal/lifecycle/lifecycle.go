// Package lifecycle implements the job and runner state machines: the
// submit/check dedup algorithm, the claim/heartbeat/complete/fail
// transition system, and the stale-heartbeat sweep. The Store is pure
// infrastructure; this package is where the rules live.
package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/magland/runpack/internal/apperr"
	"github.com/magland/runpack/internal/identity"
	"github.com/magland/runpack/internal/logger"
	"github.com/magland/runpack/internal/notify"
	"github.com/magland/runpack/internal/store"
	"github.com/magland/runpack/internal/validate"
)

type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeCached   Outcome = "cached"
	OutcomeInFlight Outcome = "in_flight"
	OutcomeFailed   Outcome = "failed"
	OutcomeExpired  Outcome = "expired"
	OutcomeNotFound Outcome = "not_found"
)

type SubmitResult struct {
	Outcome Outcome
	Job     *store.Job
}

type Engine struct {
	store    *store.Store
	prober   *validate.Prober
	notifier *notify.Notifier
	log      *logger.Logger
}

func New(st *store.Store, prober *validate.Prober, notifier *notify.Notifier, log *logger.Logger) *Engine {
	return &Engine{store: st, prober: prober, notifier: notifier, log: log.With("component", "LifecycleEngine")}
}

// Submit implements the submission algorithm: hash the (jobType, params)
// pair, look up an existing job by that hash, and either create one or
// resolve the existing row's current outcome. When create is false it
// behaves as "check": identical logic, but never inserts a row
// (OutcomeNotFound replaces "create then return 201").
func (e *Engine) Submit(ctx context.Context, jobType string, rawParams json.RawMessage, create bool) (*SubmitResult, error) {
	if err := validate.JobType(jobType); err != nil {
		return nil, err
	}
	var decodedParams any
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &decodedParams); err != nil {
			return nil, apperr.New(apperr.CodeValidation, "lifecycle.Submit", "input_params must be valid JSON")
		}
	}
	if err := validate.InputParams(rawParams); err != nil {
		return nil, err
	}

	hash, err := identity.Hash(jobType, decodedParams)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "lifecycle.Submit", err)
	}

	existing, err := e.store.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if !create {
			return &SubmitResult{Outcome: OutcomeNotFound}, nil
		}
		job, created, err := e.store.CreateJob(ctx, jobType, hash, datatypes.JSON(rawParams))
		if err != nil {
			return nil, err
		}
		if created {
			e.notifier.NotifyNewJob(ctx, job.ID, job.JobHash, job.JobType)
			return &SubmitResult{Outcome: OutcomeCreated, Job: job}, nil
		}
		existing = job
	}

	return e.resolveExisting(ctx, existing)
}

func (e *Engine) resolveExisting(ctx context.Context, job *store.Job) (*SubmitResult, error) {
	switch job.Status {
	case store.StatusCompleted:
		if e.prober.IsFresh(ctx, job.OutputData) {
			return &SubmitResult{Outcome: OutcomeCached, Job: job}, nil
		}
		if _, err := e.store.DeleteJob(ctx, job.ID); err != nil {
			return nil, err
		}
		return &SubmitResult{Outcome: OutcomeExpired, Job: job}, nil
	case store.StatusFailed:
		return &SubmitResult{Outcome: OutcomeFailed, Job: job}, nil
	default:
		return &SubmitResult{Outcome: OutcomeInFlight, Job: job}, nil
	}
}

// GetByID is the plain status-by-id read used by GET /api/jobs/{id}.
func (e *Engine) GetByID(ctx context.Context, id string) (*store.Job, error) {
	job, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperr.New(apperr.CodeNotFound, "lifecycle.GetByID", "job not found")
	}
	return job, nil
}

// Claim performs pending -> claimed. On a losing race it returns a
// CodeConflict error with the job body unchanged by this call.
func (e *Engine) Claim(ctx context.Context, jobID, runnerID string) (*store.Job, error) {
	changed, err := e.store.Claim(ctx, jobID, runnerID)
	if err != nil {
		return nil, err
	}
	job, getErr := e.store.GetByID(ctx, jobID)
	if getErr != nil {
		return nil, getErr
	}
	if job == nil {
		return nil, apperr.New(apperr.CodeNotFound, "lifecycle.Claim", "job not found")
	}
	if !changed {
		return nil, apperr.New(apperr.CodeConflict, "lifecycle.Claim", "job already claimed")
	}
	return job, nil
}

// Heartbeat implements claimed|in_progress -> in_progress.
func (e *Engine) Heartbeat(ctx context.Context, jobID, runnerID string, progressCurrent, progressTotal *int, console *string) (*store.Job, error) {
	if console != nil {
		if err := validate.ConsoleOutput(*console); err != nil {
			return nil, err
		}
	}
	changed, err := e.store.Heartbeat(ctx, jobID, runnerID, progressCurrent, progressTotal, console)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, e.preconditionError(ctx, "lifecycle.Heartbeat", jobID, runnerID)
	}
	return e.store.GetByID(ctx, jobID)
}

// Complete implements claimed|in_progress -> completed.
func (e *Engine) Complete(ctx context.Context, jobID, runnerID string, output json.RawMessage, console *string) (*store.Job, error) {
	if err := validate.OutputData(output); err != nil {
		return nil, err
	}
	if console != nil {
		if err := validate.ConsoleOutput(*console); err != nil {
			return nil, err
		}
	}
	changed, err := e.store.Complete(ctx, jobID, runnerID, datatypes.JSON(output), console)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, e.preconditionError(ctx, "lifecycle.Complete", jobID, runnerID)
	}
	return e.store.GetByID(ctx, jobID)
}

// Fail implements claimed|in_progress -> failed.
func (e *Engine) Fail(ctx context.Context, jobID, runnerID, errMessage string, console *string) (*store.Job, error) {
	if err := validate.ErrorMessage(errMessage); err != nil {
		return nil, err
	}
	if console != nil {
		if err := validate.ConsoleOutput(*console); err != nil {
			return nil, err
		}
	}
	changed, err := e.store.Fail(ctx, jobID, runnerID, errMessage, console)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, e.preconditionError(ctx, "lifecycle.Fail", jobID, runnerID)
	}
	return e.store.GetByID(ctx, jobID)
}

// preconditionError distinguishes "wrong runner" from "job already
// terminal" for a clearer 400 body.
func (e *Engine) preconditionError(ctx context.Context, op, jobID, runnerID string) error {
	job, err := e.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return apperr.New(apperr.CodeNotFound, op, "job not found")
	}
	if job.ClaimedBy == nil || *job.ClaimedBy != runnerID {
		return apperr.New(apperr.CodeValidation, op, "not claimed by this runner")
	}
	return apperr.New(apperr.CodeValidation, op, "job is not in a live state")
}

// Sweep fails every claimed/in_progress job whose heartbeat is stale. It is
// safe to call concurrently and repeatedly; the WHERE clause means repeat
// calls after the first are no-ops.
func (e *Engine) Sweep(ctx context.Context) (int64, error) {
	n, err := e.store.SweepStale(ctx, store.StaleHeartbeatThreshold)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.log.Info("swept stale jobs", "count", n)
	}
	return n, nil
}

// RunSweeper starts the periodic background sweep; it blocks until ctx is
// canceled.
func (e *Engine) RunSweeper(ctx context.Context, cadence time.Duration) {
	if cadence <= 0 {
		cadence = store.StaleSweepCadence
	}
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()
	if _, err := e.Sweep(ctx); err != nil {
		e.log.Warn("startup sweep failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Sweep(ctx); err != nil {
				e.log.Warn("periodic sweep failed", "error", err)
			}
		}
	}
}

// RegisterRunner and friends delegate straight to the store; they carry no
// extra lifecycle rules of their own.
func (e *Engine) RegisterRunner(ctx context.Context, id, name string, capabilities []string) (*store.Runner, error) {
	caps, err := json.Marshal(capabilities)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "lifecycle.RegisterRunner", err)
	}
	return e.store.RegisterRunner(ctx, id, name, datatypes.JSON(caps))
}

func (e *Engine) VerifyRunner(ctx context.Context, id string) (*store.Runner, error) {
	runner, err := e.store.GetRunner(ctx, id)
	if err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, apperr.New(apperr.CodeNotFound, "lifecycle.VerifyRunner", "runner not found")
	}
	return runner, nil
}

func (e *Engine) ListAvailable(ctx context.Context, types []string, limit int) ([]store.Job, error) {
	return e.store.ListAvailable(ctx, types, limit)
}

func (e *Engine) ListAll(ctx context.Context, status *store.JobStatus, limit int) ([]store.Job, error) {
	return e.store.ListAll(ctx, status, limit)
}

func (e *Engine) StatsByStatus(ctx context.Context) (map[store.JobStatus]int64, error) {
	return e.store.StatsByStatus(ctx)
}

func (e *Engine) ListRunners(ctx context.Context) ([]store.Runner, error) {
	return e.store.ListRunners(ctx)
}

func (e *Engine) ListJobsByRunner(ctx context.Context, runnerID string) ([]store.Job, error) {
	return e.store.ListByRunner(ctx, runnerID)
}

func (e *Engine) DeleteJob(ctx context.Context, id string) (bool, error) {
	return e.store.DeleteJob(ctx, id)
}

func (e *Engine) DeleteJobs(ctx context.Context, ids []string) (map[string]bool, error) {
	return e.store.DeleteJobs(ctx, ids)
}

func (e *Engine) TouchRunner(ctx context.Context, id string) error {
	return e.store.TouchRunner(ctx, id)
}
