package store

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus is the lifecycle state of a job row, persisted as-is.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusClaimed    JobStatus = "claimed"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusExpired    JobStatus = "expired"
)

// Job is the persistent record backing one (job_type, input_params) unit of
// deferred computation. Every multi-field transition below is driven
// through a single conditional UPDATE ... WHERE, never a read-modify-write
// pair, so concurrent callers cannot double-claim or clobber a terminal
// state (see Store.Claim / Heartbeat / Complete / Fail).
type Job struct {
	ID       string    `gorm:"type:varchar(36);primaryKey"`
	JobHash  string    `gorm:"uniqueIndex;size:64;not null"`
	JobType  string    `gorm:"index;size:255;not null"`
	Status   JobStatus `gorm:"index;size:32;not null"`

	InputParams datatypes.JSON `gorm:"type:jsonb"`
	OutputData  datatypes.JSON `gorm:"type:jsonb"`

	ConsoleOutput string  `gorm:"type:text"`
	ErrorMessage  *string `gorm:"type:text"`

	ClaimedBy *string `gorm:"index;size:36"`
	ClaimedAt *time.Time

	ProgressCurrent *int
	ProgressTotal   *int

	LastHeartbeat *time.Time

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// Runner is an external worker process's registration record. The
// coordinator never pushes work to it; it only tracks the last time the
// runner was heard from, from which "active" is derived at read time
// (Runner.Active), never stored.
type Runner struct {
	ID           string         `gorm:"type:varchar(36);primaryKey"`
	Name         string         `gorm:"size:255"`
	Capabilities datatypes.JSON `gorm:"type:jsonb"`

	RegisteredAt time.Time
	LastSeen     time.Time `gorm:"index"`
}

// ActiveWindow is the duration after which a runner that hasn't been seen
// is considered inactive.
const ActiveWindow = 5 * time.Minute

// Active reports whether the runner has been seen within ActiveWindow of
// now. This is always computed, never stored.
func (r Runner) Active(now time.Time) bool {
	return now.Sub(r.LastSeen) < ActiveWindow
}

// StaleHeartbeatThreshold is the duration after which a claimed/in-progress
// job with no heartbeat is considered stalled.
const StaleHeartbeatThreshold = 90 * time.Second

// StaleSweepCadence is how often the background sweeper runs; it must stay
// comfortably under StaleHeartbeatThreshold so no job sits stuck much past
// the threshold between ticks.
const StaleSweepCadence = 30 * time.Second

const TimeoutErrorMessage = "Job timed out - no heartbeat received"
