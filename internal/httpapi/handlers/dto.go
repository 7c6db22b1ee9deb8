package handlers

import (
	"encoding/json"
	"time"

	"github.com/magland/runpack/internal/store"
)

// jobView is the wire shape for a Job row. input_params/output_data are
// passed through as raw JSON so callers see exactly what they
// submitted/received.
type jobView struct {
	ID              string          `json:"id"`
	JobHash         string          `json:"job_hash"`
	JobType         string          `json:"job_type"`
	Status          store.JobStatus `json:"status"`
	InputParams     json.RawMessage `json:"input_params,omitempty"`
	OutputData      json.RawMessage `json:"output_data,omitempty"`
	ConsoleOutput   string          `json:"console_output,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	ClaimedBy       *string         `json:"claimed_by,omitempty"`
	ClaimedAt       *int64          `json:"claimed_at,omitempty"`
	ProgressCurrent *int            `json:"progress_current,omitempty"`
	ProgressTotal   *int            `json:"progress_total,omitempty"`
	LastHeartbeat   *int64          `json:"last_heartbeat,omitempty"`
	CreatedAt       int64           `json:"created_at"`
	UpdatedAt       int64           `json:"updated_at"`
}

// summaryView omits input/output/console for listing endpoints that don't
// need the full payload.
func summaryView(j store.Job) jobView {
	v := jobView{
		ID:              j.ID,
		JobHash:         j.JobHash,
		JobType:         j.JobType,
		Status:          j.Status,
		ErrorMessage:    j.ErrorMessage,
		ClaimedBy:       j.ClaimedBy,
		ProgressCurrent: j.ProgressCurrent,
		ProgressTotal:   j.ProgressTotal,
		CreatedAt:       j.CreatedAt.UnixMilli(),
		UpdatedAt:       j.UpdatedAt.UnixMilli(),
	}
	if j.ClaimedAt != nil {
		t := j.ClaimedAt.UnixMilli()
		v.ClaimedAt = &t
	}
	if j.LastHeartbeat != nil {
		t := j.LastHeartbeat.UnixMilli()
		v.LastHeartbeat = &t
	}
	return v
}

// detailView is summaryView plus the opaque payload fields.
func detailView(j store.Job) jobView {
	v := summaryView(j)
	if len(j.InputParams) > 0 {
		v.InputParams = json.RawMessage(j.InputParams)
	}
	if len(j.OutputData) > 0 {
		v.OutputData = json.RawMessage(j.OutputData)
	}
	v.ConsoleOutput = j.ConsoleOutput
	return v
}

type runnerView struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Capabilities json.RawMessage `json:"capabilities,omitempty"`
	RegisteredAt int64           `json:"registered_at"`
	LastSeen     int64           `json:"last_seen"`
	Active       bool            `json:"active"`
}

func timeNow() time.Time { return time.Now().UTC() }

func toRunnerView(r store.Runner) runnerView {
	v := runnerView{
		ID:           r.ID,
		Name:         r.Name,
		RegisteredAt: r.RegisteredAt.UnixMilli(),
		LastSeen:     r.LastSeen.UnixMilli(),
		Active:       r.Active(time.Now().UTC()),
	}
	if len(r.Capabilities) > 0 {
		v.Capabilities = json.RawMessage(r.Capabilities)
	}
	return v
}
