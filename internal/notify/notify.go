// Package notify implements the coordinator's one-way, best-effort outbound
// event on job creation: an env-loaded Config, a bounded http.Client, and a
// typed request body posted to a generic event relay.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/magland/runpack/internal/envutil"
	"github.com/magland/runpack/internal/httpx"
	"github.com/magland/runpack/internal/logger"
)

type Config struct {
	RelayURL   string
	PublishKey string
	Timeout    time.Duration
}

func ConfigFromEnv(log *logger.Logger) Config {
	timeoutSec := envutil.Int("NOTIFY_TIMEOUT_SECONDS", 5, log)
	return Config{
		RelayURL:   strings.TrimSpace(envutil.String("NOTIFY_RELAY_URL", "", log)),
		PublishKey: strings.TrimSpace(envutil.String("NOTIFY_PUBLISH_KEY", "", log)),
		Timeout:    time.Duration(timeoutSec) * time.Second,
	}
}

// NewJobEvent is the fixed event shape announced on job creation.
type NewJobEvent struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	JobHash   string `json:"job_hash"`
	JobType   string `json:"job_type"`
	Timestamp int64  `json:"timestamp"`
}

// Notifier posts NewJobEvents to a fixed topic on an external relay. It is
// a one-way sink, not a queue: no retry logic, since that would add latency
// to the submit path it's called from.
type Notifier struct {
	cfg    Config
	client *http.Client
	log    *logger.Logger
}

// New returns nil if no relay URL is configured, so callers can treat a nil
// *Notifier as "silently disabled" without a feature flag.
func New(cfg Config, log *logger.Logger) *Notifier {
	if cfg.RelayURL == "" {
		return nil
	}
	return &Notifier{
		cfg:    cfg,
		client: httpx.NewClient(cfg.Timeout),
		log:    log.With("component", "Notifier"),
	}
}

// NotifyNewJob fires the event and swallows every failure: a dead relay
// must never fail a submission.
func (n *Notifier) NotifyNewJob(ctx context.Context, jobID, jobHash, jobType string) {
	if n == nil {
		return
	}
	event := NewJobEvent{
		Type:      "new_job",
		JobID:     jobID,
		JobHash:   jobHash,
		JobType:   jobType,
		Timestamp: time.Now().UTC().UnixMilli(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		n.log.Warn("failed to marshal notify event", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.RelayURL, bytes.NewReader(body))
	if err != nil {
		n.log.Warn("failed to build notify request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.PublishKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", n.cfg.PublishKey))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("notify relay request failed", "error", err, "job_id", jobID)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.log.Warn("notify relay returned non-2xx", "status", resp.StatusCode, "job_id", jobID)
	}
}
