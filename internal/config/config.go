// Package config loads the coordinator's process-wide environment-supplied
// configuration: the three bearer credentials, freshness-probe tuning,
// sweep cadence, and HTTP listen address. There is no config-file/YAML
// surface — every setting is an env var with a sane default.
package config

import (
	"time"

	"github.com/magland/runpack/internal/envutil"
	"github.com/magland/runpack/internal/httpapi/middleware"
	"github.com/magland/runpack/internal/logger"
)

type Config struct {
	LogMode string

	Credentials middleware.Credentials

	FreshnessProbeTimeout  time.Duration
	FreshnessMaxConcurrent int
	StaleSweepCadence      time.Duration
	ServiceName            string
	OTelEnabled            bool
	HTTPAddr               string
}

func Load(log *logger.Logger) Config {
	return Config{
		LogMode: envutil.String("LOG_MODE", "development", log),
		Credentials: middleware.Credentials{
			Submit: envutil.String("SUBMIT_TOKEN", "", log),
			Runner: envutil.String("RUNNER_TOKEN", "", log),
			Admin:  envutil.String("ADMIN_TOKEN", "", log),
		},
		FreshnessProbeTimeout:  envutil.Duration("FRESHNESS_PROBE_TIMEOUT", 5*time.Second, log),
		FreshnessMaxConcurrent: envutil.Int("FRESHNESS_MAX_CONCURRENT", 8, log),
		StaleSweepCadence:      envutil.Duration("STALE_SWEEP_CADENCE", 30*time.Second, log),
		ServiceName:            envutil.String("SERVICE_NAME", "runpack-coordinator", log),
		OTelEnabled:            envutil.Bool("OTEL_ENABLED", false),
		HTTPAddr:               envutil.String("HTTP_ADDR", ":8080", log),
	}
}
