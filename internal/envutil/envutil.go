// Package envutil reads typed configuration values out of the process
// environment with logged fallbacks to defaults.
package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/magland/runpack/internal/logger"
)

func String(key, def string, log *logger.Logger) string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		if log != nil {
			log.Debug("env var not set, using default", "key", key, "default", def)
		}
		return def
	}
	return val
}

func Int(key string, def int, log *logger.Logger) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		if log != nil {
			log.Warn("env var not parseable as int, using default", "key", key, "value", val, "default", def)
		}
		return def
	}
	return n
}

func Duration(key string, def time.Duration, log *logger.Logger) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		if log != nil {
			log.Warn("env var not parseable as duration, using default", "key", key, "value", val, "default", def)
		}
		return def
	}
	return d
}

func Bool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return strings.EqualFold(val, "true") || val == "1" || strings.EqualFold(val, "yes")
}
