// Package validate holds the coordinator's size/shape checks on job
// payloads and the cache-freshness probe.
package validate

import (
	"strings"

	"github.com/magland/runpack/internal/apperr"
)

const (
	MaxInputParamsBytes   = 100 * 1024
	MaxOutputDataBytes    = 500 * 1024
	MaxConsoleOutputBytes = 1024 * 1024
	MaxErrorMessageBytes  = 10 * 1024
)

// JobType rejects an empty job type. Free-form otherwise.
func JobType(jobType string) error {
	if strings.TrimSpace(jobType) == "" {
		return apperr.New(apperr.CodeValidation, "validate.JobType", "job_type must not be empty")
	}
	return nil
}

// InputParams enforces the 100 KiB serialized-size cap.
func InputParams(serialized []byte) error {
	if len(serialized) > MaxInputParamsBytes {
		return apperr.New(apperr.CodeValidation, "validate.InputParams",
			"input_params exceeds 100 KiB limit")
	}
	return nil
}

// OutputData enforces the 500 KiB serialized-size cap.
func OutputData(serialized []byte) error {
	if len(serialized) > MaxOutputDataBytes {
		return apperr.New(apperr.CodeValidation, "validate.OutputData",
			"output_data exceeds 500 KiB limit")
	}
	return nil
}

// ConsoleOutput enforces the 1 MiB cap.
func ConsoleOutput(s string) error {
	if len(s) > MaxConsoleOutputBytes {
		return apperr.New(apperr.CodeValidation, "validate.ConsoleOutput",
			"console_output exceeds 1 MiB limit")
	}
	return nil
}

// ErrorMessage enforces the 10 KiB cap.
func ErrorMessage(s string) error {
	if len(s) > MaxErrorMessageBytes {
		return apperr.New(apperr.CodeValidation, "validate.ErrorMessage",
			"error_message exceeds 10 KiB limit")
	}
	return nil
}
