// Package apperr models the coordinator's error taxonomy as a single typed,
// wrappable error so handlers and the Store can agree on failure semantics
// without string-matching.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Code string

const (
	CodeValidation Code = "validation"
	CodeAuth       Code = "auth"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeRateLimit  Code = "rate_limit"
	CodeInternal   Code = "internal"
	CodeExternal   Code = "external"
	CodeTimeout    Code = "timeout"
)

// HTTPStatus is the status code a handler should respond with for this code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return 400
	case CodeAuth:
		return 401
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	case CodeRateLimit:
		return 429
	default:
		return 500
	}
}

type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", e.Op, msg, e.Code)
	case e.Op != "":
		return fmt.Sprintf("%s (%s)", e.Op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, op, message string) error {
	return &Error{Code: code, Op: op, Message: message}
}

func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// Is reports whether err (possibly wrapped) carries the given code.
func Is(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// CodeOf extracts the code, defaulting to CodeInternal for unmapped errors.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Classify maps an infrastructure failure (gorm/pgx) into an apperr.Error,
// inspecting Postgres error codes to distinguish a unique-constraint hit
// (job_hash collision) from a generic storage failure.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Wrap(CodeNotFound, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return Wrap(CodeConflict, op, err)
		case "40001", "40P01", "55P03":
			return Wrap(CodeExternal, op, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint"):
		return Wrap(CodeConflict, op, err)
	default:
		return Wrap(CodeInternal, op, err)
	}
}
