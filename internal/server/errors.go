package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/aatumaykin/pifaas/internal/crontab"
	"github.com/aatumaykin/pifaas/internal/functions"
	"github.com/aatumaykin/pifaas/internal/runlog"
)

// Response bodies. Clients match on these strings.
const (
	MsgFunctionNotFound    = "Function not found"
	MsgPermissionDenied    = "Permission denied (is the script executable?)"
	MsgScheduleNotFound    = "Function not found for scheduling"
	MsgInvalidExpression   = "Invalid cron expression"
	MsgScheduleSet         = "Cron job set"
	MsgMissingName         = "Missing script name"
	MsgInvalidName         = "Invalid function name"
	MsgScheduleRemoved     = "Removed schedule"
	MsgTableUpdateFailed   = "Failed to update crontab"
	MsgMirrorUpdateFailed  = "Failed to update schedule mirror"
	MsgNoLogs              = "No logs found for function"
	MsgNotFound            = "Not found"
	MsgInternal            = "Internal server error"
	MsgTooManyRequests     = "Too many requests"
	MsgPayloadUnreadable   = "Failed to read request body"
	MsgScheduleUnavailable = "Failed to read schedules"
)

// Error is a request failure with its HTTP status.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code int, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func invokeError(err error) *Error {
	switch {
	case errors.Is(err, functions.ErrNotFound), errors.Is(err, functions.ErrInvalidName):
		return newError(http.StatusNotFound, MsgFunctionNotFound, err)
	case errors.Is(err, functions.ErrPermission):
		return newError(http.StatusForbidden, MsgPermissionDenied, err)
	default:
		return newError(http.StatusInternalServerError, MsgInternal, err)
	}
}

func scheduleError(err error) *Error {
	switch {
	case errors.Is(err, functions.ErrNotFound), errors.Is(err, functions.ErrInvalidName):
		return newError(http.StatusNotFound, MsgScheduleNotFound, err)
	case errors.Is(err, crontab.ErrInvalidName):
		return newError(http.StatusBadRequest, MsgInvalidName, err)
	case errors.Is(err, crontab.ErrInvalidExpression):
		return newError(http.StatusBadRequest, MsgInvalidExpression, err)
	default:
		return tableError(err)
	}
}

func removeError(err error) *Error {
	if errors.Is(err, crontab.ErrInvalidName) {
		return newError(http.StatusBadRequest, MsgInvalidName, err)
	}
	return tableError(err)
}

// tableError prefers the scheduler tool's own stderr as the body.
func tableError(err error) *Error {
	if errors.Is(err, crontab.ErrTableRead) || errors.Is(err, crontab.ErrTableWrite) {
		msg := crontab.Diagnostic(err)
		if msg == "" {
			msg = MsgTableUpdateFailed
		}
		return newError(http.StatusInternalServerError, msg, err)
	}
	return newError(http.StatusInternalServerError, MsgMirrorUpdateFailed, err)
}

func logsError(err error) *Error {
	if errors.Is(err, runlog.ErrNotFound) || errors.Is(err, functions.ErrInvalidName) {
		return newError(http.StatusNotFound, MsgNoLogs, err)
	}
	return newError(http.StatusInternalServerError, MsgInternal, err)
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}
