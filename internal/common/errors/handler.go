package errors

import (
	"errors"
	"time"
)

const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
)

// ErrorHandler turns a failed run into exactly one error log line and an exit code.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err and returns the process exit code. A nil error maps to success.
func (h *ErrorHandler) Handle(msg string, err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	stdErr := h.normalizeError(err)
	h.logger.Error(msg, stdErr.Fields())
	return ExitCode(stdErr)
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	return ExitCodeFailure
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}
