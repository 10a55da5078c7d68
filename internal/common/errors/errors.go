// Package errors provides standardized error handling for the change creation run.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeConfigInvalid     ErrorCode = "CONFIG_INVALID"
	ErrCodeSecretFetchFailed ErrorCode = "SECRET_FETCH_FAILED"

	ErrCodeIssueFetchFailed  ErrorCode = "ISSUE_FETCH_FAILED"
	ErrCodeIssueNotFound     ErrorCode = "ISSUE_NOT_FOUND"
	ErrCodeIssueDecodeFailed ErrorCode = "ISSUE_DECODE_FAILED"

	ErrCodeChangeSubmitFailed ErrorCode = "CHANGE_SUBMIT_FAILED"
	ErrCodeChangeRejected     ErrorCode = "CHANGE_REJECTED"
	ErrCodeChangeDecodeFailed ErrorCode = "CHANGE_DECODE_FAILED"
	ErrCodePayloadInvalid     ErrorCode = "PAYLOAD_INVALID"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Err        error     `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// Fields returns the error as structured log fields.
func (e *StandardError) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"errorCode":     string(e.Code),
		"message":       e.Message,
		"errorCategory": GetErrorCategory(e.Code),
	}
	if e.Details != "" {
		fields["details"] = e.Details
	}
	if e.StatusCode != 0 {
		fields["statusCode"] = e.StatusCode
	}
	return fields
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigInvalidError wraps a configuration load or validation failure.
func NewConfigInvalidError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Invalid configuration",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewSecretFetchFailedError is returned when the secret store cannot be read
// or holds something other than a JSON object of strings.
func NewSecretFetchFailedError(secretID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSecretFetchFailed,
		Message:   "Failed to load secrets",
		Details:   fmt.Sprintf("secretId: %s, error: %s", secretID, err.Error()),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewIssueFetchFailedError is returned when the issue tracker cannot be reached
// or answers with an unexpected status.
func NewIssueFetchFailedError(issueKey string, statusCode int, details string, err error) *StandardError {
	return &StandardError{
		Code:       ErrCodeIssueFetchFailed,
		Message:    fmt.Sprintf("Failed to fetch issue %s", issueKey),
		Details:    details,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
		Err:        err,
	}
}

// NewIssueNotFoundError creates an issue-not-found error.
func NewIssueNotFoundError(issueKey string) *StandardError {
	return &StandardError{
		Code:       ErrCodeIssueNotFound,
		Message:    "Issue not found in issue tracker",
		Details:    fmt.Sprintf("issueKey: %s", issueKey),
		StatusCode: 404,
		Timestamp:  time.Now().UTC(),
	}
}

// NewIssueDecodeFailedError creates an error for an unreadable issue payload.
func NewIssueDecodeFailedError(issueKey string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIssueDecodeFailed,
		Message:   "Malformed issue response",
		Details:   fmt.Sprintf("issueKey: %s, error: %s", issueKey, err.Error()),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewChangeSubmitFailedError is returned when the ticket system is unreachable.
func NewChangeSubmitFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChangeSubmitFailed,
		Message:   "Change ticket submission failed",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewChangeRejectedError is returned when the ticket system answers with a non-success status.
func NewChangeRejectedError(statusCode int, body string) *StandardError {
	return &StandardError{
		Code:       ErrCodeChangeRejected,
		Message:    "Ticket system rejected the change request",
		Details:    body,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
	}
}

// NewChangeDecodeFailedError creates an error for an unreadable ticket system response.
func NewChangeDecodeFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChangeDecodeFailed,
		Message:   "Malformed change ticket response",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewPayloadInvalidError creates an error for a change payload that failed schema validation.
func NewPayloadInvalidError(details []string) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadInvalid,
		Message:   "Change request payload failed validation",
		Details:   strings.Join(details, "; "),
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a notification delivery error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Change announcement delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewInternalError wraps an unexpected fault.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError finds the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch {
	case code == ErrCodeConfigInvalid, code == ErrCodeSecretFetchFailed:
		return "configuration"
	case strings.HasPrefix(string(code), "ISSUE_"):
		return "issue_tracker"
	case strings.HasPrefix(string(code), "CHANGE_"), code == ErrCodePayloadInvalid:
		return "ticket_system"
	case code == ErrCodeNotificationSendFailed:
		return "notification"
	default:
		return "internal"
	}
}
