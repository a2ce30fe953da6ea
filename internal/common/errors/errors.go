// Package errors provides the standardized error model shared by the wizard engine,
// the portal API clients and the workflow workers.
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
	// Wizard / local errors
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodePreconditionFailed ErrorCode = "PRECONDITION_FAILED"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeUnknownWizard      ErrorCode = "UNKNOWN_WIZARD"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"

	// Submission errors
	ErrCodeCredentialMissing   ErrorCode = "CREDENTIAL_MISSING"
	ErrCodeSerializationFailed ErrorCode = "SERIALIZATION_FAILED"
	ErrCodeContractViolation   ErrorCode = "CONTRACT_VIOLATION"
	ErrCodeSubmissionRejected  ErrorCode = "SUBMISSION_REJECTED"
	ErrCodeBackendUnavailable  ErrorCode = "BACKEND_UNAVAILABLE"

	// Lookup / persistence
	ErrCodeLookupFailed      ErrorCode = "LOOKUP_FAILED"
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"

	// Side effects after submission
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeWorkflowPublishFailed  ErrorCode = "WORKFLOW_PUBLISH_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError reports blocking field errors of a wizard step.
func NewValidationFailedError(step int, fields map[string]string) *StandardError {
	err := newError(ErrCodeValidationFailed, "Step validation failed", fmt.Sprintf("step %d", step), false)
	for field, msg := range fields {
		err.WithMetadata(field, msg)
	}
	return err
}

// NewPreconditionFailedError reports a locally detected missing submission precondition.
func NewPreconditionFailedError(details string) *StandardError {
	return newError(ErrCodePreconditionFailed, "Submission precondition not met", details, false)
}

func NewInvalidTransitionError(details string) *StandardError {
	return newError(ErrCodeInvalidTransition, "Transition not allowed in current state", details, false)
}

func NewSessionNotFoundError(id string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Wizard session not found", id, false)
}

func NewUnknownWizardError(kind string) *StandardError {
	return newError(ErrCodeUnknownWizard, "Unknown wizard kind", kind, false)
}

// NewNotFoundError reports a portal resource (requirement, automation job) that does not exist.
func NewNotFoundError(resource, id string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), id, false)
}

// NewInternalError reports a failure of the service itself, such as a
// recovered handler panic.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Internal error", errString(err), false)
}

func NewCredentialMissingError(err error) *StandardError {
	return newError(ErrCodeCredentialMissing, "No valid credential available", errString(err), false)
}

func NewSerializationFailedError(err error) *StandardError {
	return newError(ErrCodeSerializationFailed, "Failed to serialize draft", errString(err), false)
}

func NewContractViolationError(details string) *StandardError {
	return newError(ErrCodeContractViolation, "Payload does not match the receiving contract", details, false)
}

// NewSubmissionRejectedError wraps a 4xx answer of the backend; message is the extracted detail.
func NewSubmissionRejectedError(status int, message string) *StandardError {
	return newError(ErrCodeSubmissionRejected, message, fmt.Sprintf("status %d", status), false).
		WithMetadata("status", status)
}

// NewBackendUnavailableError wraps transport failures and 5xx answers.
func NewBackendUnavailableError(service string, err error) *StandardError {
	return newError(ErrCodeBackendUnavailable, fmt.Sprintf("%s unavailable", service), errString(err), true)
}

func NewLookupFailedError(query string, err error) *StandardError {
	return newError(ErrCodeLookupFailed, "Municipality lookup failed", errString(err), true).
		WithMetadata("query", query)
}

func NewPersistenceFailedError(op string, err error) *StandardError {
	return newError(ErrCodePersistenceFailed, fmt.Sprintf("Session persistence failed: %s", op), errString(err), true)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, fmt.Sprintf("Failed to send %s notification", channel), errString(err), true)
}

func NewWorkflowPublishFailedError(message string, err error) *StandardError {
	return newError(ErrCodeWorkflowPublishFailed, fmt.Sprintf("Failed to publish %s", message), errString(err), true)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Conversion & Utilities
// ==========================

// AsStandardError unwraps err into a *StandardError. Anything else becomes a
// retryable BACKEND_UNAVAILABLE error.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewBackendUnavailableError("backend", err)
}

// GetRetryCount returns the retry budget a workflow job gets for code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeBackendUnavailable,
		ErrCodeLookupFailed,
		ErrCodePersistenceFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeWorkflowPublishFailed:
		return 3
	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "CONTRACT") || strings.Contains(codeStr, "SERIALIZATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "PRECONDITION") || strings.Contains(codeStr, "CREDENTIAL"):
		return "PRECONDITION"
	case strings.Contains(codeStr, "SUBMISSION") || strings.Contains(codeStr, "BACKEND"):
		return "TRANSPORT"
	case strings.Contains(codeStr, "LOOKUP"):
		return "LOOKUP"
	case strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "WIZARD"):
		return "WIZARD"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "WORKFLOW") || strings.Contains(codeStr, "PERSISTENCE"):
		return "INTEGRATION"
	default:
		return "UNKNOWN"
	}
}

// JobError is the shape thrown to the workflow engine when a job fails.
type JobError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Retries   int    `json:"retries"`
}

func (e *JobError) Error() string {
	return fmt.Sprintf("JobError[%s]: %s", e.Code, e.Message)
}

// ToJobError converts a StandardError into the workflow error contract.
func ToJobError(stdErr *StandardError) *JobError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}
	return &JobError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Retryable: stdErr.Retryable,
		Retries:   retries,
	}
}
