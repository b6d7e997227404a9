package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Pipeline
	ErrCodeStepFailed     ErrorCode = "STEP_FAILED"
	ErrCodeIneligibleItem ErrorCode = "INELIGIBLE_ITEM"
	ErrCodeFlowNotFound   ErrorCode = "FLOW_NOT_FOUND"
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrCodeCancelled      ErrorCode = "SUBMISSION_CANCELLED"

	// Stores
	ErrCodeItemNotFound             ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeApplicantNotFound        ErrorCode = "APPLICANT_NOT_FOUND"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateApplication     ErrorCode = "DUPLICATE_APPLICATION"

	// Step executors
	ErrCodeResumeUnreadable       ErrorCode = "RESUME_UNREADABLE"
	ErrCodeFormValidationFailed   ErrorCode = "FORM_VALIDATION_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodePortalAuthFailed       ErrorCode = "PORTAL_AUTH_FAILED"
	ErrCodeStepTimeout            ErrorCode = "STEP_TIMEOUT"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns the error with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewStepFailedError wraps the error a step executor returned. The item that
// owns the step ends Failed; siblings in the batch are unaffected.
func NewStepFailedError(stepID string, err error) *StandardError {
	se := &StandardError{
		Code:      ErrCodeStepFailed,
		Message:   fmt.Sprintf("Submission step '%s' failed", stepID),
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"stepId": stepID},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	var inner *StandardError
	if errors.As(err, &inner) {
		se.Metadata["causeCode"] = string(inner.Code)
		se.Retryable = inner.Retryable
	}
	return se
}

func NewIneligibleItemError(itemID, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIneligibleItem,
		Message:   "Item requires external application",
		Details:   fmt.Sprintf("itemId: %s, reason: %s", itemID, reason),
		Retryable: false,
		Metadata:  map[string]interface{}{"itemId": itemID, "reason": reason},
		Timestamp: time.Now().UTC(),
	}
}

func NewCancelledError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCancelled,
		Message:   "Submission cancelled before completion",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewFlowNotFoundError(flow string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFlowNotFound,
		Message:   "Submission flow not registered",
		Details:   fmt.Sprintf("flow: %s", flow),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewItemNotFoundError(itemID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeItemNotFound,
		Message:   "Job lead not found",
		Details:   fmt.Sprintf("itemId: %s", itemID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewApplicantNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicantNotFound,
		Message:   "Applicant profile not found",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDuplicateApplicationError(userID, jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateApplication,
		Message:   "Application already exists",
		Details:   fmt.Sprintf("userId: %s, jobId: %s", userID, jobID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewResumeUnreadableError(path string, err error) *StandardError {
	details := fmt.Sprintf("path: %s", path)
	if err != nil {
		details = fmt.Sprintf("path: %s, error: %s", path, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeResumeUnreadable,
		Message:   "Resume could not be parsed for ATS submission",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewFormValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFormValidationFailed,
		Message:   "Application form validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewPortalAuthFailedError(portal string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePortalAuthFailed,
		Message:   fmt.Sprintf("Login to portal '%s' failed", portal),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewStepTimeoutError(stepID string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeStepTimeout,
		Message:   "Submission step timed out",
		Details:   fmt.Sprintf("stepId: %s, timeout: %s", stepID, timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// BPMNErrorMapping maps internal codes to the error codes caught by boundary
// events in the process models.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeStepFailed:               "SUBMISSION_STEP_FAILED",
	ErrCodeIneligibleItem:           "INELIGIBLE_ITEM",
	ErrCodeFlowNotFound:             "FLOW_NOT_FOUND",
	ErrCodeInvalidInput:             "INVALID_INPUT",
	ErrCodeCancelled:                "SUBMISSION_CANCELLED",
	ErrCodeItemNotFound:             "ITEM_NOT_FOUND",
	ErrCodeApplicantNotFound:        "APPLICANT_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeDuplicateApplication:     "DUPLICATE_APPLICATION",
	ErrCodeResumeUnreadable:         "RESUME_UNREADABLE",
	ErrCodeFormValidationFailed:     "FORM_VALIDATION_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
	ErrCodePortalAuthFailed:         "PORTAL_AUTH_FAILED",
	ErrCodeStepTimeout:              "STEP_TIMEOUT",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeNotificationSendFailed:
		return 3
	case ErrCodePortalAuthFailed,
		ErrCodeStepTimeout:
		return 2
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STEP") || strings.Contains(codeStr, "FLOW"):
		return "PIPELINE"
	case strings.Contains(codeStr, "INELIGIBLE") || strings.Contains(codeStr, "NOT_FOUND"):
		return "ELIGIBILITY"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "DUPLICATE"):
		return "DATABASE"
	case strings.Contains(codeStr, "RESUME") || strings.Contains(codeStr, "FORM"):
		return "DOCUMENT"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "COMMUNICATION"
	case strings.Contains(codeStr, "PORTAL") || strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	default:
		return "GENERAL"
	}
}

// CodeOf returns the code of the first StandardError in err's chain, or
// INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return "INTERNAL_ERROR"
}
