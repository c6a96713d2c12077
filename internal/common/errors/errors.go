// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
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
	// Source collaborators
	ErrCodeSourceAccessFailed ErrorCode = "SOURCE_ACCESS_FAILED"
	ErrCodeMappingFailed      ErrorCode = "MAPPING_FAILED"
	ErrCodeSourceTimeout      ErrorCode = "SOURCE_TIMEOUT"
	ErrCodeAllSourcesFailed   ErrorCode = "ALL_SOURCES_FAILED"

	// Request validation
	ErrCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidFilterFormat ErrorCode = "INVALID_FILTER_FORMAT"

	// Inference
	ErrCodeInferenceDegraded  ErrorCode = "INFERENCE_DEGRADED"
	ErrCodeLLMUnavailable     ErrorCode = "LLM_UNAVAILABLE"
	ErrCodeLLMTimeout         ErrorCode = "LLM_TIMEOUT"
	ErrCodeMissingCredentials ErrorCode = "MISSING_CREDENTIALS"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
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
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

// ==========================
// 3. Error Constructors
// ==========================

// NewSourceAccessFailedError reports a source that could not reach its backing store.
func NewSourceAccessFailedError(system string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourceAccessFailed,
		Message:   fmt.Sprintf("Source '%s' is unreachable", system),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"system": system},
		Timestamp: time.Now().UTC(),
	}
}

// NewMappingFailedError reports raw records that could not be normalized.
func NewMappingFailedError(system string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMappingFailed,
		Message:   fmt.Sprintf("Source '%s' returned records that cannot be normalized", system),
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"system": system},
		Timestamp: time.Now().UTC(),
	}
}

func NewSourceTimeoutError(system string, deadlineMs int) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourceTimeout,
		Message:   fmt.Sprintf("Source '%s' did not answer within %dms", system, deadlineMs),
		Retryable: true,
		Metadata:  map[string]interface{}{"system": system, "deadlineMs": deadlineMs},
		Timestamp: time.Now().UTC(),
	}
}

// NewAllSourcesFailedError is raised by workflow jobs when no source produced data.
func NewAllSourcesFailedError(failures []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAllSourcesFailed,
		Message:   "All selected sources failed",
		Details:   strings.Join(failures, "; "),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError rejects a structurally invalid request at the boundary.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidFilterFormatError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFilterFormat,
		Message:   "Invalid filter format",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInferenceDegradedError records that the model path was skipped or failed.
func NewInferenceDegradedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceDegraded,
		Message:   "Natural-language inference fell back to deterministic rules",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewLLMUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMUnavailable,
		Message:   "Language model endpoint unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "Language model call timed out",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewMissingCredentialsError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingCredentials,
		Message:   fmt.Sprintf("No API key configured for %s", provider),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes modelled in the BPMN diagrams.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeSourceAccessFailed:  "SOURCE_ACCESS_FAILED",
	ErrCodeMappingFailed:       "MAPPING_FAILED",
	ErrCodeSourceTimeout:       "SOURCE_TIMEOUT",
	ErrCodeAllSourcesFailed:    "ALL_SOURCES_FAILED",
	ErrCodeInvalidRequest:      "INVALID_REQUEST",
	ErrCodeInvalidFilterFormat: "INVALID_REQUEST",
	ErrCodeInferenceDegraded:   "INFERENCE_DEGRADED",
	ErrCodeLLMUnavailable:      "LLM_UNAVAILABLE",
	ErrCodeLLMTimeout:          "LLM_TIMEOUT",
	ErrCodeMissingCredentials:  "MISSING_CREDENTIALS",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSourceAccessFailed,
		ErrCodeLLMUnavailable:
		return 3 // Retryable technical errors

	case ErrCodeSourceTimeout,
		ErrCodeAllSourcesFailed:
		return 2 // Partial retry for timeouts

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err to a StandardError when one is in its chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SOURCE") || strings.Contains(codeStr, "SOURCES") || strings.Contains(codeStr, "MAPPING"):
		return "SOURCE"
	case strings.Contains(codeStr, "INFERENCE") || strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "CREDENTIALS"):
		return "AI"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
