package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name          string
		err           *StandardError
		wantCode      string
		wantRetries   int
		wantRetryable bool
	}{
		{
			name:          "source access failure is retried",
			err:           NewSourceAccessFailedError("erp", fmt.Errorf("connection refused")),
			wantCode:      "SOURCE_ACCESS_FAILED",
			wantRetries:   3,
			wantRetryable: true,
		},
		{
			name:          "mapping failure is not retried",
			err:           NewMappingFailedError("fin", fmt.Errorf("bad amount")),
			wantCode:      "MAPPING_FAILED",
			wantRetries:   0,
			wantRetryable: false,
		},
		{
			name:          "invalid filter maps to invalid request",
			err:           NewInvalidFilterFormatError("limit must be positive"),
			wantCode:      "INVALID_REQUEST",
			wantRetries:   0,
			wantRetryable: false,
		},
		{
			name:          "all sources failed",
			err:           NewAllSourcesFailedError([]string{"erp timeout (>100ms)", "hr query failed: boom"}),
			wantCode:      "ALL_SOURCES_FAILED",
			wantRetries:   2,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, tt.wantRetryable, bpmn.Retryable)
			assert.Equal(t, string(tt.err.Code), bpmn.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestConvertToBPMNError_CarriesMetadata(t *testing.T) {
	stdErr := NewSourceTimeoutError("hr", 250)
	vars := ConvertToBPMNError(stdErr).ToErrorVariables()

	assert.Equal(t, "hr", vars["system"])
	assert.Equal(t, 250, vars["deadlineMs"])
	assert.Equal(t, "SOURCE_TIMEOUT", vars["errorCode"])
}

func TestNormalizeError(t *testing.T) {
	wrapped := fmt.Errorf("worker: %w", NewLLMTimeoutError())
	stdErr := NormalizeError(wrapped)
	assert.Equal(t, ErrCodeLLMTimeout, stdErr.Code)

	plain := NormalizeError(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
	assert.False(t, plain.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "SOURCE", GetErrorCategory(ErrCodeSourceAccessFailed))
	assert.Equal(t, "SOURCE", GetErrorCategory(ErrCodeMappingFailed))
	assert.Equal(t, "SOURCE", GetErrorCategory(ErrCodeAllSourcesFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeLLMTimeout))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeInferenceDegraded))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeMissingCredentials))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidRequest))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestWithMetadata(t *testing.T) {
	stdErr := NewInvalidRequestError("text is required").WithMetadata("field", "text")
	require.NotNil(t, stdErr.Metadata)
	assert.Equal(t, "text", stdErr.Metadata["field"])
	assert.False(t, IsRetryableErrorCode(stdErr.Code))
}
