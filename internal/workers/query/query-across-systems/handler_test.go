// internal/workers/query/query-across-systems/handler_test.go
package queryacrosssystems

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "ucap-workers/internal/common/errors"
	"ucap-workers/internal/models"
	"ucap-workers/internal/orchestrator"
)

// ==========================
// Test Logger Implementation
// ==========================

type TestLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t, fields: make(map[string]interface{})}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{t: l.t, fields: merged}
}

// ==========================
// Mock Service
// ==========================

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) QueryAcrossSystems(ctx context.Context, req orchestrator.QueryRequest) *models.UnifiedResult {
	args := m.Called(ctx, req)
	return args.Get(0).(*models.UnifiedResult)
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, FailOnAllSourcesFailed: true}
}

func successfulResult() *models.UnifiedResult {
	r := models.NewUnifiedResult()
	r.Transactions = append(r.Transactions, models.Transaction{TxID: "fin_1", SourceSystem: models.SystemFIN})
	r.Warnings = append(r.Warnings, "unknown system 'bogus' ignored")
	r.Metrics.SuccessCount = 1
	return r
}

func failedResult() *models.UnifiedResult {
	r := models.NewUnifiedResult()
	r.Errors = append(r.Errors, "erp query failed: connection refused", "fin timeout (>100ms)")
	r.Metrics.FailCount = 2
	return r
}

func intPtr(v int) *int { return &v }

// ==========================
// Input Tests
// ==========================

func TestDecodeInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
	}{
		{"full input", `{"filterParams":{"entity_type":"transactions","limit":20},"systems":["fin"],"timeoutMs":3000}`, false},
		{"empty input", `{}`, false},
		{"timeout too low", `{"timeoutMs":10}`, true},
		{"timeout too high", `{"timeoutMs":60001}`, true},
		{"malformed", `{"systems":`, true},
		{"wrong type", `{"systems":"fin"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := DecodeInput(tt.variables)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.NotNil(t, input)
				return
			}
			require.Error(t, err)
			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeInvalidRequest, stdErr.Code)
			assert.Equal(t, "INVALID_REQUEST", apperrors.ConvertToBPMNError(stdErr).Code)
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	svc := new(MockQueryService)
	input := &Input{
		FilterParams: map[string]interface{}{"entity_type": "transactions"},
		Systems:      []string{"fin", "bogus"},
		TimeoutMs:    intPtr(2000),
	}
	svc.On("QueryAcrossSystems", mock.Anything, orchestrator.QueryRequest{
		Filter:    input.FilterParams,
		Systems:   input.Systems,
		TimeoutMs: input.TimeoutMs,
	}).Return(successfulResult())

	h := NewHandler(createTestConfig(), svc, NewTestLogger(t))
	output, err := h.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Len(t, output.QueryResult.Transactions, 1)
	assert.Equal(t, []string{"unknown system 'bogus' ignored"}, output.Warnings)
	assert.Empty(t, output.Errors)
	assert.Equal(t, 1, output.Metrics.SuccessCount)
	svc.AssertExpectations(t)
}

func TestHandler_Execute_AllSourcesFailed(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("QueryAcrossSystems", mock.Anything, mock.Anything).Return(failedResult())

	h := NewHandler(createTestConfig(), svc, NewTestLogger(t))
	output, err := h.Execute(context.Background(), &Input{})

	assert.Nil(t, output)
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeAllSourcesFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, "erp query failed")
	assert.Equal(t, "ALL_SOURCES_FAILED", apperrors.ConvertToBPMNError(stdErr).Code)
}

func TestHandler_Execute_AllSourcesFailedTolerated(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("QueryAcrossSystems", mock.Anything, mock.Anything).Return(failedResult())

	cfg := createTestConfig()
	cfg.FailOnAllSourcesFailed = false
	h := NewHandler(cfg, svc, NewTestLogger(t))
	output, err := h.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Len(t, output.Errors, 2)
	assert.Equal(t, 2, output.Metrics.FailCount)
	assert.Empty(t, output.QueryResult.Transactions)
}

func TestHandler_Execute_NoSourcesIsNotFailure(t *testing.T) {
	svc := new(MockQueryService)
	svc.On("QueryAcrossSystems", mock.Anything, mock.Anything).Return(models.NewUnifiedResult())

	h := NewHandler(createTestConfig(), svc, NewTestLogger(t))
	_, err := h.Execute(context.Background(), &Input{})

	assert.NoError(t, err)
}

func TestOutput_JSONShape(t *testing.T) {
	raw, err := json.Marshal(NewOutput(successfulResult()))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Contains(t, decoded, "queryResult")
	assert.Contains(t, decoded, "warnings")
	assert.Contains(t, decoded, "errors")
	assert.Contains(t, decoded, "metrics")

	qr := decoded["queryResult"].(map[string]interface{})
	for _, key := range []string{"organizations", "persons", "customers", "transactions"} {
		assert.Contains(t, qr, key)
	}
}
