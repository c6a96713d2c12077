// internal/sources/source_test.go
package sources

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	apperrors "ucap-workers/internal/common/errors"
	"ucap-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Logger Implementation
// ==========================

type TestLogger struct {
	t *testing.T
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t}
}

func (l *TestLogger) Debug(msg string, fields map[string]interface{}) {
	l.t.Logf("DEBUG: %s %v", msg, fields)
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

// ==========================
// Test Helper Functions
// ==========================

// memoryStore serves raw rows from memory and counts pulls.
type memoryStore struct {
	rows  map[string][]RawRecord
	err   error
	pulls atomic.Int32
}

func (m *memoryStore) FetchRecords(ctx context.Context, system models.SystemType, entity models.EntityType) ([]RawRecord, error) {
	m.pulls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.rows[TableName(system, entity)], nil
}

func erpRows() map[string][]RawRecord {
	return map[string][]RawRecord{
		"erp_organizations": {
			{"erp_org_id": "ORG000001", "org_name": "华东销售部", "status": "active", "created_time": "2024-01-10 09:00:00"},
		},
		"erp_persons": {
			{"erp_person_id": "EMP001", "person_name": "张三", "department_id": "ORG000002", "hire_date": "2023-05-01", "employment_status": "在职"},
		},
		"erp_customers": {
			{"erp_customer_id": "CUST001", "customer_name": "Acme", "status": "active", "created_time": "2024-02-01"},
		},
		"erp_transactions": {
			{"erp_transaction_id": "TX001", "transaction_type": "销售订单", "total_amount": "¥1,200.50", "transaction_date": "2024-03-15", "sales_person": "EMP001", "status": "已完成"},
			{"erp_transaction_id": "TX002", "transaction_type": "采购订单", "total_amount": 80.0, "transaction_date": "2024-06-01", "sales_person": "EMP404", "status": "处理中"},
		},
	}
}

// ==========================
// SystemSource Tests
// ==========================

func TestSystemSource_FetchNormalized(t *testing.T) {
	store := &memoryStore{rows: erpRows()}
	src := NewSystemSource(models.SystemERP, store, MapERP, nil, time.UTC, NewTestLogger(t))

	bundle, err := src.FetchNormalized(context.Background(), models.FilterSpec{})
	require.NoError(t, err)

	assert.Equal(t, models.SystemERP, src.System())
	assert.Len(t, bundle.Organizations, 1)
	assert.Len(t, bundle.Persons, 1)
	assert.Len(t, bundle.Customers, 1)
	require.Len(t, bundle.Transactions, 2)

	assert.Equal(t, "erp_TX001", bundle.Transactions[0].TxID)
	assert.Equal(t, "sales", bundle.Transactions[0].TxType)
	assert.Equal(t, 1200.5, bundle.Transactions[0].Amount)
	assert.Equal(t, "erp_ORG000002", bundle.Transactions[0].OrgID)
	assert.Equal(t, "completed", bundle.Transactions[0].Status)

	// unresolved sales person falls back to the default org
	assert.Equal(t, "erp_ORG000001", bundle.Transactions[1].OrgID)
	assert.Equal(t, "pending", bundle.Transactions[1].Status)

	assert.EqualValues(t, len(models.AllEntityTypes), store.pulls.Load())
}

func TestSystemSource_AppliesFilter(t *testing.T) {
	store := &memoryStore{rows: erpRows()}
	src := NewSystemSource(models.SystemERP, store, MapERP, nil, time.UTC, NewTestLogger(t))

	bundle, err := src.FetchNormalized(context.Background(), models.FilterSpec{
		EntityType: models.EntityTransactions,
		DateFrom:   "2024-05-01",
	})
	require.NoError(t, err)

	assert.Empty(t, bundle.Organizations)
	assert.Empty(t, bundle.Persons)
	assert.Empty(t, bundle.Customers)
	require.Len(t, bundle.Transactions, 1)
	assert.Equal(t, "erp_TX002", bundle.Transactions[0].TxID)
}

func TestSystemSource_AccessFailure(t *testing.T) {
	store := &memoryStore{err: errors.New("connection refused")}
	src := NewSystemSource(models.SystemHR, store, MapHR, nil, time.UTC, NewTestLogger(t))

	_, err := src.FetchNormalized(context.Background(), models.FilterSpec{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceAccess)
	assert.Contains(t, err.Error(), "connection refused")

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, models.SystemHR, srcErr.System)
	assert.Equal(t, apperrors.ErrCodeSourceAccessFailed, srcErr.StandardError().Code)
}

func TestSystemSource_MappingFailure(t *testing.T) {
	rows := erpRows()
	rows["erp_transactions"] = []RawRecord{
		{"erp_transaction_id": "TX009", "total_amount": "twelve dollars"},
	}
	src := NewSystemSource(models.SystemERP, &memoryStore{rows: rows}, MapERP, nil, time.UTC, NewTestLogger(t))

	_, err := src.FetchNormalized(context.Background(), models.FilterSpec{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMapping)
	assert.NotErrorIs(t, err, ErrSourceAccess)

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, apperrors.ErrCodeMappingFailed, srcErr.StandardError().Code)
}

// ==========================
// Registry Tests
// ==========================

func TestRegistry_Resolve(t *testing.T) {
	log := NewTestLogger(t)
	erp := NewSystemSource(models.SystemERP, &memoryStore{}, MapERP, nil, time.UTC, log)
	fin := NewSystemSource(models.SystemFIN, &memoryStore{}, MapFIN, nil, time.UTC, log)

	registry := NewRegistry(erp, fin)

	resolved := registry.Resolve([]models.SystemType{models.SystemFIN, models.SystemHR, models.SystemERP})
	require.Len(t, resolved, 2)
	assert.Equal(t, models.SystemFIN, resolved[0].System())
	assert.Equal(t, models.SystemERP, resolved[1].System())

	assert.Equal(t, []models.SystemType{models.SystemERP, models.SystemFIN}, registry.Systems())
}

func TestMapperFor(t *testing.T) {
	for _, system := range models.AllSystems {
		m, ok := MapperFor(system)
		assert.True(t, ok, string(system))
		assert.NotNil(t, m)
	}
	_, ok := MapperFor("crm")
	assert.False(t, ok)
}
