package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ucap-workers/internal/models"
	"ucap-workers/internal/sources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// ==========================
// Test Logger Implementation
// ==========================

type TestLogger struct {
	t *testing.T
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
// Test Sources
// ==========================

type fakeSource struct {
	system models.SystemType
	fetch  func(ctx context.Context, filter models.FilterSpec) (*models.EntityBundle, error)
}

func (f *fakeSource) System() models.SystemType { return f.system }

func (f *fakeSource) FetchNormalized(ctx context.Context, filter models.FilterSpec) (*models.EntityBundle, error) {
	return f.fetch(ctx, filter)
}

func returning(system models.SystemType, bundle *models.EntityBundle) *fakeSource {
	return &fakeSource{system: system, fetch: func(ctx context.Context, _ models.FilterSpec) (*models.EntityBundle, error) {
		return bundle, nil
	}}
}

func failing(system models.SystemType, err error) *fakeSource {
	return &fakeSource{system: system, fetch: func(ctx context.Context, _ models.FilterSpec) (*models.EntityBundle, error) {
		return nil, err
	}}
}

// blocking waits for its context, like a well-behaved slow source.
func blocking(system models.SystemType) *fakeSource {
	return &fakeSource{system: system, fetch: func(ctx context.Context, _ models.FilterSpec) (*models.EntityBundle, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

func bundleOf(system models.SystemType, txIDs ...string) *models.EntityBundle {
	b := models.NewEntityBundle()
	for _, id := range txIDs {
		b.Transactions = append(b.Transactions, models.Transaction{TxID: id, SourceSystem: system})
	}
	return b
}

func newAggregator(t *testing.T) *Aggregator {
	return New(&TestLogger{t: t}, nil)
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_AllSucceed(t *testing.T) {
	defer goleak.VerifyNone(t)

	srcs := []sources.Source{
		returning(models.SystemERP, bundleOf(models.SystemERP, "erp_1", "erp_2")),
		returning(models.SystemFIN, bundleOf(models.SystemFIN, "fin_1")),
	}

	result := newAggregator(t).Execute(context.Background(), srcs, models.FilterSpec{}, 1000)

	assert.Empty(t, result.Errors)
	assert.Len(t, result.Transactions, 3)
	assert.Equal(t, 2, result.Metrics.SuccessCount)
	assert.Equal(t, 0, result.Metrics.FailCount)
	assert.Equal(t, 2, result.Metrics.PerSourceCounts[models.SystemERP][models.EntityTransactions])
	assert.Equal(t, 1, result.Metrics.PerSourceCounts[models.SystemFIN][models.EntityTransactions])
	assert.Contains(t, result.Metrics.PerSourceDurationMs, models.SystemERP)
	assert.Greater(t, result.Metrics.TotalDurationMs, 0.0)
}

func TestExecute_OneSourceFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	accessErr := &sources.SourceError{System: models.SystemHR, Kind: sources.ErrSourceAccess, Err: errors.New("connection refused")}
	srcs := []sources.Source{
		returning(models.SystemERP, bundleOf(models.SystemERP, "erp_1")),
		failing(models.SystemHR, accessErr),
	}

	result := newAggregator(t).Execute(context.Background(), srcs, models.FilterSpec{}, 1000)

	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "hr query failed: "), result.Errors[0])
	assert.Contains(t, result.Errors[0], "connection refused")
	assert.Equal(t, 1, result.Metrics.SuccessCount)
	assert.Equal(t, 1, result.Metrics.FailCount)
	assert.Equal(t, models.ZeroCounts(), result.Metrics.PerSourceCounts[models.SystemHR])
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "erp_1", result.Transactions[0].TxID)
}

func TestExecute_TotalFailureStillReturnsResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	srcs := []sources.Source{
		failing(models.SystemERP, errors.New("down")),
		failing(models.SystemHR, errors.New("down")),
		failing(models.SystemFIN, errors.New("down")),
	}

	result := newAggregator(t).Execute(context.Background(), srcs, models.FilterSpec{}, 1000)

	require.NotNil(t, result)
	assert.Len(t, result.Errors, 3)
	assert.Equal(t, 3, result.Metrics.FailCount)
	assert.NotNil(t, result.Organizations)
	assert.NotNil(t, result.Persons)
	assert.NotNil(t, result.Customers)
	assert.NotNil(t, result.Transactions)
	assert.Zero(t, result.Total())
}

func TestExecute_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	srcs := []sources.Source{
		returning(models.SystemERP, bundleOf(models.SystemERP, "erp_1")),
		blocking(models.SystemFIN),
	}

	start := time.Now()
	result := newAggregator(t).Execute(context.Background(), srcs, models.FilterSpec{}, 100)
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "fin timeout (>100ms)", result.Errors[0])
	assert.Equal(t, 100.0, result.Metrics.PerSourceDurationMs[models.SystemFIN])
	assert.Equal(t, models.ZeroCounts(), result.Metrics.PerSourceCounts[models.SystemFIN])
	assert.Equal(t, 1, result.Metrics.SuccessCount)
	assert.Equal(t, 1, result.Metrics.FailCount)
	assert.Len(t, result.Transactions, 1)
}

func TestExecute_LateResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	defer goleak.VerifyNone(t)
	defer close(release)

	// ignores its context entirely
	stubborn := &fakeSource{system: models.SystemHR, fetch: func(ctx context.Context, _ models.FilterSpec) (*models.EntityBundle, error) {
		<-release
		return bundleOf(models.SystemHR, "hr_late"), nil
	}}

	result := newAggregator(t).Execute(context.Background(), []sources.Source{stubborn}, models.FilterSpec{}, 30)

	assert.Equal(t, []string{"hr timeout (>30ms)"}, result.Errors)
	assert.Empty(t, result.Transactions)
}

func TestExecute_NonPositiveDeadlineUsesFloor(t *testing.T) {
	defer goleak.VerifyNone(t)

	result := newAggregator(t).Execute(context.Background(), []sources.Source{blocking(models.SystemERP)}, models.FilterSpec{}, 0)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "erp timeout (>0ms)", result.Errors[0])
	assert.Equal(t, 0.0, result.Metrics.PerSourceDurationMs[models.SystemERP])
}

func TestExecute_CallerCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := newAggregator(t).Execute(ctx, []sources.Source{blocking(models.SystemERP)}, models.FilterSpec{}, 5000)

	assert.Equal(t, []string{"erp query cancelled"}, result.Errors)
	assert.Equal(t, 1, result.Metrics.FailCount)
}

func TestExecute_PanicIsIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)

	panicky := &fakeSource{system: models.SystemFIN, fetch: func(ctx context.Context, _ models.FilterSpec) (*models.EntityBundle, error) {
		panic("nil map write")
	}}
	srcs := []sources.Source{panicky, returning(models.SystemERP, bundleOf(models.SystemERP, "erp_1"))}

	result := newAggregator(t).Execute(context.Background(), srcs, models.FilterSpec{}, 1000)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "fin query failed")
	assert.Contains(t, result.Errors[0], "nil map write")
	assert.Equal(t, 1, result.Metrics.SuccessCount)
}

func TestExecute_DedupWithinSourceOnly(t *testing.T) {
	defer goleak.VerifyNone(t)

	erp := bundleOf(models.SystemERP, "tx_1", "tx_1", "tx_2", "", "")
	erp.Persons = []models.Person{{PersonID: "p1"}, {PersonID: "p1"}}
	fin := bundleOf(models.SystemFIN, "tx_1")

	srcs := []sources.Source{returning(models.SystemERP, erp), returning(models.SystemFIN, fin)}
	result := newAggregator(t).Execute(context.Background(), srcs, models.FilterSpec{}, 1000)

	// distinct keys plus the two keyless entries
	assert.Equal(t, 4, result.Metrics.PerSourceCounts[models.SystemERP][models.EntityTransactions])
	assert.Equal(t, 1, result.Metrics.PerSourceCounts[models.SystemERP][models.EntityPersons])
	// the same key from another source is not merged
	assert.Len(t, result.Transactions, 5)
}

func TestExecute_RespectsLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, fmt.Sprintf("tx_%d", i))
	}
	srcs := []sources.Source{
		returning(models.SystemERP, bundleOf(models.SystemERP, ids...)),
		returning(models.SystemFIN, bundleOf(models.SystemFIN, ids...)),
	}

	result := newAggregator(t).Execute(context.Background(), srcs, models.FilterSpec{Limit: 3}, 1000)

	for system, counts := range result.Metrics.PerSourceCounts {
		for entity, n := range counts {
			assert.LessOrEqual(t, n, 3, "%s/%s", system, entity)
		}
	}
	assert.Len(t, result.Transactions, 3)
	assert.Contains(t, result.Warnings, "aggregate truncated to limit 3")
}

func TestExecute_NoSources(t *testing.T) {
	result := newAggregator(t).Execute(context.Background(), nil, models.FilterSpec{}, 1000)
	assert.Empty(t, result.Errors)
	assert.Zero(t, result.Metrics.SuccessCount)
	assert.NotNil(t, result.Customers)
}

// ==========================
// Integration With Sources
// ==========================

type staticStore map[string][]sources.RawRecord

func (s staticStore) FetchRecords(ctx context.Context, system models.SystemType, entity models.EntityType) ([]sources.RawRecord, error) {
	return s[sources.TableName(system, entity)], nil
}

func TestExecute_FutureDateFromEmptiesEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := &TestLogger{t: t}
	store := staticStore{
		"erp_organizations": {{"erp_org_id": "O1", "created_time": "2024-01-01"}},
		"erp_persons":       {{"erp_person_id": "P1", "hire_date": "2024-01-01"}},
		"erp_customers":     {{"erp_customer_id": "C1", "created_time": "2024-01-01"}},
		"erp_transactions":  {{"erp_transaction_id": "T1", "transaction_date": "2024-01-01", "total_amount": 10.0}},
		"fin_transactions":  {{"fin_transaction_id": "F1", "transaction_date": "01-02-2024", "amount": "5"}},
	}
	srcs := []sources.Source{
		sources.NewSystemSource(models.SystemERP, store, sources.MapERP, nil, time.UTC, log),
		sources.NewSystemSource(models.SystemFIN, store, sources.MapFIN, nil, time.UTC, log),
	}

	future := time.Now().AddDate(1, 0, 0).UTC().Format(time.RFC3339)
	result := newAggregator(t).Execute(context.Background(), srcs, models.FilterSpec{DateFrom: future}, 1000)

	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.Metrics.SuccessCount)
	assert.Zero(t, result.Total())

	unfiltered := newAggregator(t).Execute(context.Background(), srcs, models.FilterSpec{}, 1000)
	assert.Equal(t, 5, unfiltered.Total())
}
