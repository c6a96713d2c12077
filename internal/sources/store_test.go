// internal/sources/store_test.go
package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ucap-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreFromDB(db), mock
}

// ==========================
// PostgresStore Tests
// ==========================

func TestPostgresStore_FetchRecords(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT * FROM "fin_transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"fin_transaction_id", "amount", "cost_center", "notes"}).
			AddRow("FT001", "1,000.00", []byte("CC100"), nil).
			AddRow("FT002", 25.5, "CC200", "refund"))

	records, err := store.FetchRecords(context.Background(), models.SystemFIN, models.EntityTransactions)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "FT001", records[0]["fin_transaction_id"])
	assert.Equal(t, "CC100", records[0]["cost_center"], "byte columns are read as text")
	assert.Nil(t, records[0]["notes"])
	assert.Equal(t, 25.5, records[1]["amount"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryError(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT * FROM "hr_persons"`).
		WillReturnError(errors.New("relation does not exist"))

	_, err := store.FetchRecords(context.Background(), models.SystemHR, models.EntityPersons)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hr_persons")
	assert.Contains(t, err.Error(), "relation does not exist")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ScanError(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT * FROM "erp_customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"erp_customer_id"}).
			AddRow("C1").
			RowError(0, errors.New("broken row")))

	_, err := store.FetchRecords(context.Background(), models.SystemERP, models.EntityCustomers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "erp_customers")
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "erp_organizations", TableName(models.SystemERP, models.EntityOrganizations))
	assert.Equal(t, "hr_persons", TableName(models.SystemHR, models.EntityPersons))
	assert.Equal(t, "fin_transactions", TableName(models.SystemFIN, models.EntityTransactions))
}

// ==========================
// ElasticsearchStore Tests
// ==========================

func setupMockES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{server.URL},
	})
	require.NoError(t, err)
	return client
}

func TestElasticsearchStore_FetchRecords(t *testing.T) {
	client := setupMockES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/ucap-hr_organizations/_search"), r.URL.Path)
		assert.Equal(t, "10000", r.URL.Query().Get("size"))
		_, _ = w.Write([]byte(`{
			"hits": {"total": {"value": 2}, "hits": [
				{"_id": "1", "_source": {"hr_org_id": "HR_ORG_1", "org_name": "人力资源部"}},
				{"_id": "2", "_source": {"hr_org_id": "HR_ORG_2", "org_name": "技术部"}}
			]}
		}`))
	})

	store := NewElasticsearchStore(client, "ucap-")
	assert.Equal(t, "ucap-hr_organizations", store.IndexName(models.SystemHR, models.EntityOrganizations))

	records, err := store.FetchRecords(context.Background(), models.SystemHR, models.EntityOrganizations)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "HR_ORG_1", records[0]["hr_org_id"])
	assert.Equal(t, "技术部", records[1]["org_name"])
}

func TestElasticsearchStore_ErrorStatus(t *testing.T) {
	client := setupMockES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"search_phase_execution_exception"}}`))
	})

	store := NewElasticsearchStore(client, "")
	_, err := store.FetchRecords(context.Background(), models.SystemERP, models.EntityCustomers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "erp_customers")
}
