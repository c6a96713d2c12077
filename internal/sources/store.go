// internal/sources/store.go
package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"ucap-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/lib/pq"
)

// RecordStore reads the raw rows of one <system>_<entity> table or index.
type RecordStore interface {
	FetchRecords(ctx context.Context, system models.SystemType, entity models.EntityType) ([]RawRecord, error)
}

// TableName returns the raw table of an entity, e.g. fin_transactions.
func TableName(system models.SystemType, entity models.EntityType) string {
	return fmt.Sprintf("%s_%s", system, entity)
}

// Querier is satisfied by *sql.DB and database.PostgresClient.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// PostgresStore reads raw tables with database/sql over lib/pq.
type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FetchRecords(ctx context.Context, system models.SystemType, entity models.EntityType) ([]RawRecord, error) {
	table := TableName(system, entity)
	query := "SELECT * FROM " + pq.QuoteIdentifier(table)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}

	var records []RawRecord
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		record := make(RawRecord, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}

	return records, nil
}

// querierFunc adapts *sql.DB to Querier.
type querierFunc func(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

func (f querierFunc) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return f(ctx, query, args...)
}

// NewPostgresStoreFromDB wraps a bare *sql.DB.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return NewPostgresStore(querierFunc(db.QueryContext))
}

// ElasticsearchStore reads raw documents from <prefix><system>_<entity> indices.
type ElasticsearchStore struct {
	client      *elasticsearch.Client
	indexPrefix string
	pageSize    int
}

func NewElasticsearchStore(client *elasticsearch.Client, indexPrefix string) *ElasticsearchStore {
	return &ElasticsearchStore{
		client:      client,
		indexPrefix: indexPrefix,
		pageSize:    10000,
	}
}

func (s *ElasticsearchStore) IndexName(system models.SystemType, entity models.EntityType) string {
	return s.indexPrefix + TableName(system, entity)
}

func (s *ElasticsearchStore) FetchRecords(ctx context.Context, system models.SystemType, entity models.EntityType) ([]RawRecord, error) {
	index := s.IndexName(system, entity)
	size := s.pageSize
	allowNoIndices := true

	req := esapi.SearchRequest{
		Index:             []string{index},
		Body:              strings.NewReader(`{"query":{"match_all":{}}}`),
		Size:              &size,
		IgnoreUnavailable: &allowNoIndices,
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s failed: %s", index, res.Status())
	}

	var body struct {
		Hits struct {
			Hits []struct {
				Source RawRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", index, err)
	}

	records := make([]RawRecord, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		records = append(records, hit.Source)
	}
	return records, nil
}
