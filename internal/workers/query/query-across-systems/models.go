// internal/workers/query/query-across-systems/models.go
package queryacrosssystems

import "ucap-workers/internal/models"

type Input struct {
	FilterParams map[string]interface{} `json:"filterParams"`
	Systems      []string               `json:"systems"`
	TimeoutMs    *int                   `json:"timeoutMs" validate:"omitempty,min=50,max=60000"`
}

type Output struct {
	QueryResult QueryResult         `json:"queryResult"`
	Warnings    []string            `json:"warnings"`
	Errors      []string            `json:"errors"`
	Metrics     models.QueryMetrics `json:"metrics"`
}

// QueryResult holds the four entity collections of a unified result.
type QueryResult struct {
	Organizations []models.Organization `json:"organizations"`
	Persons       []models.Person       `json:"persons"`
	Customers     []models.Customer     `json:"customers"`
	Transactions  []models.Transaction  `json:"transactions"`
}

// NewOutput splits a unified result into the process variables of the job.
func NewOutput(r *models.UnifiedResult) *Output {
	return &Output{
		QueryResult: QueryResult{
			Organizations: r.Organizations,
			Persons:       r.Persons,
			Customers:     r.Customers,
			Transactions:  r.Transactions,
		},
		Warnings: r.Warnings,
		Errors:   r.Errors,
		Metrics:  r.Metrics,
	}
}
