// internal/workers/query/nl-query/models.go
package nlquery

import "ucap-workers/internal/models"

type Input struct {
	Text           string                 `json:"text" validate:"required"`
	DefaultFilters map[string]interface{} `json:"defaultFilters"`
	Systems        []string               `json:"systems"`
	TimeoutMs      *int                   `json:"timeoutMs" validate:"omitempty,min=50,max=60000"`
}

type Output struct {
	QueryResult QueryResult         `json:"queryResult"`
	Warnings    []string            `json:"warnings"`
	Errors      []string            `json:"errors"`
	Metrics     models.QueryMetrics `json:"metrics"`
}

type QueryResult struct {
	Organizations []models.Organization `json:"organizations"`
	Persons       []models.Person       `json:"persons"`
	Customers     []models.Customer     `json:"customers"`
	Transactions  []models.Transaction  `json:"transactions"`
}

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
