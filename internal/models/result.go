// internal/models/result.go
package models

// UnifiedResult is the aggregated answer of one cross-system query.
type UnifiedResult struct {
	Organizations []Organization `json:"organizations"`
	Persons       []Person       `json:"persons"`
	Customers     []Customer     `json:"customers"`
	Transactions  []Transaction  `json:"transactions"`
	Errors        []string       `json:"errors"`
	Warnings      []string       `json:"warnings"`
	Metrics       QueryMetrics   `json:"metrics"`
}

// NewUnifiedResult returns a result with every collection initialised.
func NewUnifiedResult() *UnifiedResult {
	return &UnifiedResult{
		Organizations: []Organization{},
		Persons:       []Person{},
		Customers:     []Customer{},
		Transactions:  []Transaction{},
		Errors:        []string{},
		Warnings:      []string{},
		Metrics: QueryMetrics{
			PerSourceDurationMs: map[SystemType]float64{},
			PerSourceCounts:     map[SystemType]map[EntityType]int{},
		},
	}
}

// Append concatenates a source's bundle onto the aggregate.
func (r *UnifiedResult) Append(b *EntityBundle) {
	r.Organizations = append(r.Organizations, b.Organizations...)
	r.Persons = append(r.Persons, b.Persons...)
	r.Customers = append(r.Customers, b.Customers...)
	r.Transactions = append(r.Transactions, b.Transactions...)
}

// Total returns the number of entities across all collections.
func (r *UnifiedResult) Total() int {
	return len(r.Organizations) + len(r.Persons) + len(r.Customers) + len(r.Transactions)
}

type QueryMetrics struct {
	PerSourceDurationMs map[SystemType]float64            `json:"per_source_duration_ms"`
	PerSourceCounts     map[SystemType]map[EntityType]int `json:"per_source_counts"`
	SuccessCount        int                               `json:"success_count"`
	FailCount           int                               `json:"fail_count"`
	TotalDurationMs     float64                           `json:"total_duration_ms"`
	LLM                 *InferenceMetrics                 `json:"llm,omitempty"`
	API                 *APIMetrics                       `json:"api,omitempty"`
}

// InferenceMetrics describes which inference path produced a filter.
type InferenceMetrics struct {
	LLMUsed                bool   `json:"llm_used"`
	LLMStatus              string `json:"llm_status"`
	LLMLatencyMs           int64  `json:"llm_latency_ms"`
	LLMModel               string `json:"llm_model"`
	LLMErrorCode           string `json:"llm_error_code,omitempty"`
	TimeNarrowUsed         bool   `json:"time_narrow_used"`
	TimeNarrowLatencyMs    int64  `json:"time_narrow_latency_ms"`
	TimeAnchorOverrideUsed bool   `json:"time_anchor_override_used"`
	TimeAnchorLatencyMs    int64  `json:"time_anchor_latency_ms"`
}

const (
	LLMStatusOK       = "ok"
	LLMStatusDegraded = "degraded"
)

// APIMetrics echoes the request parameters seen at the HTTP boundary.
type APIMetrics struct {
	DurationMs float64  `json:"duration_ms"`
	TimeoutMs  int      `json:"timeout_ms"`
	Systems    []string `json:"systems"`
	EntityType string   `json:"entity_type,omitempty"`
	Limit      *int     `json:"limit,omitempty"`
}
