package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// isoBoundPattern accepts a date, or a date-time with optional fraction and zone.
const isoBoundPattern = `^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?$`

// FilterSchema returns the JSON schema accepted for filter params.
func FilterSchema(maxLimit int) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"entity_type": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"organizations", "persons", "customers", "transactions"},
			},
			"date_from": map[string]interface{}{"type": "string", "pattern": isoBoundPattern},
			"date_to":   map[string]interface{}{"type": "string", "pattern": isoBoundPattern},
			"limit": map[string]interface{}{
				"type":    "integer",
				"minimum": 1,
				"maximum": maxLimit,
			},
		},
		"additionalProperties": true,
	}
}

// InferenceReplySchema returns the schema of the primary model reply.
func InferenceReplySchema(maxLimit int) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filter_params": FilterSchema(maxLimit),
			"systems": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"timeout_ms": map[string]interface{}{"type": "integer"},
		},
		"additionalProperties": true,
	}
}

// Validate checks document against schema. An error is returned only when
// the schema itself cannot be compiled.
func Validate(schema, document map[string]interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool {
		return out.Errors[i].Field < out.Errors[j].Field
	})
	return out, nil
}

// FieldErrors groups errors by field name.
func (r *ValidationResult) FieldErrors() map[string][]ValidationError {
	out := make(map[string][]ValidationError)
	for _, e := range r.Errors {
		out[e.Field] = append(out[e.Field], e)
	}
	return out
}

func (r *ValidationResult) String() string {
	if r.Valid {
		return "valid"
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}
