// internal/models/filter.go
package models

import (
	"strings"
	"time"
)

// FilterSpec is a normalized set of query constraints. Zero values mean
// "not set".
type FilterSpec struct {
	EntityType EntityType `json:"entity_type,omitempty"`
	DateFrom   string     `json:"date_from,omitempty"`
	DateTo     string     `json:"date_to,omitempty"`
	Limit      int        `json:"limit,omitempty"`

	// Extra carries caller keys that are not part of the closed filter schema.
	Extra map[string]interface{} `json:"-"`
}

// HasDateRange reports whether both bounds are set.
func (f FilterSpec) HasDateRange() bool {
	return f.DateFrom != "" && f.DateTo != ""
}

// ToMap renders the filter in the wire form used by workflows and prompts.
func (f FilterSpec) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(f.Extra)+4)
	for k, v := range f.Extra {
		out[k] = v
	}
	if f.EntityType != "" {
		out["entity_type"] = string(f.EntityType)
	}
	if f.DateFrom != "" {
		out["date_from"] = f.DateFrom
	}
	if f.DateTo != "" {
		out["date_to"] = f.DateTo
	}
	if f.Limit > 0 {
		out["limit"] = f.Limit
	}
	return out
}

var boundLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseBound parses an ISO-8601 date bound. Bounds without a zone are read
// in loc.
func ParseBound(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range boundLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatBound renders a bound the way the inferencer emits them.
func FormatBound(t time.Time) string {
	return t.Format(time.RFC3339)
}
