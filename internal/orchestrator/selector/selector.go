// Package selector validates the caller's source list and filter before a
// cross-system query is dispatched.
package selector

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ucap-workers/internal/models"
)

const (
	keyEntityType = "entity_type"
	keyDateFrom   = "date_from"
	keyDateTo     = "date_to"
	keyLimit      = "limit"
)

// DegradedWarning is emitted when no requested system survives validation.
const DegradedWarning = "no valid systems left, degraded to all sources"

type Logger interface {
	Debug(msg string, fields map[string]interface{})
}

// Selector holds no per-request state and is safe for concurrent use.
type Selector struct {
	logger Logger
}

func New(log Logger) *Selector {
	return &Selector{logger: log}
}

// Resolve validates both the source names and the raw filter.
func (s *Selector) Resolve(sourceNames []string, rawFilter map[string]interface{}) ([]models.SystemType, models.FilterSpec, []string) {
	systems, warnings := s.ValidateSystems(sourceNames)
	filter, filterWarnings := s.ValidateFilter(rawFilter)
	return systems, filter, append(warnings, filterWarnings...)
}

// ValidateSystems resolves source names to systems. Empty input selects all
// systems silently.
func (s *Selector) ValidateSystems(names []string) ([]models.SystemType, []string) {
	warnings := []string{}
	if len(names) == 0 {
		return allSystems(), warnings
	}

	seen := make(map[models.SystemType]struct{}, len(names))
	systems := make([]models.SystemType, 0, len(names))
	for _, name := range names {
		system, ok := models.ParseSystem(name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown system '%s' ignored", name))
			continue
		}
		if _, dup := seen[system]; dup {
			continue
		}
		seen[system] = struct{}{}
		systems = append(systems, system)
	}

	if len(systems) == 0 {
		warnings = append(warnings, DegradedWarning)
		return allSystems(), warnings
	}
	return systems, warnings
}

// ValidateFilter normalizes a raw filter map. Invalid entity types and
// limits are removed with a warning; other keys are carried in Extra.
func (s *Selector) ValidateFilter(raw map[string]interface{}) (models.FilterSpec, []string) {
	warnings := []string{}
	var filter models.FilterSpec

	for key, value := range raw {
		switch key {
		case keyEntityType, keyDateFrom, keyDateTo, keyLimit:
			continue
		}
		if filter.Extra == nil {
			filter.Extra = make(map[string]interface{})
		}
		filter.Extra[key] = value
	}

	if value, ok := raw[keyEntityType]; ok && value != nil {
		text := fmt.Sprint(value)
		if entity, valid := models.ParseEntityType(text); valid {
			filter.EntityType = entity
		} else {
			warnings = append(warnings, fmt.Sprintf("invalid entity_type '%s' removed", text))
		}
	}

	if value, ok := raw[keyLimit]; ok {
		if limit, valid := ParseLimit(value); valid {
			filter.Limit = limit
		} else {
			warnings = append(warnings, fmt.Sprintf("invalid limit '%v' removed", value))
		}
	}

	filter.DateFrom = s.dateBound(keyDateFrom, raw[keyDateFrom])
	filter.DateTo = s.dateBound(keyDateTo, raw[keyDateTo])

	return filter, warnings
}

// dateBound passes a bound through. Bounds are parsed by the sources, so a
// non-string value is only noted at debug level and carried in textual form.
func (s *Selector) dateBound(key string, value interface{}) string {
	var text string
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		text = models.FormatBound(v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		text = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case json.Number:
		text = v.String()
	default:
		text = fmt.Sprint(v)
	}

	if s.logger != nil {
		s.logger.Debug("Non-string date bound", map[string]interface{}{
			"key":   key,
			"type":  fmt.Sprintf("%T", value),
			"value": text,
		})
	}
	return text
}

// ParseLimit accepts integers, floats (truncated toward zero, so 2.5 gives 2),
// numeric strings and json.Number. The result must be positive.
func ParseLimit(value interface{}) (int, bool) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float32:
		return parseFloatLimit(float64(v))
	case float64:
		return parseFloatLimit(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			n = i
		} else if f, err := v.Float64(); err == nil {
			return parseFloatLimit(f)
		} else {
			return 0, false
		}
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}

	if n <= 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func parseFloatLimit(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t <= 0 || t > math.MaxInt32 {
		return 0, false
	}
	return int(t), true
}

func allSystems() []models.SystemType {
	return append([]models.SystemType(nil), models.AllSystems...)
}
