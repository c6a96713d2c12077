package inference

import "strings"

// Candidate is the partial answer of one inference stage. Filter holds raw
// filter keys as produced by the stage; they are validated once at the end.
type Candidate struct {
	Filter    map[string]interface{}
	Systems   []string
	TimeoutMs *int
}

func (c *Candidate) has(key string) bool {
	if c == nil {
		return false
	}
	return present(c.Filter[key])
}

// HasDateRange reports whether both bounds are set.
func (c *Candidate) HasDateRange() bool {
	return c.has(keyDateFrom) && c.has(keyDateTo)
}

func (c *Candidate) hasAnyDate() bool {
	return c.has(keyDateFrom) || c.has(keyDateTo)
}

// Merge returns a new candidate with every field of base, plus the fields
// of next that base lacks. Neither input is modified.
func Merge(base, next *Candidate) *Candidate {
	out := &Candidate{Filter: make(map[string]interface{})}
	if base != nil {
		for k, v := range base.Filter {
			out.Filter[k] = v
		}
		out.Systems = append(out.Systems, base.Systems...)
		out.TimeoutMs = base.TimeoutMs
	}
	if next == nil {
		return out
	}

	for k, v := range next.Filter {
		if !present(out.Filter[k]) && present(v) {
			out.Filter[k] = v
		}
	}
	if len(out.Systems) == 0 && len(next.Systems) > 0 {
		out.Systems = append([]string(nil), next.Systems...)
	}
	if out.TimeoutMs == nil && next.TimeoutMs != nil {
		t := *next.TimeoutMs
		out.TimeoutMs = &t
	}
	return out
}

// present treats nil and blank strings as absent.
func present(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	default:
		return true
	}
}

func candidateFromDefaults(defaults map[string]interface{}) *Candidate {
	if len(defaults) == 0 {
		return nil
	}
	c := &Candidate{Filter: make(map[string]interface{}, len(defaults))}
	for k, v := range defaults {
		c.Filter[k] = v
	}
	return c
}
