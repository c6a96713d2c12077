package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrUnparsableReply = errors.New("model reply contains no JSON object")

	// greedy on purpose: spans from the first '{' to the last '}'
	jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ParseReply extracts a JSON object from a model reply. It tries the whole
// reply, then the widest brace-delimited span, then the first complete
// object starting at the first brace.
func ParseReply(reply string) (map[string]interface{}, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, ErrUnparsableReply
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(reply), &obj); err == nil && obj != nil {
		return obj, nil
	}

	if match := jsonObjectPattern.FindString(reply); match != "" {
		obj = nil
		if err := json.Unmarshal([]byte(match), &obj); err == nil && obj != nil {
			return obj, nil
		}
	}

	if idx := strings.IndexByte(reply, '{'); idx >= 0 {
		obj = nil
		dec := json.NewDecoder(strings.NewReader(reply[idx:]))
		if err := dec.Decode(&obj); err == nil && obj != nil {
			return obj, nil
		}
	}

	return nil, ErrUnparsableReply
}

// pickDates reads a complete date range either at the top level of obj or
// under filter_params.
func pickDates(obj map[string]interface{}) (string, string, bool) {
	if from, to, ok := bothBounds(obj); ok {
		return from, to, true
	}
	if nested, ok := obj[keyFilterParams].(map[string]interface{}); ok {
		return bothBounds(nested)
	}
	return "", "", false
}

func bothBounds(m map[string]interface{}) (string, string, bool) {
	if !present(m[keyDateFrom]) || !present(m[keyDateTo]) {
		return "", "", false
	}
	return asText(m[keyDateFrom]), asText(m[keyDateTo]), true
}

func asText(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}
