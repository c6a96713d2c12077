package inference

import (
	"encoding/json"
	"strings"
	"time"

	"ucap-workers/internal/common/validation"
	"ucap-workers/internal/models"
)

func primaryPrompt(text string, now time.Time, maxLimit int) string {
	schema, _ := json.Marshal(validation.FilterSchema(maxLimit))

	systems := make([]string, 0, len(models.AllSystems))
	for _, s := range models.AllSystems {
		systems = append(systems, string(s))
	}

	var b strings.Builder
	b.WriteString("You generate JSON arguments for a cross-system enterprise query tool.\n")
	b.WriteString("Output exactly one JSON object and nothing else: no explanations, no code fences.\n")
	b.WriteString("Supported systems: " + strings.Join(systems, ", ") + "\n")
	b.WriteString("JSON schema of filter_params (unknown keys are allowed):\n")
	b.Write(schema)
	b.WriteString("\nCurrent time (anchor for relative phrases): " + now.Format(time.RFC3339) + "\n")
	b.WriteString("Rules:\n")
	b.WriteString("1) If the request has any time meaning, set both filter_params.date_from and filter_params.date_to as ISO-8601 strings.\n")
	b.WriteString("2) Normalize relative phrases such as 'last N years/months/weeks/days', 近N年, 近N个月, 最近N周, 过去N天, 近两年: date_to is now and date_from is now minus the span.\n")
	b.WriteString("3) If the time cannot be determined, omit date_from and date_to entirely. Never output null.\n")
	b.WriteString("4) systems, if present, may only contain supported systems. timeout_ms, if present, is an integer in 50..60000.\n")
	b.WriteString(`Example: {"filter_params":{"entity_type":"transactions","limit":20},"systems":["fin"],"timeout_ms":3000}` + "\n")
	b.WriteString("Request: " + text)
	return b.String()
}

func narrowTimePrompt(text string, now time.Time) string {
	var b strings.Builder
	b.WriteString(`Output exactly one JSON object of the form {"date_from":"...","date_to":"..."}.` + "\n")
	b.WriteString("Current time (ISO-8601, anchor for relative phrases): " + now.Format(time.RFC3339) + "\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Weeks start on Monday.\n")
	b.WriteString("- Relative spans (last N years/months/weeks/days/quarters) end now and reach back.\n")
	b.WriteString("- Today, yesterday and the day before yesterday are single-day ranges.\n")
	b.WriteString("- This week/month/quarter start at the period start; last week/month/quarter are complete periods.\n")
	b.WriteString("If the time cannot be determined, output an empty object.\n")
	b.WriteString("Request: " + text)
	return b.String()
}
