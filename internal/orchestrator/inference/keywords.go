package inference

import (
	"regexp"
	"strconv"
	"strings"

	"ucap-workers/internal/models"
)

// keywordFamily maps a set of domain terms to a single source and a default
// entity type. ASCII terms match on word boundaries so that "hr" does not
// match inside "three".
type keywordFamily struct {
	system  models.SystemType
	entity  models.EntityType
	terms   []string
	english *regexp.Regexp
}

// families are checked in order; the first hit wins.
var families = []keywordFamily{
	{
		system:  models.SystemFIN,
		entity:  models.EntityTransactions,
		terms:   []string{"财务", "流水", "发票", "交易"},
		english: regexp.MustCompile(`(?i)\b(fin|finance|financial|transactions?|invoices?|payments?|ledgers?)\b`),
	},
	{
		system:  models.SystemHR,
		entity:  models.EntityPersons,
		terms:   []string{"员工", "人力", "薪资", "人员"},
		english: regexp.MustCompile(`(?i)\b(hr|employees?|staff|salary|salaries|payroll|personnel)\b`),
	},
	{
		system:  models.SystemERP,
		entity:  models.EntityCustomers,
		terms:   []string{"客户", "订单", "供应商", "组织"},
		english: regexp.MustCompile(`(?i)\b(erp|customers?|orders?|suppliers?|organi[sz]ations?)\b`),
	},
}

// capRule recognizes an explicit result cap. The count is submatch 1. When
// period is set, a match directly followed by it is a time span such as
// "前3个月" or "first 3 months", not a cap.
type capRule struct {
	pattern *regexp.Regexp
	period  *regexp.Regexp
}

var (
	englishPeriod = regexp.MustCompile(`(?i)^\s*(?:hours?|days?|weeks?|months?|quarters?|years?)\b`)
	chinesePeriod = regexp.MustCompile(`^(?:月|星期|季度)`)

	capRules = []capRule{
		{pattern: regexp.MustCompile(`(?i)\b(?:limit|top)\s*(?:of\s*)?(\d+)\b`)},
		{pattern: regexp.MustCompile(`(?i)\bfirst\s+(\d+)\b`), period: englishPeriod},
		{pattern: regexp.MustCompile(`(?:限制|最多)\s*(\d+)\s*(?:条|个|项|笔)?`), period: chinesePeriod},
		// 前N needs a count classifier: 前3天 and 前3月 are periods
		{pattern: regexp.MustCompile(`前\s*(\d+)\s*(?:条|个|项|笔)`), period: chinesePeriod},
	}
)

func matchFamily(text string) (keywordFamily, bool) {
	for _, f := range families {
		for _, term := range f.terms {
			if strings.Contains(text, term) {
				return f, true
			}
		}
		if f.english.MatchString(text) {
			return f, true
		}
	}
	return keywordFamily{}, false
}

// explicitCap returns a result cap written in the text, clamped to maxLimit.
func explicitCap(text string, maxLimit int) (int, bool) {
	for _, rule := range capRules {
		for _, m := range rule.pattern.FindAllStringSubmatchIndex(text, -1) {
			if rule.period != nil && rule.period.MatchString(text[m[1]:]) {
				continue
			}
			n, err := strconv.Atoi(text[m[2]:m[3]])
			if err != nil || n <= 0 {
				continue
			}
			if maxLimit > 0 && n > maxLimit {
				n = maxLimit
			}
			return n, true
		}
	}
	return 0, false
}

// keywordCandidate guesses a source, an entity type and a cap from the text.
// The default cap only applies when a keyword family matched.
func keywordCandidate(text string, defaultLimit, maxLimit int) *Candidate {
	c := &Candidate{Filter: make(map[string]interface{})}

	family, matched := matchFamily(text)
	if matched {
		c.Systems = []string{string(family.system)}
		c.Filter[keyEntityType] = string(family.entity)
	}

	if n, ok := explicitCap(text, maxLimit); ok {
		c.Filter[keyLimit] = n
	} else if matched && defaultLimit > 0 {
		c.Filter[keyLimit] = defaultLimit
	}

	if len(c.Filter) == 0 && len(c.Systems) == 0 {
		return nil
	}
	return c
}
