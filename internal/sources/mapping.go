// internal/sources/mapping.go
package sources

import (
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ucap-workers/internal/models"
)

// RawRecord is one row of a <system>_<entity> table.
type RawRecord map[string]interface{}

// RawSet holds the raw rows of one system, by entity type.
type RawSet map[models.EntityType][]RawRecord

// Mapper turns a system's raw rows into canonical entities.
type Mapper func(raw RawSet, loc *time.Location) (*models.EntityBundle, error)

// UnknownOrgID is the sentinel org used when an association cannot be resolved.
const UnknownOrgID = "unknown_org"

var (
	idCleaner   = regexp.MustCompile(`[^\w\-]`)
	phoneDigits = regexp.MustCompile(`^\+?[0-9][0-9\- ]{5,19}$`)
	amountJunk  = regexp.MustCompile(`[^\d.\-]`)
	amountShape = regexp.MustCompile(`^\s*[\d.\-\s,¥￥$€£¢]+\s*$`)
	hasLetters  = regexp.MustCompile(`[a-zA-Z]`)
)

// systemDateLayouts are tried before the common layouts.
var systemDateLayouts = map[models.SystemType][]string{
	models.SystemERP: {"2006-01-02", "2006-01-02 15:04:05"},
	models.SystemHR:  {"02/01/2006", "02/01/2006 15:04:05"},
	models.SystemFIN: {"01-02-2006 15:04:05", "01-02-2006"},
}

var commonDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"01-02-2006 15:04:05",
	"01-02-2006",
	"2006/01/02",
}

var statusMapping = map[string]string{
	"active":    "active",
	"inactive":  "inactive",
	"pending":   "pending",
	"completed": "completed",
	"cancelled": "cancelled",
	"在职":        "active",
	"离职":        "inactive",
	"已确认":       "completed",
	"处理中":       "pending",
	"已完成":       "completed",
	"已取消":       "cancelled",
	"待审批":       "pending",
	"已审批":       "active",
	"已执行":       "completed",
	"已拒绝":       "cancelled",
	"待审核":       "pending",
	"已审核":       "active",
	"已入账":       "completed",
}

var transactionTypeMapping = map[string]string{
	"销售订单": "sales",
	"采购订单": "expense",
	"退货单":  "sales",
	"换货单":  "sales",
	"入职办理": "salary",
	"离职办理": "salary",
	"薪资调整": "salary",
	"职位变更": "salary",
	"培训申请": "expense",
	"请假申请": "salary",
	"绩效评估": "salary",
	"收款":   "receipt",
	"付款":   "payment",
	"转账":   "transfer",
	"调整":   "expense",
	"结算":   "payment",
}

var orgTypeKeywords = []struct {
	keyword string
	orgType string
}{
	{"成本中心", "cost_center"},
	{"利润中心", "cost_center"},
	{"投资中心", "cost_center"},
	{"公司", "company"},
	{"小组", "team"},
	{"部", "dept"},
	{"company", "company"},
	{"dept", "dept"},
	{"department", "dept"},
	{"team", "team"},
	{"cost_center", "cost_center"},
}

// str renders a raw column as trimmed text; nil and "null" become "".
func str(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(val)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			return ""
		}
		return s
	case []byte:
		return str(string(val))
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// firstOf returns the first non-empty column among keys.
func firstOf(r RawRecord, keys ...string) string {
	for _, k := range keys {
		if s := str(r[k]); s != "" {
			return s
		}
	}
	return ""
}

// normalizeID qualifies a raw identifier as <system>_<id>.
func normalizeID(raw string, system models.SystemType) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty %s identifier", system)
	}
	cleaned := idCleaner.ReplaceAllString(raw, "_")
	prefix := string(system) + "_"
	if strings.HasPrefix(cleaned, prefix) {
		return cleaned, nil
	}
	return prefix + cleaned, nil
}

// optionalID is normalizeID for columns that may be empty.
func optionalID(raw string, system models.SystemType) string {
	id, err := normalizeID(raw, system)
	if err != nil {
		return ""
	}
	return id
}

func orgOrUnknown(raw string, system models.SystemType) string {
	if id := optionalID(raw, system); id != "" {
		return id
	}
	return string(system) + "_" + UnknownOrgID
}

// normalizeDate parses a raw date column with the system's layouts first.
func normalizeDate(v interface{}, system models.SystemType, loc *time.Location) *time.Time {
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return nil
		}
		return &t
	}
	s := str(v)
	if s == "" {
		return nil
	}
	layouts := append(append([]string{}, systemDateLayouts[system]...), commonDateLayouts...)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

func firstDate(r RawRecord, system models.SystemType, loc *time.Location, keys ...string) *time.Time {
	for _, k := range keys {
		if t := normalizeDate(r[k], system, loc); t != nil {
			return t
		}
	}
	return nil
}

// normalizeAmount strips currency symbols and separators and rounds to cents.
func normalizeAmount(v interface{}) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return math.Round(val*100) / 100, nil
	case int64:
		return float64(val), nil
	case int:
		return float64(val), nil
	}

	s := str(v)
	if s == "" {
		return 0, nil
	}
	if hasLetters.MatchString(s) && !amountShape.MatchString(s) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	negative := strings.Contains(s, "-")
	cleaned := strings.ReplaceAll(amountJunk.ReplaceAllString(s, ""), "-", "")
	if cleaned == "" {
		return 0, nil
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if negative {
		amount = -amount
	}
	return math.Round(amount*100) / 100, nil
}

func normalizeStatus(v interface{}) string {
	s := str(v)
	if s == "" {
		return "active"
	}
	if mapped, ok := statusMapping[s]; ok {
		return mapped
	}
	// "inactive" contains "active", so it is checked first
	lower := strings.ToLower(s)
	for _, canonical := range []string{"inactive", "active", "pending", "completed", "cancelled"} {
		if strings.Contains(lower, canonical) {
			return canonical
		}
	}
	return "active"
}

func normalizeTransactionType(v interface{}) string {
	s := str(v)
	if mapped, ok := transactionTypeMapping[s]; ok {
		return mapped
	}
	lower := strings.ToLower(s)
	switch lower {
	case "sales", "salary", "expense", "payment", "receipt", "transfer":
		return lower
	}
	return "expense"
}

func normalizeOrgType(orgType, orgName string) string {
	for _, candidate := range []string{orgType, orgName} {
		if candidate == "" {
			continue
		}
		lower := strings.ToLower(candidate)
		for _, kw := range orgTypeKeywords {
			if strings.Contains(lower, kw.keyword) {
				return kw.orgType
			}
		}
	}
	return "dept"
}

func cleanText(v interface{}) string {
	return strings.Join(strings.Fields(str(v)), " ")
}

func validateEmail(v interface{}) string {
	s := str(v)
	if s == "" {
		return ""
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return ""
	}
	return strings.ToLower(s)
}

func validatePhone(v interface{}) string {
	s := str(v)
	if s == "" || !phoneDigits.MatchString(s) {
		return ""
	}
	return s
}
