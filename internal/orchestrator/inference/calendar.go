package inference

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ucap-workers/internal/models"
)

// TimeRange is a date range resolved from one calendar phrase.
type TimeRange struct {
	From  time.Time
	To    time.Time
	Label string
}

func (r TimeRange) warning() string {
	return fmt.Sprintf("calendar phrase '%s' resolved to %s..%s", r.Label, models.FormatBound(r.From), models.FormatBound(r.To))
}

type fixedPeriod struct {
	label   string
	pattern *regexp.Regexp
	resolve func(now time.Time) (time.Time, time.Time)
}

// fixedPeriods are tried in order; only the first match is used.
var fixedPeriods = []fixedPeriod{
	{"this week", regexp.MustCompile(`本周|这周|这一周|(?i)\bthis week\b`), func(now time.Time) (time.Time, time.Time) {
		return startOfWeek(now), now
	}},
	{"last week", regexp.MustCompile(`上周|上一周|上星期|上个星期|(?i)\b(last|previous) week\b`), func(now time.Time) (time.Time, time.Time) {
		start := startOfWeek(now)
		return start.AddDate(0, 0, -7), endOfDay(start.AddDate(0, 0, -1))
	}},
	{"this month", regexp.MustCompile(`本月|这个月|当月|(?i)\bthis month\b`), func(now time.Time) (time.Time, time.Time) {
		return startOfMonth(now), now
	}},
	{"last month", regexp.MustCompile(`上月|上个月|(?i)\b(last|previous) month\b`), func(now time.Time) (time.Time, time.Time) {
		start := startOfMonth(now)
		return start.AddDate(0, -1, 0), endOfDay(start.AddDate(0, 0, -1))
	}},
	{"this year", regexp.MustCompile(`今年|本年|当年|(?i)\bthis year\b`), func(now time.Time) (time.Time, time.Time) {
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), now
	}},
	{"last year", regexp.MustCompile(`去年|(?i)\b(last|previous) year\b`), func(now time.Time) (time.Time, time.Time) {
		return wholeYear(now.Year()-1, now.Location())
	}},
	{"the year before last", regexp.MustCompile(`前年|(?i)\bthe year before last\b`), func(now time.Time) (time.Time, time.Time) {
		return wholeYear(now.Year()-2, now.Location())
	}},
	{"this quarter", regexp.MustCompile(`本季度|这个季度|当季|(?i)\bthis quarter\b`), func(now time.Time) (time.Time, time.Time) {
		return startOfQuarter(now), now
	}},
	{"last quarter", regexp.MustCompile(`上季度|上一季度|上个季度|上季|(?i)\b(last|previous) quarter\b`), func(now time.Time) (time.Time, time.Time) {
		start := startOfQuarter(now)
		return start.AddDate(0, -3, 0), endOfDay(start.AddDate(0, 0, -1))
	}},
	{"next quarter", regexp.MustCompile(`下季度|下个季度|下一季度|(?i)\bnext quarter\b`), func(now time.Time) (time.Time, time.Time) {
		start := startOfQuarter(now).AddDate(0, 3, 0)
		return start, endOfDay(start.AddDate(0, 3, -1))
	}},
	{"today", regexp.MustCompile(`今天|今日|当天|(?i)\btoday\b`), func(now time.Time) (time.Time, time.Time) {
		return startOfDay(now), endOfDay(now)
	}},
	{"the day before yesterday", regexp.MustCompile(`前天|(?i)\bthe day before yesterday\b`), func(now time.Time) (time.Time, time.Time) {
		d := now.AddDate(0, 0, -2)
		return startOfDay(d), endOfDay(d)
	}},
	{"yesterday", regexp.MustCompile(`昨天|昨日|(?i)\byesterday\b`), func(now time.Time) (time.Time, time.Time) {
		d := now.AddDate(0, 0, -1)
		return startOfDay(d), endOfDay(d)
	}},
	{"last half-year", regexp.MustCompile(`近半年|最近半年|过去半年|(?i)\b(last|past) half[- ]year\b`), func(now time.Time) (time.Time, time.Time) {
		return addMonths(now, -6), now
	}},
	{"last 1 quarter", regexp.MustCompile(`近1个季度|近一个季度|近一季|最近1个季度|过去1个季度|(?i)\b(last|past) (1|one) quarter\b|\bpast quarter\b`), func(now time.Time) (time.Time, time.Time) {
		return addMonths(now, -3), now
	}},
}

var (
	relativeCN = regexp.MustCompile(`(近|最近|过去)\s*([0-9]+|[零一二两三四五六七八九十百]+)\s*(个)?\s*(年|月|天|日|周|星期)`)
	relativeEN = regexp.MustCompile(`(?i)\b(?:last|past|recent|previous)\s+(\d+)\s+(years?|months?|weeks?|days?)\b`)
)

// RecognizeCalendar resolves calendar phrases in text against now. The
// fixed period match, if any, comes first and the relative match second.
func RecognizeCalendar(text string, now time.Time) []TimeRange {
	var out []TimeRange

	for _, p := range fixedPeriods {
		if p.pattern.MatchString(text) {
			from, to := p.resolve(now)
			out = append(out, TimeRange{From: from, To: to, Label: p.label})
			break
		}
	}

	if r, ok := relativeRange(text, now); ok {
		out = append(out, r)
	}
	return out
}

func relativeRange(text string, now time.Time) (TimeRange, bool) {
	var n int
	var unit string

	if m := relativeCN.FindStringSubmatch(text); m != nil {
		n = chineseToInt(m[2])
		switch m[4] {
		case "年":
			unit = "year"
		case "月":
			unit = "month"
		case "天", "日":
			unit = "day"
		case "周", "星期":
			unit = "week"
		}
	} else if m := relativeEN.FindStringSubmatch(text); m != nil {
		n, _ = strconv.Atoi(m[1])
		unit = strings.TrimSuffix(strings.ToLower(m[2]), "s")
	}

	if n <= 0 || unit == "" {
		return TimeRange{}, false
	}

	var from time.Time
	switch unit {
	case "year":
		from = addMonths(now, -12*n)
	case "month":
		from = addMonths(now, -n)
	case "week":
		from = now.AddDate(0, 0, -7*n)
	case "day":
		from = now.AddDate(0, 0, -n)
	}

	label := fmt.Sprintf("last %d %s", n, unit)
	if n > 1 {
		label += "s"
	}
	return TimeRange{From: from, To: now, Label: label}, true
}

var chineseDigits = map[rune]int{
	'零': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// chineseToInt reads digits or common Chinese numerals such as 三, 十二,
// 二十, 六十五 and 一百.
func chineseToInt(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}

	total, current := 0, 0
	for _, r := range s {
		switch r {
		case '百':
			if current == 0 {
				current = 1
			}
			total += current * 100
			current = 0
		case '十':
			if current == 0 {
				current = 1
			}
			total += current * 10
			current = 0
		default:
			current = chineseDigits[r]
		}
	}
	return total + current
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// startOfWeek returns Monday 00:00 of t's week.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t.AddDate(0, 0, -offset))
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfQuarter(t time.Time) time.Time {
	month := time.Month((int(t.Month())-1)/3*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, t.Location())
}

func wholeYear(year int, loc *time.Location) (time.Time, time.Time) {
	return time.Date(year, 1, 1, 0, 0, 0, 0, loc), time.Date(year, 12, 31, 23, 59, 59, 0, loc)
}

// addMonths shifts t by n months, clamping the day to the target month's
// length so that May 31 minus three months is Feb 28/29.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	lastDay := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// calendarCandidate turns the first recognized range into filter bounds.
func calendarCandidate(ranges []TimeRange, loc *time.Location) *Candidate {
	if len(ranges) == 0 {
		return nil
	}
	r := ranges[0]
	return &Candidate{Filter: map[string]interface{}{
		keyDateFrom: models.FormatBound(r.From.In(loc)),
		keyDateTo:   models.FormatBound(r.To.In(loc)),
	}}
}
