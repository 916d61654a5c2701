package assistant

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Canonical period keys. These are the only values Params.Period may carry
// besides the dynamic "last_N_days" form.
const (
	PeriodWeek         = "week"
	PeriodLastWeek     = "last_week"
	PeriodMonth        = "month"
	PeriodLastMonth    = "last_month"
	PeriodQuarter      = "quarter"
	PeriodLastQuarter  = "last_quarter"
	PeriodHalfYear     = "half_year"
	PeriodLastHalfYear = "last_half_year"
	PeriodYear         = "year"
	PeriodLastYear     = "last_year"
)

// Range is a concrete resolved time window. End always falls on the last
// microsecond of its day (or the anchor instant for open-ended phrases such
// as "since June"), so comparisons against stored timestamps are inclusive on
// both ends. Key is empty when the range came from free-form date parsing.
type Range struct {
	Start time.Time
	End   time.Time
	Label string
	Key   string
}

// periodAliases maps natural phrases to canonical keys. Scanned in order, so
// longer and "last"-flavoured phrases must come before their shorter cousins.
var periodAliases = []struct {
	phrase string
	key    string
}{
	{"last week", PeriodLastWeek},
	{"previous week", PeriodLastWeek},
	{"this week", PeriodWeek},
	{"current week", PeriodWeek},

	{"last month", PeriodLastMonth},
	{"previous month", PeriodLastMonth},
	{"this month", PeriodMonth},
	{"current month", PeriodMonth},

	{"last quarter", PeriodLastQuarter},
	{"previous quarter", PeriodLastQuarter},
	{"this quarter", PeriodQuarter},
	{"current quarter", PeriodQuarter},

	{"last half year", PeriodLastHalfYear},
	{"last half-year", PeriodLastHalfYear},
	{"last halfyear", PeriodLastHalfYear},
	{"previous half year", PeriodLastHalfYear},
	{"previous half-year", PeriodLastHalfYear},
	{"this half year", PeriodHalfYear},
	{"this half-year", PeriodHalfYear},
	{"this halfyear", PeriodHalfYear},
	{"half year", PeriodHalfYear},
	{"half-year", PeriodHalfYear},
	{"halfyear", PeriodHalfYear},
	{"h1", PeriodHalfYear},
	{"h2", PeriodHalfYear},

	{"last year", PeriodLastYear},
	{"previous year", PeriodLastYear},
	{"this year", PeriodYear},
	{"current year", PeriodYear},
}

var (
	lastNDaysKeyRe    = regexp.MustCompile(`^last_(\d+)_days$`)
	lastNDaysPhraseRe = regexp.MustCompile(`\b(?:last|past)\s+(\d+)\s+days?\b`)
)

// PeriodFromText scans normalized text for a canonical period phrase.
func PeriodFromText(text string) (string, bool) {
	padded := " " + text + " "
	for _, a := range periodAliases {
		if strings.Contains(padded, " "+a.phrase+" ") {
			return a.key, true
		}
	}
	return "", false
}

// StripPeriodPhrase removes the first recognized period phrase (canonical
// alias or "last N days") from normalized text, returning the detected key
// and the remainder. The remainder keeps single spacing so later category
// extraction is not polluted by period vocabulary.
func StripPeriodPhrase(text string) (key, remainder string) {
	padded := " " + text + " "
	for _, a := range periodAliases {
		if idx := strings.Index(padded, " "+a.phrase+" "); idx >= 0 {
			stripped := padded[:idx+1] + padded[idx+len(a.phrase)+2:]
			return a.key, collapseSpaces(stripped)
		}
	}
	if m := lastNDaysPhraseRe.FindStringSubmatchIndex(text); m != nil {
		n, _ := strconv.Atoi(text[m[2]:m[3]])
		if n < 1 {
			n = 1
		}
		stripped := text[:m[0]] + text[m[1]:]
		return fmt.Sprintf("last_%d_days", n), collapseSpaces(stripped)
	}
	return "", collapseSpaces(text)
}

// RangeForKey computes the concrete window for a canonical period key,
// anchored at now (UTC). Unrecognized or malformed keys fall back to the
// current month.
func RangeForKey(key string, now time.Time) Range {
	now = now.UTC()
	y, m, _ := now.Date()

	switch key {
	case PeriodWeek:
		start := startOfISOWeek(now)
		return Range{Start: start, End: dayEnd(start.AddDate(0, 0, 6)), Label: "this week", Key: key}
	case PeriodLastWeek:
		start := startOfISOWeek(now).AddDate(0, 0, -7)
		return Range{Start: start, End: dayEnd(start.AddDate(0, 0, 6)), Label: "last week", Key: key}
	case PeriodMonth:
		return monthRange(y, m, "this month", key)
	case PeriodLastMonth:
		prev := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return monthRange(prev.Year(), prev.Month(), "last month", key)
	case PeriodQuarter:
		return quarterRange(y, int(m-1)/3, "this quarter", key)
	case PeriodLastQuarter:
		q := int(m-1)/3 - 1
		if q < 0 {
			q = 3
			y--
		}
		return quarterRange(y, q, "last quarter", key)
	case PeriodHalfYear:
		return halfYearRange(y, m > 6, "this half-year", key)
	case PeriodLastHalfYear:
		if m <= 6 {
			return halfYearRange(y-1, true, "last half-year", key)
		}
		return halfYearRange(y, false, "last half-year", key)
	case PeriodYear:
		return yearRange(y, "this year", key)
	case PeriodLastYear:
		return yearRange(y-1, "last year", key)
	}

	if m := lastNDaysKeyRe.FindStringSubmatch(key); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 {
			n = 1
		}
		start := dayStart(now.AddDate(0, 0, -(n - 1)))
		return Range{Start: start, End: dayEnd(now), Label: fmt.Sprintf("in the last %d days", n), Key: key}
	}

	// Unknown key: fall back to the current month.
	return monthRange(y, m, "this month", PeriodMonth)
}

func monthRange(year int, month time.Month, label, key string) Range {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := dayEnd(start.AddDate(0, 1, -1))
	return Range{Start: start, End: end, Label: label, Key: key}
}

func quarterRange(year, q int, label, key string) Range {
	start := time.Date(year, time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
	end := dayEnd(start.AddDate(0, 3, -1))
	return Range{Start: start, End: end, Label: label, Key: key}
}

func halfYearRange(year int, second bool, label, key string) Range {
	startMonth := time.January
	if second {
		startMonth = time.July
	}
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	end := dayEnd(start.AddDate(0, 6, -1))
	return Range{Start: start, End: end, Label: label, Key: key}
}

func yearRange(year int, label, key string) Range {
	return Range{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   dayEnd(time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)),
		Label: label,
		Key:   key,
	}
}

// startOfISOWeek returns Monday 00:00:00 of the ISO week containing t.
func startOfISOWeek(t time.Time) time.Time {
	offset := int(t.Weekday()) - 1
	if offset < 0 {
		offset = 6 // Sunday
	}
	return dayStart(t.AddDate(0, 0, -offset))
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayEnd pins t to 23:59:59.999999 of its day. Microsecond precision keeps
// the closed upper bound inclusive against stored timestamps.
func dayEnd(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 999999000, time.UTC)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
