package assistant

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Month-name vocabulary accepted by the free-form parsers. Three-letter
// abbreviations are allowed everywhere a full name is.
var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

const monthPattern = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)`

var (
	freeformLastNDaysRe = regexp.MustCompile(`\b(?:last|past)\s+(\d+)\s+days?\b`)
	betweenRe           = regexp.MustCompile(`\bbetween\s+` + monthPattern + `(?:\s+(\d{4}))?\s+and\s+` + monthPattern + `(?:\s+(\d{4}))?\b`)
	fromToRe            = regexp.MustCompile(`\bfrom\s+` + monthPattern + `(?:\s+(\d{4}))?\s+(?:to|until|till)\s+(?:(now|today)|` + monthPattern + `(?:\s+(\d{4}))?)\b`)
	monthPairRe         = regexp.MustCompile(`\b` + monthPattern + `\s+and\s+` + monthPattern + `\b`)
	sinceRe             = regexp.MustCompile(`\bsince\s+` + monthPattern + `(?:\s+(\d{4}))?\b`)
	bareMonthRe         = regexp.MustCompile(`\b` + monthPattern + `(?:\s+(\d{4}))?\b`)
)

// ParseFreeformRange matches free-form date phrases in normalized text and
// resolves them against now (UTC). Matchers run in a fixed priority order:
// relative day counts, then explicit month ranges, then open-ended and bare
// month forms. The first matcher that fires wins.
func ParseFreeformRange(text string, now time.Time) (Range, bool) {
	now = now.UTC()

	if m := freeformLastNDaysRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 {
			n = 1
		}
		return Range{
			Start: dayStart(now.AddDate(0, 0, -(n - 1))),
			End:   dayEnd(now),
			Label: fmt.Sprintf("in the last %d days", n),
		}, true
	}

	if m := betweenRe.FindStringSubmatch(text); m != nil {
		start := monthStart(m[1], m[2], now)
		end := monthEndOf(monthStart(m[3], m[4], now))
		return orderedRange(start, end, rangeLabel(m[1], m[2], m[3], m[4])), true
	}

	if m := fromToRe.FindStringSubmatch(text); m != nil {
		start := monthStart(m[1], m[2], now)
		if m[3] != "" { // "to now" / "until today"
			if start.After(now) {
				start = time.Date(start.Year()-1, start.Month(), 1, 0, 0, 0, 0, time.UTC)
			}
			label := fmt.Sprintf("from %s until %s", titleMonth(m[1]), m[3])
			return Range{Start: start, End: dayEnd(now), Label: label}, true
		}
		end := monthEndOf(monthStart(m[4], m[5], now))
		return orderedRange(start, end, fmt.Sprintf("from %s to %s", monthLabel(m[1], m[2]), monthLabel(m[4], m[5]))), true
	}

	if m := monthPairRe.FindStringSubmatch(text); m != nil {
		// Two bare months joined by "and": both in the current year.
		start := monthStart(m[1], "", now)
		end := monthEndOf(monthStart(m[2], "", now))
		return orderedRange(start, end, fmt.Sprintf("in %s and %s", titleMonth(m[1]), titleMonth(m[2]))), true
	}

	if m := sinceRe.FindStringSubmatch(text); m != nil {
		start := monthStart(m[1], m[2], now)
		if start.After(now) {
			start = time.Date(start.Year()-1, start.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
		// Open-ended: the window closes at the anchor instant, not day end.
		return Range{Start: start, End: now, Label: "since " + monthLabel(m[1], m[2])}, true
	}

	if m := bareMonthRe.FindStringSubmatch(text); m != nil {
		start := monthStart(m[1], m[2], now)
		return Range{Start: start, End: monthEndOf(start), Label: "in " + monthLabel(m[1], m[2])}, true
	}

	return Range{}, false
}

// monthStart resolves a month name plus optional year to the first of that
// month. A missing year means the current year at the anchor.
func monthStart(name, year string, now time.Time) time.Time {
	y := now.Year()
	if year != "" {
		y, _ = strconv.Atoi(year)
	}
	return time.Date(y, monthNames[name], 1, 0, 0, 0, 0, time.UTC)
}

func monthEndOf(start time.Time) time.Time {
	return dayEnd(start.AddDate(0, 1, -1))
}

// orderedRange swaps inverted bounds so Start never exceeds End.
func orderedRange(start, end time.Time, label string) Range {
	if end.Before(start) {
		endStart := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
		start, end = endStart, monthEndOf(start)
	}
	return Range{Start: start, End: end, Label: label}
}

func rangeLabel(m1, y1, m2, y2 string) string {
	return fmt.Sprintf("between %s and %s", monthLabel(m1, y1), monthLabel(m2, y2))
}

func monthLabel(name, year string) string {
	if year == "" {
		return titleMonth(name)
	}
	return titleMonth(name) + " " + year
}

func titleMonth(name string) string {
	return monthNames[name].String()
}
