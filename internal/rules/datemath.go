// internal/rules/datemath.go
package rules

import (
	"strings"
	"time"

	"github.com/kidase-app/kidase-rules/internal/types"
)

/*
 * Calendar-aware date arithmetic for $diff and $nthDayAfter clauses.
 *
 * The domain is calendar-rule-driven, so month and year differences count
 * calendar boundaries rather than dividing fixed-length spans: the month
 * diff is the number of whole months elapsed (day-of-month compared to
 * decide whether the last partial month counts), and the year diff is
 * whole months / 12. Day diffs compare civil dates, immune to DST because
 * both endpoints normalize to midnight UTC first.
 */

// dateLayouts are the accepted textual date forms, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// weekdayNames maps day names to Go weekdays, Sun=0..Sat=6.
var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday converts a day name or 0-6 integer to a weekday.
func ParseWeekday(v any) (time.Weekday, error) {
	switch d := v.(type) {
	case string:
		if wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(d))]; ok {
			return wd, nil
		}
	default:
		if n, ok := toFloat64(v); ok && n == float64(int(n)) && n >= 0 && n <= 6 {
			return time.Weekday(int(n)), nil
		}
	}
	return 0, types.ErrBadWeekday
}

// parseDate converts a resolved context value to a civil date.
// Accepts time.Time and the textual layouts above.
func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// toCivil truncates to midnight UTC, keeping only the calendar date.
func toCivil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateDiff computes the calendar difference from one date to another.
// Negative when to precedes from. Unit is days, weeks, months, or years.
func DateDiff(from, to time.Time, unit string) (int, error) {
	from = toCivil(from)
	to = toCivil(to)

	switch unit {
	case "days":
		return int(to.Sub(from).Hours() / 24), nil
	case "weeks":
		return int(to.Sub(from).Hours()/24) / 7, nil
	case "months":
		return wholeMonths(from, to), nil
	case "years":
		return wholeMonths(from, to) / 12, nil
	default:
		return 0, types.ErrBadDiffUnit
	}
}

// wholeMonths counts whole calendar months elapsed from a to b.
// A partial trailing month does not count: Jan 31 -> Feb 28 is 0 months.
func wholeMonths(a, b time.Time) int {
	if b.Before(a) {
		return -wholeMonths(b, a)
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	return months
}

// NthWeekdayOnOrAfter returns the date of the nth occurrence of weekday on
// or after from. nth is 1-based; nth=1 may be from itself.
func NthWeekdayOnOrAfter(from time.Time, weekday time.Weekday, nth int) time.Time {
	from = toCivil(from)
	delta := (int(weekday) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, delta+7*(nth-1))
}

// compareWithOp applies an ordering operator name to a three-way compare
// result. Only the six ordering/equality operators are meaningful on the
// calendar clauses; anything else fails closed.
func compareWithOp(op string, cmp int) bool {
	switch op {
	case "$eq":
		return cmp == 0
	case "$ne":
		return cmp != 0
	case "$gt":
		return cmp > 0
	case "$gte":
		return cmp >= 0
	case "$lt":
		return cmp < 0
	case "$lte":
		return cmp <= 0
	}
	return false
}
