// internal/calendar/calendar.go
package calendar

import (
	"fmt"
	"time"
)

/*
 * Calendar conversion collaborators.
 *
 * The rule engine is calendar-agnostic: it only ever sees the strings and
 * numbers the context builder copies out of a converted Date. Conversion
 * and holiday lookup live behind small interfaces so the engine's tests can
 * run on fixed tables and a second calendar system can slot in without
 * touching evaluation.
 */

// Date is a converted calendar date. Month and Day are 1-based in the
// target calendar system.
type Date struct {
	Year  int
	Month int
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Converter maps Gregorian instants into another calendar system.
type Converter interface {
	// Name identifies the calendar system, e.g. "ethiopian".
	Name() string
	// FromGregorian converts the civil date of t.
	FromGregorian(t time.Time) Date
	// ToGregorian converts back to a midnight-UTC Gregorian date.
	ToGregorian(d Date) time.Time
	// MonthName returns the month's name in the target system, or ""
	// for an out-of-range month.
	MonthName(month int) string
}

// HolidayLookup names fixed-date holidays in the converted calendar.
type HolidayLookup interface {
	// Holiday returns the holiday name falling on d, if any.
	Holiday(d Date) (string, bool)
}
