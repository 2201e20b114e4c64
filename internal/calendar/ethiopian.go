// internal/calendar/ethiopian.go
package calendar

import "time"

/*
 * Ethiopian (Amete Mihret) calendar arithmetic.
 *
 * Conversion runs through the Julian day number. The Ethiopian calendar is
 * perfectly regular: twelve 30-day months plus Pagume (5 days, 6 in years
 * where year % 4 == 3), so a 4-year cycle is exactly 1461 days and the JDN
 * round trip is pure integer arithmetic with no table lookups.
 *
 * ameteMihretEpoch is the JDN one year before Meskerem 1 of Ethiopian
 * year 1; both conversions offset from it by a whole year, which keeps
 * the cycle divisions non-negative. Known anchor used by the tests:
 * Gregorian 2024-09-11 is Meskerem 1, 2017.
 */

const ameteMihretEpoch = 1723856

var ethiopianMonths = [...]string{
	"Meskerem", "Tikimt", "Hidar", "Tahsas", "Tir", "Yekatit",
	"Megabit", "Miazia", "Ginbot", "Sene", "Hamle", "Nehase", "Pagume",
}

// Ethiopian converts between Gregorian dates and the Amete Mihret era.
type Ethiopian struct{}

func NewEthiopian() Ethiopian { return Ethiopian{} }

func (Ethiopian) Name() string { return "ethiopian" }

func (Ethiopian) FromGregorian(t time.Time) Date {
	return jdnToEthiopian(gregorianToJDN(t))
}

func (Ethiopian) ToGregorian(d Date) time.Time {
	return jdnToGregorian(ethiopianToJDN(d))
}

func (Ethiopian) MonthName(month int) string {
	if month < 1 || month > len(ethiopianMonths) {
		return ""
	}
	return ethiopianMonths[month-1]
}

// IsLeapYear reports whether the Ethiopian year has a 6-day Pagume.
func (Ethiopian) IsLeapYear(year int) bool {
	return year%4 == 3
}

// gregorianToJDN computes the Julian day number of t's civil date.
func gregorianToJDN(t time.Time) int {
	y, m, d := t.Date()
	a := (14 - int(m)) / 12
	yy := y + 4800 - a
	mm := int(m) + 12*a - 3
	return d + (153*mm+2)/5 + 365*yy + yy/4 - yy/100 + yy/400 - 32045
}

// jdnToGregorian inverts gregorianToJDN, yielding midnight UTC.
func jdnToGregorian(jdn int) time.Time {
	a := jdn + 32044
	b := (4*a + 3) / 146097
	c := a - 146097*b/4
	d := (4*c + 3) / 1461
	e := c - 1461*d/4
	m := (5*e + 2) / 153

	day := e - (153*m+2)/5 + 1
	month := m + 3 - 12*(m/10)
	year := 100*b + d - 4800 + m/10
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func jdnToEthiopian(jdn int) Date {
	r := (jdn - ameteMihretEpoch) % 1461
	n := r%365 + 365*(r/1460)
	return Date{
		Year:  4*((jdn-ameteMihretEpoch)/1461) + r/365 - r/1460,
		Month: n/30 + 1,
		Day:   n%30 + 1,
	}
}

func ethiopianToJDN(d Date) int {
	return ameteMihretEpoch + 365 + 365*(d.Year-1) + d.Year/4 + 30*(d.Month-1) + d.Day - 1
}
