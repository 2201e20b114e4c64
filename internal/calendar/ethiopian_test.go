// internal/calendar/ethiopian_test.go
package calendar

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func greg(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEthiopian_FromGregorian(t *testing.T) {
	eth := NewEthiopian()

	tests := []struct {
		name string
		in   time.Time
		want Date
	}{
		{"new year 2017", greg(2024, 9, 11), Date{2017, 1, 1}},
		{"new year before gregorian leap", greg(2023, 9, 12), Date{2016, 1, 1}},
		{"meskel 2017", greg(2024, 9, 27), Date{2017, 1, 17}},
		{"mid nehase", greg(2026, 8, 30), Date{2018, 12, 24}},
		{"pagume", greg(2024, 9, 6), Date{2016, 13, 1}},
		{"time of day ignored", time.Date(2024, 9, 11, 23, 59, 59, 0, time.UTC), Date{2017, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eth.FromGregorian(tt.in); got != tt.want {
				t.Errorf("FromGregorian(%s) = %v, want %v", tt.in.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestEthiopian_ToGregorian(t *testing.T) {
	eth := NewEthiopian()

	got := eth.ToGregorian(Date{2017, 1, 1})
	want := greg(2024, 9, 11)
	if !got.Equal(want) {
		t.Errorf("ToGregorian(2017-01-01) = %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}
}

func TestEthiopian_MonthName(t *testing.T) {
	eth := NewEthiopian()

	tests := []struct {
		month int
		want  string
	}{
		{1, "Meskerem"},
		{5, "Tir"},
		{13, "Pagume"},
		{0, ""},
		{14, ""},
	}
	for _, tt := range tests {
		if got := eth.MonthName(tt.month); got != tt.want {
			t.Errorf("MonthName(%d) = %q, want %q", tt.month, got, tt.want)
		}
	}
}

func TestEthiopian_IsLeapYear(t *testing.T) {
	eth := NewEthiopian()
	for year, want := range map[int]bool{2015: true, 2016: false, 2017: false, 2019: true} {
		if got := eth.IsLeapYear(year); got != want {
			t.Errorf("IsLeapYear(%d) = %v, want %v", year, got, want)
		}
	}
}

func TestEthiopianHolidays(t *testing.T) {
	holidays := NewEthiopianHolidays()

	tests := []struct {
		date Date
		want string
		ok   bool
	}{
		{Date{2017, 1, 1}, "Enkutatash", true},
		{Date{2017, 1, 17}, "Meskel", true},
		{Date{2017, 4, 29}, "Genna", true},
		{Date{2017, 5, 11}, "Timket", true},
		{Date{2017, 2, 10}, "", false},
	}

	for _, tt := range tests {
		got, ok := holidays.Holiday(tt.date)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Holiday(%v) = %q, %v; want %q, %v", tt.date, got, ok, tt.want, tt.ok)
		}
	}
}

func TestEthiopian_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	eth := NewEthiopian()

	genDay := gen.IntRange(0, 73000).Map(func(n int) time.Time {
		return greg(1900, 1, 1).AddDate(0, 0, n)
	})

	properties.Property("round trip is the identity", prop.ForAll(
		func(t time.Time) bool {
			return eth.ToGregorian(eth.FromGregorian(t)).Equal(t)
		},
		genDay,
	))

	properties.Property("converted dates are well-formed", prop.ForAll(
		func(t time.Time) bool {
			d := eth.FromGregorian(t)
			if d.Month < 1 || d.Month > 13 || d.Day < 1 {
				return false
			}
			if d.Month == 13 {
				max := 5
				if eth.IsLeapYear(d.Year) {
					max = 6
				}
				return d.Day <= max
			}
			return d.Day <= 30
		},
		genDay,
	))

	properties.Property("consecutive days differ by one day in both calendars", prop.ForAll(
		func(t time.Time) bool {
			a := eth.FromGregorian(t)
			b := eth.FromGregorian(t.AddDate(0, 0, 1))
			return eth.ToGregorian(b).Sub(eth.ToGregorian(a)) == 24*time.Hour
		},
		genDay,
	))

	properties.TestingRun(t)
}
