// internal/calendar/holidays.go
package calendar

/*
 * Fixed-date Ethiopian holiday table.
 *
 * Only holidays pinned to an Ethiopian calendar date live here. Movable
 * feasts (the Easter cycle and the fasts computed from Bahire Hasab) are
 * out of scope; rules that need them match on date fields directly.
 */

type monthDay struct {
	month int
	day   int
}

// EthiopianHolidays looks up fixed-date holidays by converted date.
type EthiopianHolidays struct {
	byDate map[monthDay]string
}

func NewEthiopianHolidays() *EthiopianHolidays {
	return &EthiopianHolidays{byDate: map[monthDay]string{
		{1, 1}:  "Enkutatash",
		{1, 17}: "Meskel",
		{4, 19}: "Kulubi Gabriel",
		{4, 29}: "Genna",
		{5, 11}: "Timket",
		{5, 12}: "Kana Zegelila",
		{6, 23}: "Adwa Victory Day",
		{8, 23}: "Kidus Giyorgis",
	}}
}

func (h *EthiopianHolidays) Holiday(d Date) (string, bool) {
	name, ok := h.byDate[monthDay{d.Month, d.Day}]
	return name, ok
}
