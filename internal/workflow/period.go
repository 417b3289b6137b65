package workflow

import "time"

// Period identifies a calendar window used to scope dashboards and activity
// feeds.
type Period string

const (
	PeriodToday     Period = "today"
	PeriodThisWeek  Period = "thisWeek"
	PeriodThisMonth Period = "thisMonth"
)

// ValidPeriod reports whether the value names a supported window.
func ValidPeriod(period Period) bool {
	switch period {
	case PeriodToday, PeriodThisWeek, PeriodThisMonth:
		return true
	}
	return false
}

// InPeriod reports whether date falls inside the named window relative to
// reference. Dates are compared in the reference's location. Weeks run
// Sunday through Saturday.
func InPeriod(date time.Time, period Period, reference time.Time) bool {
	local := date.In(reference.Location())

	switch period {
	case PeriodToday:
		y1, m1, d1 := local.Date()
		y2, m2, d2 := reference.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case PeriodThisWeek:
		start := startOfDay(reference).AddDate(0, 0, -int(reference.Weekday()))
		end := start.AddDate(0, 0, 7)
		return !local.Before(start) && local.Before(end)
	case PeriodThisMonth:
		return local.Year() == reference.Year() && local.Month() == reference.Month()
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
