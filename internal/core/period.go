package core

import "time"

// MonthRange returns the half-open range [first day of month, first day of
// next month) in loc. December rolls into January of the following year.
func MonthRange(year, month int, loc *time.Location) (start, end time.Time) {
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// IsPastMonth reports whether year/month lies strictly before the calendar
// month containing now.
func IsPastMonth(year, month int, now time.Time) bool {
	nowYear, nowMonth := now.Year(), int(now.Month())
	return year < nowYear || (year == nowYear && month < nowMonth)
}
