package domain

import "time"

// AddBillingPeriod advances t by one billing period, clamping the day to
// the last day of the target month. Jan 31 + monthly lands on Feb 29 in a
// leap year, and Feb 29 + annual lands on Feb 28.
func AddBillingPeriod(t time.Time, freq Frequency) time.Time {
	years, months := 0, 1
	if freq == FrequencyAnnual {
		years, months = 1, 0
	}

	y, m, d := t.Date()
	target := time.Date(y+years, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := daysIn(target.Year(), target.Month())
	if d > last {
		d = last
	}

	return time.Date(target.Year(), target.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
