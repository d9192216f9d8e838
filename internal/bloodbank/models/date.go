package models

import "time"

// CalendarDate returns midnight UTC of the UTC calendar day containing t.
// Donation dates are calendar dates; all day arithmetic runs on these, so the
// zone of the clock that produced t never shifts the result.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
