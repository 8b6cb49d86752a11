// Recurrence computation for schedule rules.
//
// All functions here are pure: given a rule's frequency, target day of month and
// (for yearly rules) target month plus a reference day, they return the next
// occurrence day. Comparisons are by calendar day, so a rule targeting today's
// day is considered due today regardless of time of day.

package core

import "time"

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampedDate builds a date with the day reduced to the last valid day of the
// month when the target day overflows it. Clamping never spills into the next
// month: a day-31 rule lands on April 30, not May 1.
func clampedDate(year int, month time.Month, day int) Date {
	if max := daysIn(year, month); day > max {
		day = max
	}
	return NewDate(year, int(month), day)
}

// NextOccurrence returns the first occurrence of the rule that is not before
// ref's calendar day. The clamp is re-applied after any advancement so that a
// day-31 rule evaluated from a 30-day month targets day 31 of the next month,
// not the clamped 30.
func NextOccurrence(freq Frequency, dayOfMonth, month int, ref time.Time) Date {
	today := DateOf(ref)

	switch freq {
	case Yearly:
		candidate := clampedDate(today.Year(), time.Month(month), dayOfMonth)
		if candidate.Time.Before(today.Time) {
			candidate = clampedDate(today.Year()+1, time.Month(month), dayOfMonth)
		}
		return candidate
	default: // Monthly
		y, m, _ := today.Date()
		candidate := clampedDate(y, m, dayOfMonth)
		if candidate.Time.Before(today.Time) {
			next := today.AddDate(0, 0, -today.Day()+1).AddDate(0, 1, 0) // first of next month
			candidate = clampedDate(next.Year(), next.Month(), dayOfMonth)
		}
		return candidate
	}
}

// NextAfter returns the occurrence exactly one period after a fired occurrence.
// The materializer feeds the just-fired NextRun back in here, which guarantees
// forward progress of one period per fire even when the scan itself runs late.
func NextAfter(freq Frequency, dayOfMonth, month int, fired Date) Date {
	switch freq {
	case Yearly:
		return clampedDate(fired.Year()+1, time.Month(month), dayOfMonth)
	default: // Monthly
		first := fired.AddDate(0, 0, -fired.Day()+1) // first of the fired month
		next := first.AddDate(0, 1, 0)
		return clampedDate(next.Year(), next.Month(), dayOfMonth)
	}
}
