package reminder

import "time"

// CutoffHour is the local hour on the day before an appointment from which
// a reminder may be sent.
const CutoffHour = 17

// Eligibility reasons
const (
	ReasonEligible       = "eligible"
	ReasonBeforeCutoff   = "before cutoff (17:00 day before)"
	ReasonTimePassed     = "appointment time has passed"
	ReasonAppointmentDay = "already appointment day, missed window"
	ReasonNotDayBefore   = "not the day before appointment"
)

// CheckEligibility decides whether a reminder may be sent at now for an
// appointment scheduled at scheduledAt. Both instants are interpreted in loc.
// A reminder is only ever sent on the calendar day before the appointment,
// from CutoffHour onwards; never on the appointment day itself.
func CheckEligibility(scheduledAt, now time.Time, loc *time.Location) (bool, string) {
	scheduled := scheduledAt.In(loc)
	local := now.In(loc)

	y, m, d := scheduled.Date()
	dayBefore := civilDate(time.Date(y, m, d-1, 0, 0, 0, 0, loc))
	cutoff := time.Date(y, m, d-1, CutoffHour, 0, 0, 0, loc)

	today := civilDate(local)

	switch {
	case local.Before(cutoff):
		return false, ReasonBeforeCutoff
	case !local.Before(scheduled):
		return false, ReasonTimePassed
	case !today.Before(civilDate(scheduled)):
		return false, ReasonAppointmentDay
	case !today.Equal(dayBefore):
		return false, ReasonNotDayBefore
	}
	return true, ReasonEligible
}

// civilDate drops the clock and zone so calendar days compare directly.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
