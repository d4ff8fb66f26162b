package reminder

import (
	"testing"
	"time"
)

func kinshasa(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Kinshasa")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestCheckEligibility(t *testing.T) {
	loc := kinshasa(t)
	scheduled := time.Date(2024, 3, 15, 9, 0, 0, 0, loc)

	tests := []struct {
		name     string
		now      time.Time
		eligible bool
		reason   string
	}{
		{"one second before cutoff", time.Date(2024, 3, 14, 16, 59, 59, 0, loc), false, ReasonBeforeCutoff},
		{"exactly at cutoff", time.Date(2024, 3, 14, 17, 0, 0, 0, loc), true, ReasonEligible},
		{"late evening day before", time.Date(2024, 3, 14, 23, 59, 59, 0, loc), true, ReasonEligible},
		{"two days before", time.Date(2024, 3, 13, 18, 0, 0, 0, loc), false, ReasonBeforeCutoff},
		{"appointment morning", time.Date(2024, 3, 15, 7, 0, 0, 0, loc), false, ReasonAppointmentDay},
		{"appointment day midnight", time.Date(2024, 3, 15, 0, 0, 0, 0, loc), false, ReasonAppointmentDay},
		{"exactly at appointment", scheduled, false, ReasonTimePassed},
		{"after appointment", time.Date(2024, 3, 15, 10, 0, 0, 0, loc), false, ReasonTimePassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eligible, reason := CheckEligibility(scheduled.UTC(), tt.now.UTC(), loc)
			if eligible != tt.eligible || reason != tt.reason {
				t.Errorf("got (%v, %q), want (%v, %q)", eligible, reason, tt.eligible, tt.reason)
			}
		})
	}
}

func TestCheckEligibility_UsesClinicZone(t *testing.T) {
	loc := kinshasa(t)
	// 00:30 local on the 15th is 23:30 UTC on the 14th
	scheduled := time.Date(2024, 3, 14, 23, 30, 0, 0, time.UTC)

	eligible, reason := CheckEligibility(scheduled, time.Date(2024, 3, 14, 16, 30, 0, 0, time.UTC), loc)
	if !eligible {
		t.Fatalf("17:30 local the day before should be eligible, got %q", reason)
	}

	eligible, reason = CheckEligibility(scheduled, time.Date(2024, 3, 14, 15, 30, 0, 0, time.UTC), loc)
	if eligible || reason != ReasonBeforeCutoff {
		t.Fatalf("16:30 local should be before cutoff, got (%v, %q)", eligible, reason)
	}
}

func TestCheckEligibility_MonthBoundary(t *testing.T) {
	loc := kinshasa(t)
	scheduled := time.Date(2024, 3, 1, 8, 0, 0, 0, loc)

	eligible, reason := CheckEligibility(scheduled, time.Date(2024, 2, 29, 17, 0, 0, 0, loc), loc)
	if !eligible {
		t.Fatalf("leap day evening should be eligible, got %q", reason)
	}
}

func TestCandidateWindow(t *testing.T) {
	loc := kinshasa(t)
	now := time.Date(2024, 3, 14, 17, 0, 0, 0, loc)

	from, to := CandidateWindow(now, loc)

	if want := time.Date(2024, 3, 14, 23, 0, 0, 0, time.UTC); !from.Equal(want) {
		t.Errorf("from = %s, want %s", from, want)
	}
	if want := time.Date(2024, 3, 16, 23, 0, 0, 0, time.UTC); !to.Equal(want) {
		t.Errorf("to = %s, want %s", to, want)
	}
	if from.Location() != time.UTC || to.Location() != time.UTC {
		t.Error("window bounds must be UTC")
	}
}
