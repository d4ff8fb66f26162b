package reminder

import (
	"fmt"
	"strings"
	"time"
)

const (
	doctorName    = "Dr Mukwamu B. Justin"
	doctorTitle   = "médecin pédiatre"
	clinicSignOff = "l'Equipe Clinique"

	eveningHour = 18
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// PatientDisplayName joins first and last name, falling back to "Patient".
func PatientDisplayName(first, last string) string {
	name := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if name == "" {
		return "Patient"
	}
	return name
}

// FormatFrenchDate renders t as "15 mars 2024".
func FormatFrenchDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}

// BuildMessage renders the reminder text. scheduledLocal and nowLocal must
// already be in the clinic's zone; the greeting follows the time of sending.
func BuildMessage(name string, scheduledLocal, nowLocal time.Time) string {
	greeting := "Bonjour"
	if nowLocal.Hour() >= eveningHour {
		greeting = "Bonsoir"
	}
	if strings.TrimSpace(name) == "" {
		name = "Patient"
	}

	return fmt.Sprintf(
		"%s %s, rappel : votre rendez-vous est demain à %s (%s) avec le %s (%s). "+
			"Merci d'arriver 10 minutes en avance. Cordialement, %s.",
		greeting, name, scheduledLocal.Format("15:04"), FormatFrenchDate(scheduledLocal),
		doctorName, doctorTitle, clinicSignOff,
	)
}
