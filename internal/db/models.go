package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Appointment is the slice of the clinic's appointment row that the
// reminder job reads and writes.
type Appointment struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	ScheduledAt      time.Time  `json:"scheduled_at"`
	Status           string     `json:"status"`
	RemindersEnabled bool       `json:"reminders_enabled"`
	ReminderSentAt   *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Appointment status constants
const (
	AppointmentScheduled   = "SCHEDULED"
	AppointmentConfirmed   = "CONFIRMED"
	AppointmentCancelled   = "CANCELLED"
	AppointmentCompleted   = "COMPLETED"
	AppointmentNoShow      = "NO_SHOW"
	AppointmentRescheduled = "RESCHEDULED"
)

// Patient is read-only here; the clinic API owns it.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
}

// ReminderCandidate is an appointment joined with the patient it belongs to.
type ReminderCandidate struct {
	Appointment Appointment
	Patient     Patient
}

// AppointmentSMSLog records a single send attempt. Rows are append-only.
type AppointmentSMSLog struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Phone         string    `json:"phone"`
	Provider      string    `json:"provider"`
	Status        string    `json:"status"`
	MessageID     string    `json:"message_id,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SMS log status constants
const (
	SMSStatusSuccess = "SUCCESS"
	SMSStatusFailed  = "FAILED"
)

// CandidateQuery is the coarse filter applied before eligibility checks.
type CandidateQuery struct {
	Statuses []string
	From     time.Time // inclusive, UTC
	To       time.Time // exclusive, UTC
}

// ErrAppointmentNotFound is returned when an appointment id matches no row.
var ErrAppointmentNotFound = errors.New("appointment not found")
