package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// dbtx is the subset of pgxpool.Pool the repository needs. pgxmock satisfies it.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles database operations for appointment reminders
type Repository struct {
	conn   dbtx
	logger *zap.Logger
}

// NewRepository creates a repository backed by the connection pool
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return NewRepositoryWithConn(db.Pool(), logger)
}

// NewRepositoryWithConn creates a repository over any pgx-compatible connection.
func NewRepositoryWithConn(conn dbtx, logger *zap.Logger) *Repository {
	return &Repository{
		conn:   conn,
		logger: logger,
	}
}

const candidateFilter = `
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.status = ANY($1)
		  AND a.reminders_enabled = TRUE
		  AND a.reminder_sent_at IS NULL
		  AND a.scheduled_at >= $2
		  AND a.scheduled_at < $3
`

// CountReminderCandidates counts appointments matching the coarse candidate filter.
func (r *Repository) CountReminderCandidates(ctx context.Context, q CandidateQuery) (int, error) {
	query := `SELECT COUNT(*)` + candidateFilter

	var count int
	if err := r.conn.QueryRow(ctx, query, q.Statuses, q.From, q.To).Scan(&count); err != nil {
		r.logger.Error("failed to count reminder candidates", zap.Error(err))
		return 0, fmt.Errorf("count reminder candidates: %w", err)
	}
	return count, nil
}

// ListReminderCandidates returns appointments matching the coarse filter,
// joined with their patient, ordered by scheduled time.
func (r *Repository) ListReminderCandidates(ctx context.Context, q CandidateQuery) ([]*ReminderCandidate, error) {
	query := `
		SELECT
			a.id, a.patient_id, a.scheduled_at, a.status, a.reminders_enabled,
			p.id, p.first_name, p.last_name, p.phone` + candidateFilter + `
		ORDER BY a.scheduled_at ASC, a.id ASC
	`

	rows, err := r.conn.Query(ctx, query, q.Statuses, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("query reminder candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*ReminderCandidate
	for rows.Next() {
		var c ReminderCandidate
		err := rows.Scan(
			&c.Appointment.ID,
			&c.Appointment.PatientID,
			&c.Appointment.ScheduledAt,
			&c.Appointment.Status,
			&c.Appointment.RemindersEnabled,
			&c.Patient.ID,
			&c.Patient.FirstName,
			&c.Patient.LastName,
			&c.Patient.Phone,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reminder candidate: %w", err)
		}
		candidates = append(candidates, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return candidates, nil
}

// MarkReminderSent stamps reminder_sent_at when it is still null.
// Returns false when another run got there first.
func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE appointments
		SET reminder_sent_at = $1, updated_at = NOW()
		WHERE id = $2 AND reminder_sent_at IS NULL
	`

	result, err := r.conn.Exec(ctx, query, at, id)
	if err != nil {
		r.logger.Error("failed to mark reminder sent",
			zap.Error(err),
			zap.String("appointment_id", id.String()),
		)
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// ResetReminder clears reminder_sent_at so the next run may send again.
func (r *Repository) ResetReminder(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE appointments
		SET reminder_sent_at = NULL, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.conn.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("reset reminder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
	}

	r.logger.Info("appointment reminder reset",
		zap.String("appointment_id", id.String()),
	)

	return nil
}

// GetAppointment retrieves an appointment by ID
func (r *Repository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `
		SELECT
			id, patient_id, scheduled_at, status, reminders_enabled,
			reminder_sent_at, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`

	var appt Appointment
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.ScheduledAt,
		&appt.Status,
		&appt.RemindersEnabled,
		&appt.ReminderSentAt,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
	}

	if err != nil {
		r.logger.Error("failed to get appointment",
			zap.Error(err),
			zap.String("appointment_id", id.String()),
		)
		return nil, fmt.Errorf("query appointment: %w", err)
	}

	return &appt, nil
}

// CreateSMSLog appends one attempt to the audit log.
func (r *Repository) CreateSMSLog(ctx context.Context, entry *AppointmentSMSLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO appointment_sms_logs (
			id, appointment_id, phone, provider, status, message_id, error_message
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING created_at
	`

	err := r.conn.QueryRow(
		ctx,
		query,
		entry.ID,
		entry.AppointmentID,
		entry.Phone,
		entry.Provider,
		entry.Status,
		entry.MessageID,
		entry.ErrorMessage,
	).Scan(&entry.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create sms log",
			zap.Error(err),
			zap.String("appointment_id", entry.AppointmentID.String()),
		)
		return fmt.Errorf("insert sms log: %w", err)
	}

	return nil
}

// ListSMSLogs retrieves the attempts for an appointment, newest first.
func (r *Repository) ListSMSLogs(ctx context.Context, appointmentID uuid.UUID, limit, offset int) ([]*AppointmentSMSLog, error) {
	query := `
		SELECT
			id, appointment_id, phone, provider, status,
			message_id, error_message, created_at
		FROM appointment_sms_logs
		WHERE appointment_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, appointmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query sms logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*AppointmentSMSLog, 0)
	for rows.Next() {
		var l AppointmentSMSLog
		err := rows.Scan(
			&l.ID,
			&l.AppointmentID,
			&l.Phone,
			&l.Provider,
			&l.Status,
			&l.MessageID,
			&l.ErrorMessage,
			&l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sms log: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return logs, nil
}
