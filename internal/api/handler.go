package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicflow/reminders/internal/db"
	"github.com/clinicflow/reminders/internal/reminder"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 200
)

// AppointmentStore defines the appointment operations the admin API needs
type AppointmentStore interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*db.Appointment, error)
	ListSMSLogs(ctx context.Context, appointmentID uuid.UUID, limit, offset int) ([]*db.AppointmentSMSLog, error)
	ResetReminder(ctx context.Context, id uuid.UUID) error
}

// Runner triggers a reminder run
type Runner interface {
	Run(ctx context.Context) (*reminder.RunSummary, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// AppointmentResponse is an appointment with its reminder state
type AppointmentResponse struct {
	*db.Appointment
	ReminderSent bool `json:"reminder_sent"`
}

// SMSLogListResponse is returned by the sms-logs route
type SMSLogListResponse struct {
	Logs   []*db.AppointmentSMSLog `json:"logs"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// RunResponse wraps a run summary. Error is set when the run aborted.
type RunResponse struct {
	Summary *reminder.RunSummary `json:"summary"`
	Error   string               `json:"error,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger *zap.Logger
	store  AppointmentStore
	runner Runner
	health HealthChecker // nil skips the dependency check
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, store AppointmentStore, runner Runner, health HealthChecker) *Handler {
	return &Handler{
		logger: logger,
		store:  store,
		runner: runner,
		health: health,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.health.Health(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			h.writeError(w, http.StatusServiceUnavailable, "unhealthy", "Database unreachable", "")
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// GetAppointment handles GET /v1/appointments/{id}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	appt, err := h.store.GetAppointment(r.Context(), id)
	if errors.Is(err, db.ErrAppointmentNotFound) {
		h.writeError(w, http.StatusNotFound, "not_found", "Appointment not found", "")
		return
	}
	if err != nil {
		h.logger.Error("failed to get appointment", zap.Error(err), zap.String("appointment_id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get appointment", "")
		return
	}

	h.writeJSON(w, http.StatusOK, AppointmentResponse{
		Appointment:  appt,
		ReminderSent: appt.ReminderSentAt != nil,
	})
}

// ListSMSLogs handles GET /v1/appointments/{id}/sms-logs
func (h *Handler) ListSMSLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLogLimit {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid limit",
				"limit must be between 1 and "+strconv.Itoa(maxLogLimit))
			return
		}
		limit = n
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid offset", "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	logs, err := h.store.ListSMSLogs(r.Context(), id, limit, offset)
	if err != nil {
		h.logger.Error("failed to list sms logs", zap.Error(err), zap.String("appointment_id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list sms logs", "")
		return
	}

	h.writeJSON(w, http.StatusOK, SMSLogListResponse{
		Logs:   logs,
		Limit:  limit,
		Offset: offset,
	})
}

// ResetReminder handles POST /v1/appointments/{id}/reminder/reset.
// Clearing the marker makes the appointment eligible on the next run.
func (h *Handler) ResetReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	err := h.store.ResetReminder(r.Context(), id)
	if errors.Is(err, db.ErrAppointmentNotFound) {
		h.writeError(w, http.StatusNotFound, "not_found", "Appointment not found", "")
		return
	}
	if err != nil {
		h.logger.Error("failed to reset reminder", zap.Error(err), zap.String("appointment_id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to reset reminder", "")
		return
	}

	h.logger.Info("reminder reset via admin api",
		zap.String("appointment_id", id.String()),
		zap.String("admin", AdminSubject(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}

// RunReminders handles POST /v1/reminders/run
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.Run(r.Context())
	switch {
	case errors.Is(err, reminder.ErrRunInProgress):
		h.writeError(w, http.StatusConflict, "run_in_progress", "Reminder run already in progress", "")
	case errors.Is(err, reminder.ErrSafetyCapExceeded):
		h.writeJSON(w, http.StatusUnprocessableEntity, RunResponse{Summary: summary, Error: err.Error()})
	case err != nil:
		h.logger.Error("manual reminder run failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "run_failed", "Reminder run failed", err.Error())
	default:
		h.writeJSON(w, http.StatusOK, RunResponse{Summary: summary})
	}
}

func (h *Handler) appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid appointment ID", "ID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	writeProblem(w, status, errType, title, detail)
}

func writeProblem(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
