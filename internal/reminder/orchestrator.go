// Package reminder runs the day-before SMS reminder batch: it selects
// candidate appointments, applies the send window, and records every attempt.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicflow/reminders/internal/db"
	"github.com/clinicflow/reminders/internal/metrics"
	"github.com/clinicflow/reminders/internal/observ"
	"github.com/clinicflow/reminders/internal/sms"
)

const (
	// EventRunCompleted is published after every run, aborted or not.
	EventRunCompleted = "reminder.run.completed"

	missingPhoneError = "patient phone number is missing"
	defaultLockName   = "reminders:run"

	// persistTimeout bounds the writes that follow a send once the run
	// context may already be cancelled.
	persistTimeout = 10 * time.Second
)

var (
	// ErrSafetyCapExceeded aborts a run before anything is sent.
	ErrSafetyCapExceeded = errors.New("safety cap exceeded")

	// ErrRunInProgress means another run holds the run lock.
	ErrRunInProgress = errors.New("reminder run already in progress")
)

// DefaultStatuses are the appointment statuses that receive reminders.
var DefaultStatuses = []string{db.AppointmentConfirmed, db.AppointmentRescheduled}

// Store is the persistence the orchestrator needs.
type Store interface {
	CountReminderCandidates(ctx context.Context, q db.CandidateQuery) (int, error)
	ListReminderCandidates(ctx context.Context, q db.CandidateQuery) ([]*db.ReminderCandidate, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	CreateSMSLog(ctx context.Context, entry *db.AppointmentSMSLog) error
}

// Locker guards against overlapping runs. acquired is false when another
// holder has the lock; err is set when the lock backend is unreachable.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (unlock func(), acquired bool, err error)
}

// Alerter notifies operators.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// EventPublisher emits run events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Config controls one orchestrator.
type Config struct {
	Location  *time.Location
	MaxPerRun int
	Statuses  []string
	LockName  string
	LockTTL   time.Duration
}

// RunSummary is the outcome of one run.
type RunSummary struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Candidates int       `json:"candidates"`
	Skipped    int       `json:"skipped"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Aborted    bool      `json:"aborted"`
	Cap        int       `json:"cap"`
}

// Orchestrator executes reminder runs.
type Orchestrator struct {
	store   Store
	gateway sms.Gateway
	config  Config
	logger  *zap.Logger

	locker  Locker
	alerter Alerter
	events  EventPublisher
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator. Locker, alerter, and event
// publisher are optional and attached with the With* methods.
func NewOrchestrator(store Store, gateway sms.Gateway, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = 200
	}
	if len(cfg.Statuses) == 0 {
		cfg.Statuses = DefaultStatuses
	}
	if cfg.LockName == "" {
		cfg.LockName = defaultLockName
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}

	return &Orchestrator{
		store:   store,
		gateway: gateway,
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (o *Orchestrator) WithLocker(l Locker) *Orchestrator {
	o.locker = l
	return o
}

func (o *Orchestrator) WithAlerter(a Alerter) *Orchestrator {
	o.alerter = a
	return o
}

func (o *Orchestrator) WithEvents(p EventPublisher) *Orchestrator {
	o.events = p
	return o
}

// WithClock replaces the wall clock, for tests and backfills.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// CandidateWindow returns the UTC query range for a run at now: from the
// start of tomorrow to the end of the day after tomorrow, clinic time.
func CandidateWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := now.In(loc).Date()
	from := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	to := time.Date(y, m, d+3, 0, 0, 0, 0, loc)
	return from.UTC(), to.UTC()
}

// Run executes one reminder run. It returns ErrSafetyCapExceeded (with a
// summary) when the candidate count is over the cap and ErrRunInProgress
// when another run holds the lock.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		RunID: uuid.New(),
		Cap:   o.config.MaxPerRun,
	}
	logger := o.logger.With(zap.String("run_id", summary.RunID.String()))

	if o.locker != nil {
		unlock, acquired, err := o.locker.TryLock(ctx, o.config.LockName, o.config.LockTTL)
		switch {
		case err != nil:
			logger.Warn("run lock unavailable, continuing without it", zap.Error(err))
		case !acquired:
			logger.Info("another reminder run holds the lock, skipping")
			metrics.RecordRun(metrics.RunLocked)
			return nil, ErrRunInProgress
		default:
			defer unlock()
		}
	}

	now := o.now().In(o.config.Location)
	summary.StartedAt = now

	from, to := CandidateWindow(now, o.config.Location)
	query := db.CandidateQuery{
		Statuses: o.config.Statuses,
		From:     from,
		To:       to,
	}

	logger.Info("reminder run started",
		zap.Time("now_local", now),
		zap.Time("window_from", from),
		zap.Time("window_to", to),
	)

	count, err := o.store.CountReminderCandidates(ctx, query)
	if err != nil {
		metrics.RecordRun(metrics.RunFailed)
		return nil, fmt.Errorf("count reminder candidates: %w", err)
	}
	summary.Candidates = count
	metrics.SetLastRunCandidates(count)

	if count > o.config.MaxPerRun {
		return o.abort(ctx, logger, summary)
	}

	candidates, err := o.store.ListReminderCandidates(ctx, query)
	if err != nil {
		metrics.RecordRun(metrics.RunFailed)
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	if len(candidates) > o.config.MaxPerRun {
		// rows appeared between count and list
		summary.Candidates = len(candidates)
		return o.abort(ctx, logger, summary)
	}
	summary.Candidates = len(candidates)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			logger.Warn("reminder run interrupted", zap.Error(err))
			o.finish(ctx, logger, summary, metrics.RunFailed)
			return summary, err
		}
		o.process(ctx, logger, c, now, summary)
	}

	o.finish(ctx, logger, summary, metrics.RunCompleted)
	return summary, nil
}

func (o *Orchestrator) abort(ctx context.Context, logger *zap.Logger, summary *RunSummary) (*RunSummary, error) {
	summary.Aborted = true

	observ.Critical(logger, "reminder run aborted: candidate count exceeds safety cap",
		zap.Int("candidates", summary.Candidates),
		zap.Int("cap", summary.Cap),
	)

	if o.alerter != nil {
		subject := "Reminder run aborted: safety cap exceeded"
		body := fmt.Sprintf(
			"Run %s found %d reminder candidates, above the cap of %d. No SMS was sent. "+
				"Check for bulk-imported or duplicated appointments, then raise SMS_MAX_REMINDERS_PER_RUN if the volume is legitimate.",
			summary.RunID, summary.Candidates, summary.Cap,
		)
		if err := o.alerter.Alert(ctx, subject, body); err != nil {
			logger.Error("failed to send operator alert", zap.Error(err))
		}
	}

	o.finish(ctx, logger, summary, metrics.RunAborted)
	return summary, fmt.Errorf("%w: %d candidates, cap %d", ErrSafetyCapExceeded, summary.Candidates, summary.Cap)
}

func (o *Orchestrator) finish(ctx context.Context, logger *zap.Logger, summary *RunSummary, outcome string) {
	summary.FinishedAt = o.now().In(o.config.Location)
	metrics.RecordRun(outcome)

	logger.Info("reminder run finished",
		zap.String("outcome", outcome),
		zap.Int("candidates", summary.Candidates),
		zap.Int("skipped", summary.Skipped),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
	)

	if o.events != nil {
		if err := o.events.Publish(ctx, EventRunCompleted, summary); err != nil {
			logger.Error("failed to publish run summary", zap.Error(err))
		}
	}
}

func (o *Orchestrator) process(ctx context.Context, logger *zap.Logger, c *db.ReminderCandidate, now time.Time, summary *RunSummary) {
	appt := c.Appointment
	logger = logger.With(zap.String("appointment_id", appt.ID.String()))

	eligible, reason := CheckEligibility(appt.ScheduledAt, now, o.config.Location)
	if !eligible {
		summary.Skipped++
		metrics.RecordSkipped(reason)
		logger.Debug("reminder not eligible", zap.String("reason", reason))
		return
	}

	provider := o.gateway.Name()
	rawPhone := strings.TrimSpace(c.Patient.Phone)
	if rawPhone == "" {
		summary.Failed++
		o.record(ctx, logger, &db.AppointmentSMSLog{
			AppointmentID: appt.ID,
			Provider:      provider,
			Status:        db.SMSStatusFailed,
			ErrorMessage:  missingPhoneError,
		})
		logger.Warn("reminder not sent: patient phone number is missing")
		return
	}

	scheduledLocal := appt.ScheduledAt.In(o.config.Location)
	message := BuildMessage(PatientDisplayName(c.Patient.FirstName, c.Patient.LastName), scheduledLocal, o.now().In(o.config.Location))

	start := time.Now()
	result := o.gateway.Send(ctx, rawPhone, message)
	metrics.RecordGatewayLatency(provider, time.Since(start))

	// the SMS may already be out; its log row and marker must land even if
	// the run is being shut down
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if result.Provider != "" {
		provider = result.Provider
	}
	phone := result.NormalizedPhone
	if phone == "" {
		phone = rawPhone
	}

	entry := &db.AppointmentSMSLog{
		AppointmentID: appt.ID,
		Phone:         phone,
		Provider:      provider,
		MessageID:     result.MessageID,
		ErrorMessage:  result.Error,
	}

	if !result.OK {
		summary.Failed++
		entry.Status = db.SMSStatusFailed
		o.record(persistCtx, logger, entry)
		logger.Warn("reminder sms failed",
			zap.String("phone", sms.MaskPhone(phone)),
			zap.String("error", result.Error),
		)
		return
	}

	summary.Sent++
	entry.Status = db.SMSStatusSuccess
	o.record(persistCtx, logger, entry)

	marked, err := o.store.MarkReminderSent(persistCtx, appt.ID, o.now().UTC())
	switch {
	case err != nil:
		logger.Error("sms sent but reminder marker not saved", zap.Error(err))
	case !marked:
		logger.Warn("reminder marker already set by a concurrent run")
	}

	logger.Info("reminder sms sent",
		zap.String("phone", sms.MaskPhone(phone)),
		zap.String("message_id", result.MessageID),
	)
}

// record appends the attempt to the audit log. Failures are logged only.
func (o *Orchestrator) record(ctx context.Context, logger *zap.Logger, entry *db.AppointmentSMSLog) {
	metrics.RecordAttempt(entry.Provider, entry.Status)
	if err := o.store.CreateSMSLog(ctx, entry); err != nil {
		logger.Error("failed to write sms log", zap.Error(err), zap.String("status", entry.Status))
	}
}
