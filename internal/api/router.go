package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/clinicflow/reminders/internal/metrics"
	"github.com/clinicflow/reminders/internal/redis"
)

// RouterConfig wires the admin router.
type RouterConfig struct {
	Handler     *Handler
	JWTSecret   []byte
	RateLimiter *redis.RateLimiter // nil disables rate limiting
	Logger      *zap.Logger

	// RequestTimeout bounds every request, including manual runs.
	RequestTimeout time.Duration
}

// NewRouter builds the admin HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(RequestLogger(cfg.Logger))

	r.Get("/health", cfg.Handler.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(RateLimitMiddleware(cfg.RateLimiter, cfg.Logger, IPKeyFunc))
		r.Use(AdminAuth(cfg.JWTSecret, cfg.Logger))

		r.Get("/appointments/{id}", cfg.Handler.GetAppointment)
		r.Get("/appointments/{id}/sms-logs", cfg.Handler.ListSMSLogs)
		r.Post("/appointments/{id}/reminder/reset", cfg.Handler.ResetReminder)
		r.Post("/reminders/run", cfg.Handler.RunReminders)
	})

	return r
}
