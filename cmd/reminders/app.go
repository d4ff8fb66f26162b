package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clinicflow/reminders/internal/alert"
	"github.com/clinicflow/reminders/internal/circuitbreaker"
	"github.com/clinicflow/reminders/internal/config"
	"github.com/clinicflow/reminders/internal/db"
	"github.com/clinicflow/reminders/internal/metrics"
	"github.com/clinicflow/reminders/internal/observ"
	"github.com/clinicflow/reminders/internal/redis"
	"github.com/clinicflow/reminders/internal/reminder"
	"github.com/clinicflow/reminders/internal/sms"
	"github.com/clinicflow/reminders/internal/sns"
	"github.com/clinicflow/reminders/internal/sqs"
)

// app holds the process-wide dependencies shared by subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	database *db.DB
	repo     *db.Repository
	redis    *redis.Client // nil when Redis is unreachable

	closers []func()
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

func (a *app) connectDB(ctx context.Context) error {
	database, err := db.New(ctx, db.Config{
		Host:     a.cfg.DBHost,
		Port:     a.cfg.DBPort,
		User:     a.cfg.DBUser,
		Password: a.cfg.DBPassword,
		Database: a.cfg.DBName,
		SSLMode:  a.cfg.DBSSLMode,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	a.database = database
	a.repo = db.NewRepository(database, a.logger)
	a.closers = append(a.closers, database.Close)
	return nil
}

// connectRedis is best effort: without Redis there is no run lock and no
// rate limiting, but reminders still go out.
func (a *app) connectRedis(ctx context.Context) {
	client, err := redis.New(ctx, redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		a.logger.Warn("redis unavailable, run lock disabled",
			zap.Error(err),
			zap.String("host", a.cfg.RedisHost),
		)
		return
	}

	a.redis = client
	a.closers = append(a.closers, func() { _ = client.Close() })
}

// gateway builds the configured provider without the circuit breaker.
func (a *app) gateway(ctx context.Context) (sms.Gateway, error) {
	switch a.cfg.SMSProvider {
	case config.ProviderSNS:
		gw, err := sms.NewSNSGateway(ctx, sms.SNSConfig{
			Region:      a.cfg.SNSRegion,
			SenderID:    a.cfg.AfricasTalkingSender,
			CountryCode: a.cfg.SMSCountryCode,
			Timeout:     a.cfg.SMSTimeout,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		if !a.cfg.SMSConfigured() {
			a.logger.Warn("africa's talking credentials missing, every send will fail")
		}
		return sms.NewAfricasTalking(sms.Config{
			Username:    a.cfg.AfricasTalkingUser,
			APIKey:      a.cfg.AfricasTalkingAPIKey,
			SenderID:    a.cfg.AfricasTalkingSender,
			CountryCode: a.cfg.SMSCountryCode,
			Timeout:     a.cfg.SMSTimeout,
		}, a.logger), nil
	}
}

func (a *app) protectedGateway(ctx context.Context) (sms.Gateway, error) {
	gw, err := a.gateway(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create sms gateway: %w", err)
	}

	breakerCfg := circuitbreaker.DefaultConfig(gw.Name())
	breakerCfg.MaxFailures = a.cfg.BreakerMaxFailures
	breakerCfg.RecoveryTimeout = a.cfg.BreakerRecoveryWindow
	breakerCfg.OnStateChange = func(name string, _, to circuitbreaker.State) {
		metrics.SetBreakerState(name, int(to))
	}
	breaker := circuitbreaker.New(breakerCfg, a.logger)
	metrics.SetBreakerState(gw.Name(), int(breaker.State()))

	return circuitbreaker.NewProtectedGateway(gw, breaker, a.cfg.SMSCountryCode, a.logger), nil
}

func (a *app) alerter(ctx context.Context) *alert.Multi {
	var channels []alert.Alerter

	if a.cfg.AlertEmailFrom != "" && a.cfg.AlertEmailTo != "" {
		emailer, err := alert.NewSESEmailer(ctx, alert.SESConfig{
			Region: a.cfg.AWSRegion,
			From:   a.cfg.AlertEmailFrom,
			To:     splitList(a.cfg.AlertEmailTo),
		}, a.logger)
		if err != nil {
			a.logger.Warn("SES alerts unavailable", zap.Error(err))
		} else {
			channels = append(channels, emailer)
		}
	}

	if a.cfg.AlertSNSTopicARN != "" {
		publisher, err := sns.NewPublisher(ctx, a.cfg.AlertSNSTopicARN, a.cfg.AWSRegion, a.logger)
		if err != nil {
			a.logger.Warn("SNS alerts unavailable", zap.Error(err))
		} else {
			channels = append(channels, publisher)
		}
	}

	return alert.NewMulti(a.logger, channels...)
}

func (a *app) orchestrator(ctx context.Context) (*reminder.Orchestrator, error) {
	gw, err := a.protectedGateway(ctx)
	if err != nil {
		return nil, err
	}

	o := reminder.NewOrchestrator(a.repo, gw, reminder.Config{
		Location:  a.cfg.ClinicLocation,
		MaxPerRun: a.cfg.MaxRemindersPerRun,
	}, a.logger).WithAlerter(a.alerter(ctx))

	if a.redis != nil {
		o.WithLocker(redis.NewRunLock(a.redis, a.logger))
	}

	if a.cfg.EventsSQSQueueURL != "" {
		producer, err := sqs.NewProducer(ctx, sqs.Config{
			Region:   a.cfg.AWSRegion,
			QueueURL: a.cfg.EventsSQSQueueURL,
		}, a.logger)
		if err != nil {
			a.logger.Warn("sqs producer unavailable, run events will not be published", zap.Error(err))
		} else {
			o.WithEvents(producer)
		}
	}

	return o, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
