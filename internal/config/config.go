package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // clinic zones must resolve in minimal containers

	"github.com/joho/godotenv"
)

const (
	ProviderAfricasTalking = "africastalking"
	ProviderSNS            = "sns"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (run lock + admin API rate limiting)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Clinic
	ClinicTimezone string
	ClinicLocation *time.Location

	// SMS provider
	SMSProvider           string
	AfricasTalkingUser    string
	AfricasTalkingAPIKey  string
	AfricasTalkingSender  string
	SMSCountryCode        string
	SMSTimeout            time.Duration
	MaxRemindersPerRun    int
	ReminderInterval      time.Duration
	BreakerMaxFailures    int
	BreakerRecoveryWindow time.Duration

	// AWS
	AWSRegion string
	SNSRegion string

	// Operator alerts and run events (all optional)
	AlertEmailFrom    string
	AlertEmailTo      string
	AlertSNSTopicARN  string
	EventsSQSQueueURL string
	PushgatewayURL    string

	// Admin API
	AdminJWTSecret string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		DBHost:    "localhost",
		DBPort:    5432,
		DBUser:    "clinicflow",
		DBName:    "clinicflow",
		DBSSLMode: "disable",

		RedisHost: "localhost",
		RedisPort: 6379,

		ClinicTimezone: "Africa/Kinshasa",

		SMSProvider:           ProviderAfricasTalking,
		SMSCountryCode:        "243",
		SMSTimeout:            30 * time.Second,
		MaxRemindersPerRun:    200,
		ReminderInterval:      15 * time.Minute,
		BreakerMaxFailures:    5,
		BreakerRecoveryWindow: 30 * time.Second,

		AWSRegion: "us-east-1",
	}

	var err error

	if cfg.Port, err = intEnv("PORT", cfg.Port); err != nil {
		return nil, err
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	cfg.DBHost = stringEnv("DB_HOST", cfg.DBHost)
	if cfg.DBPort, err = intEnv("DB_PORT", cfg.DBPort); err != nil {
		return nil, err
	}
	cfg.DBUser = stringEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = stringEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = stringEnv("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = stringEnv("DB_SSLMODE", cfg.DBSSLMode)

	// Redis config
	cfg.RedisHost = stringEnv("REDIS_HOST", cfg.RedisHost)
	if cfg.RedisPort, err = intEnv("REDIS_PORT", cfg.RedisPort); err != nil {
		return nil, err
	}
	cfg.RedisPassword = stringEnv("REDIS_PASSWORD", cfg.RedisPassword)
	if cfg.RedisDB, err = intEnv("REDIS_DB", cfg.RedisDB); err != nil {
		return nil, err
	}

	// Clinic timezone
	cfg.ClinicTimezone = stringEnv("CLINIC_TIMEZONE", cfg.ClinicTimezone)
	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CLINIC_TIMEZONE %q: %w", cfg.ClinicTimezone, err)
	}
	cfg.ClinicLocation = loc

	// SMS provider. Missing credentials are not fatal here: every send attempt
	// records its own "not configured" failure instead.
	cfg.SMSProvider = stringEnv("SMS_PROVIDER", cfg.SMSProvider)
	if cfg.SMSProvider != ProviderAfricasTalking && cfg.SMSProvider != ProviderSNS {
		return nil, fmt.Errorf("invalid SMS_PROVIDER: %s (want %s or %s)", cfg.SMSProvider, ProviderAfricasTalking, ProviderSNS)
	}
	cfg.AfricasTalkingUser = os.Getenv("AFRICASTALKING_USERNAME")
	cfg.AfricasTalkingAPIKey = os.Getenv("AFRICASTALKING_API_KEY")
	cfg.AfricasTalkingSender = os.Getenv("AFRICASTALKING_SENDER_ID")
	cfg.SMSCountryCode = stringEnv("SMS_COUNTRY_CODE", cfg.SMSCountryCode)

	timeoutSec, err := intEnv("SMS_TIMEOUT", int(cfg.SMSTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	if timeoutSec <= 0 {
		return nil, fmt.Errorf("invalid SMS_TIMEOUT: must be > 0")
	}
	cfg.SMSTimeout = time.Duration(timeoutSec) * time.Second

	if cfg.MaxRemindersPerRun, err = intEnv("SMS_MAX_REMINDERS_PER_RUN", cfg.MaxRemindersPerRun); err != nil {
		return nil, err
	}
	if cfg.MaxRemindersPerRun <= 0 {
		return nil, fmt.Errorf("invalid SMS_MAX_REMINDERS_PER_RUN: must be > 0")
	}

	intervalMin, err := intEnv("REMINDER_INTERVAL", int(cfg.ReminderInterval/time.Minute))
	if err != nil {
		return nil, err
	}
	if intervalMin <= 0 {
		return nil, fmt.Errorf("invalid REMINDER_INTERVAL: must be > 0")
	}
	cfg.ReminderInterval = time.Duration(intervalMin) * time.Minute

	if cfg.BreakerMaxFailures, err = intEnv("SMS_BREAKER_MAX_FAILURES", cfg.BreakerMaxFailures); err != nil {
		return nil, err
	}

	// AWS
	cfg.AWSRegion = stringEnv("AWS_REGION", cfg.AWSRegion)
	cfg.SNSRegion = stringEnv("SNS_REGION", cfg.AWSRegion)

	cfg.AlertEmailFrom = os.Getenv("ALERT_EMAIL_FROM")
	cfg.AlertEmailTo = os.Getenv("ALERT_EMAIL_TO")
	cfg.AlertSNSTopicARN = os.Getenv("ALERT_SNS_TOPIC_ARN")
	cfg.EventsSQSQueueURL = os.Getenv("EVENTS_SQS_QUEUE_URL")
	cfg.PushgatewayURL = os.Getenv("PUSHGATEWAY_URL")

	cfg.AdminJWTSecret = os.Getenv("ADMIN_JWT_SECRET")

	return cfg, nil
}

// SMSConfigured reports whether Africa's Talking credentials are present.
func (c *Config) SMSConfigured() bool {
	return c.AfricasTalkingUser != "" && c.AfricasTalkingAPIKey != ""
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
