package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ClinicTimezone != "Africa/Kinshasa" {
		t.Errorf("expected Africa/Kinshasa, got %s", cfg.ClinicTimezone)
	}
	if cfg.ClinicLocation == nil || cfg.ClinicLocation.String() != "Africa/Kinshasa" {
		t.Errorf("expected clinic location to be loaded, got %v", cfg.ClinicLocation)
	}
	if cfg.MaxRemindersPerRun != 200 {
		t.Errorf("expected cap 200, got %d", cfg.MaxRemindersPerRun)
	}
	if cfg.SMSTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.SMSTimeout)
	}
	if cfg.SMSProvider != ProviderAfricasTalking {
		t.Errorf("expected africastalking provider, got %s", cfg.SMSProvider)
	}
	if cfg.SMSCountryCode != "243" {
		t.Errorf("expected country code 243, got %s", cfg.SMSCountryCode)
	}
	if cfg.SNSRegion != cfg.AWSRegion {
		t.Errorf("expected SNS region to follow AWS region, got %s", cfg.SNSRegion)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CLINIC_TIMEZONE", "Africa/Lubumbashi")
	t.Setenv("SMS_MAX_REMINDERS_PER_RUN", "50")
	t.Setenv("SMS_TIMEOUT", "10")
	t.Setenv("REMINDER_INTERVAL", "5")
	t.Setenv("AFRICASTALKING_USERNAME", "sandbox")
	t.Setenv("AFRICASTALKING_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ClinicLocation.String() != "Africa/Lubumbashi" {
		t.Errorf("expected Africa/Lubumbashi, got %s", cfg.ClinicLocation)
	}
	if cfg.MaxRemindersPerRun != 50 {
		t.Errorf("expected cap 50, got %d", cfg.MaxRemindersPerRun)
	}
	if cfg.SMSTimeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %s", cfg.SMSTimeout)
	}
	if cfg.ReminderInterval != 5*time.Minute {
		t.Errorf("expected 5m interval, got %s", cfg.ReminderInterval)
	}
	if !cfg.SMSConfigured() {
		t.Error("expected SMS to be configured")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown timezone", "CLINIC_TIMEZONE", "Mars/Olympus_Mons"},
		{"non-numeric cap", "SMS_MAX_REMINDERS_PER_RUN", "lots"},
		{"zero cap", "SMS_MAX_REMINDERS_PER_RUN", "0"},
		{"negative timeout", "SMS_TIMEOUT", "-1"},
		{"zero interval", "REMINDER_INTERVAL", "0"},
		{"unknown provider", "SMS_PROVIDER", "carrier-pigeon"},
		{"bad port", "PORT", "eighty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestSMSConfigured_MissingKey(t *testing.T) {
	cfg := &Config{AfricasTalkingUser: "clinic"}
	if cfg.SMSConfigured() {
		t.Error("expected SMS to be unconfigured without an API key")
	}
}
