package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ProviderAfricasTalking = "africastalking"

	sandboxUsername    = "sandbox"
	sandboxEndpoint    = "https://api.sandbox.africastalking.com/version1/messaging"
	productionEndpoint = "https://api.africastalking.com/version1/messaging"

	maxResponseBytes = 64 << 10
)

// ErrNotConfigured is reported when credentials are missing.
var ErrNotConfigured = errors.New("sms provider not configured")

// recipientStatuses are refusals tied to one phone number. Any other
// non-success status is an account or platform problem.
var recipientStatuses = map[string]bool{
	"InvalidPhoneNumber":    true,
	"UserInBlacklist":       true,
	"DoNotDisturbRejection": true,
	"UnsupportedNumberType": true,
	"AbsentSubscriber":      true,
	"CouldNotRoute":         true,
}

// Config holds Africa's Talking credentials and transport settings.
type Config struct {
	Username    string
	APIKey      string
	SenderID    string
	CountryCode string
	Timeout     time.Duration

	// Endpoint overrides the sandbox/production URL. Used by tests.
	Endpoint string
}

// AfricasTalking delivers SMS through the Africa's Talking bulk messaging API.
type AfricasTalking struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewAfricasTalking creates a client. Missing credentials are not an error
// here; each Send reports them instead.
func NewAfricasTalking(cfg Config, logger *zap.Logger) *AfricasTalking {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = DefaultCountryCode
	}

	return &AfricasTalking{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name implements Gateway.
func (a *AfricasTalking) Name() string { return ProviderAfricasTalking }

func (a *AfricasTalking) endpoint() string {
	if a.cfg.Endpoint != "" {
		return a.cfg.Endpoint
	}
	if a.cfg.Username == sandboxUsername {
		return sandboxEndpoint
	}
	return productionEndpoint
}

type messagingResponse struct {
	SMSMessageData struct {
		Recipients []struct {
			Status    string `json:"status"`
			MessageID string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// EncodeForm builds the form body for a single recipient.
func (a *AfricasTalking) EncodeForm(phone, message string) string {
	form := url.Values{}
	form.Set("username", a.cfg.Username)
	form.Set("to", phone)
	form.Set("message", message)
	form.Set("bulkSMSMode", "1")
	if a.cfg.SenderID != "" {
		form.Set("from", a.cfg.SenderID)
	}
	return form.Encode()
}

// Send implements Gateway.
func (a *AfricasTalking) Send(ctx context.Context, rawPhone, message string) (result SendResult) {
	phone := NormalizePhone(rawPhone, a.cfg.CountryCode)
	if phone == "" {
		return failure(ProviderAfricasTalking, "", "invalid phone number: "+MaskPhone(rawPhone))
	}

	if a.cfg.Username == "" || a.cfg.APIKey == "" {
		return failure(ProviderAfricasTalking, phone, ErrNotConfigured.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("sms send panicked",
				zap.String("phone", MaskPhone(phone)),
				zap.Any("panic", r),
			)
			result = failure(ProviderAfricasTalking, phone, fmt.Sprint(r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(), strings.NewReader(a.EncodeForm(phone, message)))
	if err != nil {
		return failure(ProviderAfricasTalking, phone, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("apiKey", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("sms request failed",
			zap.String("phone", MaskPhone(phone)),
			zap.Error(err),
		)
		return failure(ProviderAfricasTalking, phone, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failure(ProviderAfricasTalking, phone, fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode >= 400 {
		return failure(ProviderAfricasTalking, phone, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet(body)))
	}

	var parsed messagingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return failure(ProviderAfricasTalking, phone, "invalid response format: "+snippet(body))
	}

	recipients := parsed.SMSMessageData.Recipients
	if len(recipients) == 0 {
		return failure(ProviderAfricasTalking, phone, "no recipients in provider response")
	}

	status := recipients[0].Status
	if status == "" {
		status = "Unknown"
	}
	if status != "Success" {
		result = failure(ProviderAfricasTalking, phone, "provider status: "+status)
		result.Rejected = recipientStatuses[status]
		return result
	}

	a.logger.Info("sms accepted by provider",
		zap.String("provider", ProviderAfricasTalking),
		zap.String("phone", MaskPhone(phone)),
		zap.String("message_id", recipients[0].MessageID),
	)

	return SendResult{
		OK:              true,
		Provider:        ProviderAfricasTalking,
		MessageID:       recipients[0].MessageID,
		NormalizedPhone: phone,
	}
}
