// Package sms normalises phone numbers and delivers text messages through an
// external provider. Every delivery outcome is reported as a SendResult.
package sms

import (
	"context"
	"strings"
)

// maxErrorLen bounds error text stored in the audit log.
const maxErrorLen = 200

// SendResult is the uniform outcome of one delivery attempt.
// Empty strings stand for absent values.
type SendResult struct {
	OK              bool   `json:"ok"`
	Provider        string `json:"provider"`
	MessageID       string `json:"message_id,omitempty"`
	Error           string `json:"error,omitempty"`
	NormalizedPhone string `json:"normalized_phone,omitempty"`

	// Rejected marks a failure the provider reported for this recipient
	// only (blacklisted, do-not-disturb, unroutable). The provider itself
	// answered normally.
	Rejected bool `json:"rejected,omitempty"`
}

// Gateway sends a single SMS. Implementations never return a Go error or
// panic: all failure modes are folded into the result.
type Gateway interface {
	Send(ctx context.Context, rawPhone, message string) SendResult
	Name() string
}

func failure(provider, phone, msg string) SendResult {
	return SendResult{
		Provider:        provider,
		Error:           truncate(msg, maxErrorLen),
		NormalizedPhone: phone,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "(empty)"
	}
	return truncate(s, maxErrorLen)
}
