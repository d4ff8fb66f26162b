package sms

import (
	"regexp"
	"strings"
)

// DefaultCountryCode is the DRC calling code.
const DefaultCountryCode = "243"

// minSubscriberDigits is the shortest national number accepted without a prefix.
const minSubscriberDigits = 9

var e164Pattern = regexp.MustCompile(`^\+\d{8,15}$`)

// NormalizePhone converts a loosely formatted phone number into the canonical
// +<country code><subscriber> form. It returns "" when the input cannot be
// turned into a plausible international number.
func NormalizePhone(raw, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return ""
	}

	intl := "+" + countryCode

	switch {
	case strings.HasPrefix(cleaned, intl):
		// already international
	case strings.HasPrefix(cleaned, countryCode) && len(cleaned) >= len(countryCode)+minSubscriberDigits:
		cleaned = "+" + cleaned
	case strings.HasPrefix(cleaned, "0"):
		// trunk prefix; too short to be a local number
		if len(cleaned)-1 < minSubscriberDigits {
			return ""
		}
		cleaned = intl + cleaned[1:]
	case !strings.HasPrefix(cleaned, "+") && len(cleaned) >= minSubscriberDigits:
		cleaned = intl + cleaned
	}

	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}

	if !e164Pattern.MatchString(cleaned) {
		return ""
	}
	return cleaned
}

// MaskPhone redacts the middle of a phone number for logs.
// Inputs of 7 characters or fewer are fully masked.
func MaskPhone(phone string) string {
	r := []rune(phone)
	if len(r) <= 7 {
		return "***"
	}
	return string(r[:5]) + strings.Repeat("*", len(r)-8) + string(r[len(r)-3:])
}
