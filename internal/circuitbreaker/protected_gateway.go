package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/clinicflow/reminders/internal/sms"
)

// outcome is what a send result says about provider health.
type outcome int

const (
	providerHealthy outcome = iota
	providerFault
	unrelated
)

// classify maps a send result to provider health. A recipient the provider
// refused (blacklist, do-not-disturb) still proves the provider is up.
// Missing credentials are local and never open the circuit.
func classify(result sms.SendResult) outcome {
	switch {
	case result.OK, result.Rejected:
		return providerHealthy
	case result.Error == sms.ErrNotConfigured.Error():
		return unrelated
	default:
		return providerFault
	}
}

// ProtectedGateway puts a CircuitBreaker in front of an sms.Gateway.
type ProtectedGateway struct {
	gateway     sms.Gateway
	breaker     *CircuitBreaker
	countryCode string
	logger      *zap.Logger
}

// NewProtectedGateway wraps gateway with breaker. countryCode must match the
// one the gateway normalises with.
func NewProtectedGateway(gateway sms.Gateway, breaker *CircuitBreaker, countryCode string, logger *zap.Logger) *ProtectedGateway {
	return &ProtectedGateway{
		gateway:     gateway,
		breaker:     breaker,
		countryCode: countryCode,
		logger:      logger,
	}
}

// Name implements sms.Gateway.
func (p *ProtectedGateway) Name() string {
	return p.gateway.Name()
}

// Send implements sms.Gateway. When the circuit is open the attempt fails
// fast with a FAILED result carrying the normalised phone.
func (p *ProtectedGateway) Send(ctx context.Context, rawPhone, message string) sms.SendResult {
	phone := sms.NormalizePhone(rawPhone, p.countryCode)
	if phone == "" {
		// rejected locally, never reaches the provider
		return p.gateway.Send(ctx, rawPhone, message)
	}

	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected sms, failing fast",
			zap.String("breaker", p.breaker.Name()),
			zap.String("phone", sms.MaskPhone(phone)),
		)
		return sms.SendResult{
			Provider:        p.gateway.Name(),
			Error:           fmt.Sprintf("%s: %s gateway unavailable", ErrCircuitOpen, p.breaker.Name()),
			NormalizedPhone: phone,
		}
	}

	result := p.gateway.Send(ctx, rawPhone, message)
	switch classify(result) {
	case providerHealthy:
		p.breaker.RecordSuccess()
	case unrelated:
		p.breaker.Ignore()
	default:
		p.breaker.RecordFailure()
		p.logger.Debug("circuit breaker recorded failure",
			zap.String("breaker", p.breaker.Name()),
			zap.String("error", result.Error),
		)
	}

	return result
}
