// Package alert fans operator alerts out to every configured channel.
package alert

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Alerter delivers one operator alert.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// Multi sends an alert through every channel. One failing channel does not
// stop the others; the joined error is returned.
type Multi struct {
	alerters []Alerter
	logger   *zap.Logger
}

// NewMulti builds a fan-out alerter. Nil entries are dropped.
func NewMulti(logger *zap.Logger, alerters ...Alerter) *Multi {
	m := &Multi{logger: logger}
	for _, a := range alerters {
		if a != nil {
			m.alerters = append(m.alerters, a)
		}
	}
	return m
}

// Len reports how many channels are configured.
func (m *Multi) Len() int {
	return len(m.alerters)
}

// Alert implements Alerter.
func (m *Multi) Alert(ctx context.Context, subject, body string) error {
	if len(m.alerters) == 0 {
		m.logger.Warn("no operator alert channel configured", zap.String("subject", subject))
		return nil
	}

	var errs []error
	for _, a := range m.alerters {
		if err := a.Alert(ctx, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
