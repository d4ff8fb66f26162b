package observ

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "clinicflow-reminders"

// NewLogger creates a structured logger based on environment.
// Production gets JSON output; anything else gets the colored console encoder.
func NewLogger(env, level string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
		"env":     env,
	}

	return config.Build()
}

// Critical logs an operator-facing condition. zap has no level above Error
// that doesn't panic or exit, so the entry is tagged instead.
func Critical(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.Error(msg, append(fields, zap.String("severity", "critical"))...)
}
