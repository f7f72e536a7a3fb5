package alerts

import (
	"context"

	"go.uber.org/zap"
)

// LogEmitter writes alerts to the structured log. Always available; the
// fallback when no chat transport is configured.
type LogEmitter struct {
	logger *zap.Logger
}

// NewLogEmitter builds a log-backed emitter.
func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmitter{logger: logger}
}

// Emit logs the alert.
func (e *LogEmitter) Emit(_ context.Context, alert Alert) error {
	fields := []zap.Field{
		zap.String("level", alert.Level),
		zap.String("domain", alert.Domain),
		zap.String("stage", alert.Stage),
		zap.String("message", alert.Message),
	}
	if alert.Reason != "" {
		fields = append(fields, zap.String("reason", alert.Reason))
	}
	if alert.Risk != nil {
		fields = append(fields,
			zap.String("risk_level", string(alert.Risk.Level)),
			zap.Int("risk_score", alert.Risk.Score))
	}
	if alert.Intent != nil {
		fields = append(fields,
			zap.String("intent_id", alert.Intent.ID),
			zap.String("intent_action", alert.Intent.Action))
	}
	e.logger.Warn("governance alert", fields...)
	return nil
}
