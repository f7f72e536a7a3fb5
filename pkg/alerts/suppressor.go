package alerts

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Suppressor rate-limits outbound alerts so a misbehaving agent cannot turn
// the alert channel into a notification storm. Stage-specific throttling
// (freeze latch, frozen-attempt cooldown) happens upstream in the gate.
type Suppressor struct {
	next    Emitter
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSuppressor wraps next. perMinute bounds sustained alert volume; burst
// allows short spikes through.
func NewSuppressor(next Emitter, perMinute float64, burst int, logger *zap.Logger) *Suppressor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suppressor{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perMinute/60.0), burst),
		logger:  logger,
	}
}

// Emit applies the rate limit, then delegates.
func (s *Suppressor) Emit(ctx context.Context, alert Alert) error {
	if !s.limiter.Allow() {
		s.logger.Warn("alert suppressed by rate limit",
			zap.String("stage", alert.Stage),
			zap.String("message", alert.Message))
		return nil
	}
	return s.next.Emit(ctx, alert)
}
