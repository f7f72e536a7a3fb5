// Package killswitch implements the durable emergency stop: a persisted
// circuit breaker with lazy auto-expiry that survives process restarts.
package killswitch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the durable breaker record, rewritten whole on every transition.
type State struct {
	Frozen      bool       `json:"frozen"`
	Reason      string     `json:"reason,omitempty"`
	TriggeredBy string     `json:"triggered_by,omitempty"`
	TriggeredAt time.Time  `json:"triggered_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastAlertAt time.Time  `json:"last_alert_at,omitempty"`
	// AlertSent latches the one-time freeze notification on the record
	// itself so a restart cannot re-fire it.
	AlertSent bool `json:"alert_sent"`
}

// Store persists the single breaker record outside process memory.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Switch owns all reads and writes of the breaker record. Every
// read-modify-write sequence runs under one mutex, so in-process transitions
// cannot interleave.
type Switch struct {
	mu    sync.Mutex
	store Store
	clock func() time.Time
}

// New wraps a store in a single-writer switch.
func New(store Store) *Switch {
	return &Switch{store: store, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (s *Switch) WithClock(clock func() time.Time) *Switch {
	s.clock = clock
	return s
}

// Freeze engages the breaker. A positive duration arms auto-expiry.
// Persistence failure propagates: an un-persisted freeze is a
// safety-critical inconsistency.
func (s *Switch) Freeze(ctx context.Context, reason, triggeredBy string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	state := State{
		Frozen:      true,
		Reason:      reason,
		TriggeredBy: triggeredBy,
		TriggeredAt: now,
	}
	if duration > 0 {
		expires := now.Add(duration)
		state.ExpiresAt = &expires
	}
	if err := s.store.Save(ctx, state); err != nil {
		return fmt.Errorf("persist freeze: %w", err)
	}
	return nil
}

// Unfreeze disengages the breaker and doubles as the administrative reset.
func (s *Switch) Unfreeze(ctx context.Context, by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unfreezeLocked(ctx, by)
}

func (s *Switch) unfreezeLocked(ctx context.Context, by string) error {
	state := State{TriggeredBy: by}
	if err := s.store.Save(ctx, state); err != nil {
		return fmt.Errorf("persist unfreeze: %w", err)
	}
	return nil
}

// IsFrozen reports the breaker state, transitioning an expired freeze back
// to active (persisted) before answering.
func (s *Switch) IsFrozen(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load kill-switch state: %w", err)
	}

	if state.Frozen && state.ExpiresAt != nil && s.clock().After(*state.ExpiresAt) {
		if err := s.unfreezeLocked(ctx, "AUTO_EXPIRE"); err != nil {
			return false, err
		}
		return false, nil
	}

	return state.Frozen, nil
}

// Status returns the current durable record.
func (s *Switch) Status(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(ctx)
}

// ShouldAlert answers whether a frozen-state alert may fire now, stamping
// LastAlertAt when it may. Alerts inside the cooldown are suppressed.
func (s *Switch) ShouldAlert(ctx context.Context, cooldown time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}

	now := s.clock()
	if now.Sub(state.LastAlertAt) < cooldown {
		return false, nil
	}

	state.LastAlertAt = now
	if err := s.store.Save(ctx, state); err != nil {
		return false, err
	}
	return true, nil
}

// MarkAlertSent latches the one-time freeze notification. Returns true on
// the first call for the current freeze, false once latched.
func (s *Switch) MarkAlertSent(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if state.AlertSent {
		return false, nil
	}
	state.AlertSent = true
	if err := s.store.Save(ctx, state); err != nil {
		return false, err
	}
	return true, nil
}
