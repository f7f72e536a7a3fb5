package killswitch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestFreezeAndUnfreeze(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sw := New(store).WithClock(fixedClock(now))

	frozen, err := sw.IsFrozen(ctx)
	require.NoError(t, err)
	assert.False(t, frozen)

	require.NoError(t, sw.Freeze(ctx, "OS_FIREWALL", "SYSTEM", 0))

	frozen, err = sw.IsFrozen(ctx)
	require.NoError(t, err)
	assert.True(t, frozen)

	state, err := sw.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OS_FIREWALL", state.Reason)
	assert.Equal(t, "SYSTEM", state.TriggeredBy)
	assert.Equal(t, now, state.TriggeredAt)
	assert.Nil(t, state.ExpiresAt)

	require.NoError(t, sw.Unfreeze(ctx, "ADMIN"))

	frozen, err = sw.IsFrozen(ctx)
	require.NoError(t, err)
	assert.False(t, frozen)

	state, err = sw.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Reason)
	assert.Equal(t, "ADMIN", state.TriggeredBy)
}

func TestAutoExpiryPersistsActiveState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	current := now
	sw := New(store).WithClock(func() time.Time { return current })

	require.NoError(t, sw.Freeze(ctx, "MANUAL_FREEZE", "CLI", 10*time.Minute))

	frozen, err := sw.IsFrozen(ctx)
	require.NoError(t, err)
	assert.True(t, frozen)

	current = now.Add(11 * time.Minute)

	frozen, err = sw.IsFrozen(ctx)
	require.NoError(t, err)
	assert.False(t, frozen)

	// The expiry must be written through, not just answered in memory.
	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, persisted.Frozen)
	assert.Equal(t, "AUTO_EXPIRE", persisted.TriggeredBy)
	assert.Nil(t, persisted.ExpiresAt)
}

func TestFreezePersistenceFailurePropagates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.FailSave = errors.New("disk full")
	sw := New(store)

	err := sw.Freeze(ctx, "OS_FIREWALL", "SYSTEM", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist freeze")
}

func TestShouldAlertCooldown(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	current := now
	sw := New(store).WithClock(func() time.Time { return current })

	ok, err := sw.ShouldAlert(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Inside the cooldown window.
	current = now.Add(30 * time.Second)
	ok, err = sw.ShouldAlert(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// After the cooldown.
	current = now.Add(2 * time.Minute)
	ok, err = sw.ShouldAlert(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkAlertSentLatches(t *testing.T) {
	ctx := context.Background()
	sw := New(NewMemoryStore())

	require.NoError(t, sw.Freeze(ctx, "OS_FIREWALL", "SYSTEM", 0))

	first, err := sw.MarkAlertSent(ctx)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := sw.MarkAlertSent(ctx)
	require.NoError(t, err)
	assert.False(t, second)

	// A fresh freeze record resets the latch.
	require.NoError(t, sw.Unfreeze(ctx, "ADMIN"))
	require.NoError(t, sw.Freeze(ctx, "OS_FIREWALL", "SYSTEM", 0))

	again, err := sw.MarkAlertSent(ctx)
	require.NoError(t, err)
	assert.True(t, again)
}
