package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainUnmarshalText(t *testing.T) {
	var d Domain
	require.NoError(t, d.UnmarshalText([]byte("ledger")))
	assert.Equal(t, DomainLedger, d)

	assert.Error(t, d.UnmarshalText([]byte("MAINFRAME")))
}

func TestDomainKnown(t *testing.T) {
	for _, d := range []Domain{DomainOS, DomainFilesystem, DomainBrowser, DomainLedger} {
		assert.True(t, d.Known(), string(d))
	}
	assert.False(t, Domain("").Known())
	assert.False(t, Domain("QUANTUM").Known())
}

func TestNewIntent(t *testing.T) {
	a := NewIntent(DomainOS, ActionExecuteCommand, IntentParams{Command: "ls"}, IntentMetadata{Origin: "USER_CHAT"})
	b := NewIntent(DomainOS, ActionExecuteCommand, IntentParams{Command: "ls"}, IntentMetadata{Origin: "USER_CHAT"})

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, time.UTC, a.CreatedAt.Location())
}

func TestNewConstraint(t *testing.T) {
	c := NewConstraint(100_000_000, "0xabc", time.Hour)
	assert.Equal(t, int64(100_000_000), c.MaxAmount)
	assert.Equal(t, "0xabc", c.AllowedRecipient)
	assert.Len(t, c.Nonce, 32)
	assert.True(t, c.ExpiresAt.After(time.Now()))

	// Nonces are unique per constraint.
	assert.NotEqual(t, c.Nonce, NewConstraint(1, "0xabc", time.Hour).Nonce)
}

func TestIntentJSONRoundTrip(t *testing.T) {
	in := NewIntent(DomainLedger, ActionTransfer,
		IntentParams{Amount: 50_000_000, Recipient: "0xabc"},
		IntentMetadata{Origin: "USER_CHAT", Purpose: "Pay friend"})

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out Intent
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Params.Amount, out.Params.Amount)
	assert.Equal(t, DomainLedger, out.Domain)
}
