package risk

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

func boolPtr(b bool) *bool       { return &b }
func int64Ptr(v int64) *int64    { return &v }
func floatPtr(v float64) *float64 { return &v }

func newTestEngine() *Engine {
	return NewEngine(DefaultPolicy()).WithClock(func() time.Time {
		return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	})
}

func transfer(amount int64) *contracts.Intent {
	return contracts.NewIntent(
		contracts.DomainLedger,
		contracts.ActionTransfer,
		contracts.IntentParams{Amount: amount, Recipient: "0xaabbccdd"},
		contracts.IntentMetadata{},
	)
}

func TestScore_HighAmountShortCircuits(t *testing.T) {
	eng := newTestEngine()

	// Mitigating context must not dilute a hard-high amount.
	a := eng.Score(transfer(500_000_000), Context{RecipientKnown: boolPtr(true)})
	assert.Equal(t, 90, a.Score)
	assert.Equal(t, contracts.RiskHigh, a.Level)
	require.Len(t, a.Factors, 1)
	assert.Equal(t, "HARD_HIGH_AMOUNT", a.Factors[0].Name)

	// Exactly at the limit still trips it.
	a = eng.Score(transfer(250_000_000), Context{})
	assert.Equal(t, 90, a.Score)
}

func TestScore_MediumFloor(t *testing.T) {
	eng := newTestEngine()

	a := eng.Score(transfer(150_000_000), Context{RecipientKnown: boolPtr(true)})
	assert.Equal(t, 50, a.Score)
	assert.Equal(t, contracts.RiskMedium, a.Level)
}

func TestScore_CleanSmallTransfer(t *testing.T) {
	eng := newTestEngine()

	a := eng.Score(transfer(50_000_000), Context{RecipientKnown: boolPtr(true)})
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, contracts.RiskLow, a.Level)
	assert.Empty(t, a.Factors)
	assert.Equal(t, "No significant risk factors detected", a.Reasoning)
	assert.Equal(t, "1.0.0", a.EngineVersion)
}

func TestScore_IndividualFactors(t *testing.T) {
	eng := newTestEngine()

	t.Run("unknown recipient", func(t *testing.T) {
		a := eng.Score(transfer(10), Context{RecipientKnown: boolPtr(false)})
		assert.Equal(t, 15, a.Score)
		assert.Equal(t, contracts.RiskLow, a.Level)
	})

	t.Run("recipient signal absent scores nothing", func(t *testing.T) {
		a := eng.Score(transfer(10), Context{})
		assert.Equal(t, 0, a.Score)
	})

	t.Run("time pressure", func(t *testing.T) {
		a := eng.Score(transfer(10), Context{ShortExpiry: true})
		assert.Equal(t, 10, a.Score)
	})

	t.Run("repeat pattern", func(t *testing.T) {
		a := eng.Score(transfer(10), Context{RepeatedRecipient: true})
		assert.Equal(t, 15, a.Score)
	})
}

func TestScore_CumulativeSpend(t *testing.T) {
	eng := newTestEngine()

	t.Run("below window contributes nothing", func(t *testing.T) {
		a := eng.Score(transfer(10), Context{RecentSpend: int64Ptr(150_000_000)})
		assert.Equal(t, 0, a.Score)
	})

	t.Run("at window scores 20", func(t *testing.T) {
		// ratio 1.0 -> floor(1.0*20) = 20
		a := eng.Score(transfer(10), Context{RecentSpend: int64Ptr(200_000_000)})
		assert.Equal(t, 20, a.Score)
	})

	t.Run("ratio points cap at weight", func(t *testing.T) {
		// ratio 5.0 -> floor(100) capped at 30
		a := eng.Score(transfer(10), Context{RecentSpend: int64Ptr(1_000_000_000)})
		assert.Equal(t, 30, a.Score)
	})
}

func TestScore_BehaviorAnomalyClamped(t *testing.T) {
	eng := newTestEngine()

	a := eng.Score(transfer(10), Context{BehaviorAnomalyScore: floatPtr(12.7)})
	assert.Equal(t, 12, a.Score)

	a = eng.Score(transfer(10), Context{BehaviorAnomalyScore: floatPtr(95)})
	assert.Equal(t, 20, a.Score)

	a = eng.Score(transfer(10), Context{BehaviorAnomalyScore: floatPtr(-3)})
	assert.Equal(t, 0, a.Score)
	assert.Empty(t, a.Factors)
}

func TestScore_CompoundingBonus(t *testing.T) {
	eng := newTestEngine()

	// Three independent signals at >=15 points each: novelty 15, repeat 15,
	// anomaly 20, plus 15 compounding = 65.
	a := eng.Score(transfer(10), Context{
		RecipientKnown:       boolPtr(false),
		RepeatedRecipient:    true,
		BehaviorAnomalyScore: floatPtr(50),
	})
	assert.Equal(t, 65, a.Score)
	assert.Equal(t, contracts.RiskMedium, a.Level)

	names := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "RISK_COMPOUNDING")

	// Two significant signals is not enough.
	a = eng.Score(transfer(10), Context{
		RecipientKnown:    boolPtr(false),
		RepeatedRecipient: true,
	})
	assert.Equal(t, 30, a.Score)
	for _, f := range a.Factors {
		assert.NotEqual(t, "RISK_COMPOUNDING", f.Name)
	}
}

func TestScore_ClampedAt100(t *testing.T) {
	eng := newTestEngine()

	a := eng.Score(transfer(150_000_000), Context{
		RecipientKnown:       boolPtr(false),
		ShortExpiry:          true,
		RecentSpend:          int64Ptr(1_000_000_000),
		RepeatedRecipient:    true,
		BehaviorAnomalyScore: floatPtr(50),
	})
	assert.Equal(t, 100, a.Score)
	assert.Equal(t, contracts.RiskHigh, a.Level)
}

func TestScore_NilIntent(t *testing.T) {
	eng := newTestEngine()

	a := eng.Score(nil, Context{})
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, contracts.RiskLow, a.Level)
}

func TestScore_ReasoningJoinsFactors(t *testing.T) {
	eng := newTestEngine()

	a := eng.Score(transfer(10), Context{RecipientKnown: boolPtr(false), ShortExpiry: true})
	assert.Equal(t, "Recipient not in trusted set (15 pts); Unusually short approval window (10 pts)", a.Reasoning)
}

func TestScore_AmountMonotonic(t *testing.T) {
	eng := newTestEngine()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("raising the amount never lowers the score", prop.ForAll(
		func(a, b int64) bool {
			lo, hi := a, b
			if lo > hi {
				lo, hi = hi, lo
			}
			ctx := Context{RecipientKnown: boolPtr(false), ShortExpiry: true}
			return eng.Score(transfer(lo), ctx).Score <= eng.Score(transfer(hi), ctx).Score
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.Int64Range(0, 1_000_000_000),
	))

	properties.Property("score is always within [0,100]", prop.ForAll(
		func(amount, spend int64, anomaly float64) bool {
			s := eng.Score(transfer(amount), Context{
				RecipientKnown:       boolPtr(false),
				ShortExpiry:          true,
				RecentSpend:          int64Ptr(spend),
				RepeatedRecipient:    true,
				BehaviorAnomalyScore: floatPtr(anomaly),
			}).Score
			return s >= 0 && s <= 100
		},
		gen.Int64Range(0, 2_000_000_000),
		gen.Int64Range(0, 2_000_000_000),
		gen.Float64Range(-100, 100),
	))

	properties.TestingRun(t)
}

func TestDecide_Matrix(t *testing.T) {
	cases := []struct {
		level  contracts.RiskLevel
		action contracts.PolicyAction
		alert  bool
	}{
		{contracts.RiskLow, contracts.PolicyAllow, false},
		{contracts.RiskMedium, contracts.PolicyAllow, true},
		{contracts.RiskHigh, contracts.PolicyRequireApproval, true},
		{"", contracts.PolicyBlock, true},
		{"EXTREME", contracts.PolicyBlock, true},
	}
	for _, tc := range cases {
		d := Decide(contracts.RiskAssessment{Level: tc.level})
		assert.Equal(t, tc.action, d.Action, string(tc.level))
		assert.Equal(t, tc.alert, d.Alert, string(tc.level))
		assert.NotEmpty(t, d.Reason)
	}
}
