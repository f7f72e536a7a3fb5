// Package risk scores ledger intents against situational context and turns
// the resulting assessment into a policy decision.
package risk

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

const engineVersion = "1.0.0"

// Limits are the amount thresholds, in base units.
type Limits struct {
	// SafeAmount forces a MEDIUM floor when met.
	SafeAmount int64 `yaml:"safe_amount"`
	// HighAmount forces score 90 and short-circuits all other factors.
	HighAmount int64 `yaml:"high_amount"`
	// CumulativeSafe is the safe cumulative-spend window.
	CumulativeSafe int64 `yaml:"cumulative_safe"`
}

// Weights are the per-factor point contributions.
type Weights struct {
	RecipientNovelty int `yaml:"recipient_novelty"`
	TimePressure     int `yaml:"time_pressure"`
	CumulativeSpend  int `yaml:"cumulative_spend"`
	RepeatPattern    int `yaml:"repeat_pattern"`
	BehaviorAnomaly  int `yaml:"behavior_anomaly"`
	Compounding      int `yaml:"compounding"`
}

// Thresholds map a score to a level.
type Thresholds struct {
	Medium int `yaml:"medium"`
	High   int `yaml:"high"`
}

// Policy bundles the tunables of the engine.
type Policy struct {
	Limits     Limits     `yaml:"limits"`
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// DefaultPolicy returns the stock tuning. Amounts are base units
// (1e9 per whole coin).
func DefaultPolicy() Policy {
	return Policy{
		Limits: Limits{
			SafeAmount:     100_000_000,
			HighAmount:     250_000_000,
			CumulativeSafe: 200_000_000,
		},
		Weights: Weights{
			RecipientNovelty: 15,
			TimePressure:     10,
			CumulativeSpend:  30,
			RepeatPattern:    15,
			BehaviorAnomaly:  20,
			Compounding:      15,
		},
		Thresholds: Thresholds{Medium: 40, High: 70},
	}
}

// Context carries the situational signals the engine scores against.
// Pointer fields distinguish "not provided" from a zero value.
type Context struct {
	RecipientKnown       *bool
	ShortExpiry          bool
	RecentSpend          *int64
	RepeatedRecipient    bool
	BehaviorAnomalyScore *float64
}

// Engine is a pure scorer; it holds only its tuning.
type Engine struct {
	policy Policy
	clock  func() time.Time
}

// NewEngine builds an engine with the given tuning.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Score produces a fresh assessment for one intent. Factors are recorded in
// evaluation order; a large amount short-circuits everything else so that
// unrelated mitigating signals can never dilute it.
func (e *Engine) Score(intent *contracts.Intent, ctx Context) contracts.RiskAssessment {
	var (
		factors []contracts.RiskFactor
		score   int
	)

	amount := int64(0)
	if intent != nil {
		amount = intent.Params.Amount
	}

	if amount >= e.policy.Limits.HighAmount {
		factors = append(factors, contracts.RiskFactor{
			Name:   "HARD_HIGH_AMOUNT",
			Points: 90,
			Detail: "Amount exceeds HIGH_AMOUNT threshold",
		})
		return e.finalize(90, factors)
	}

	if amount >= e.policy.Limits.SafeAmount {
		score = 50
		factors = append(factors, contracts.RiskFactor{
			Name:   "HARD_MEDIUM_AMOUNT",
			Points: 50,
			Detail: "Amount exceeds SAFE_AMOUNT threshold",
		})
	}

	if ctx.RecipientKnown != nil && !*ctx.RecipientKnown {
		score += e.policy.Weights.RecipientNovelty
		factors = append(factors, contracts.RiskFactor{
			Name:   "RECIPIENT_NOVELTY",
			Points: e.policy.Weights.RecipientNovelty,
			Detail: "Recipient not in trusted set",
		})
	}

	if ctx.ShortExpiry {
		score += e.policy.Weights.TimePressure
		factors = append(factors, contracts.RiskFactor{
			Name:   "TIME_PRESSURE",
			Points: e.policy.Weights.TimePressure,
			Detail: "Unusually short approval window",
		})
	}

	if ctx.RecentSpend != nil && e.policy.Limits.CumulativeSafe > 0 {
		ratio := float64(*ctx.RecentSpend) / float64(e.policy.Limits.CumulativeSafe)
		if ratio >= 1 {
			points := scoreRatio(ratio, e.policy.Weights.CumulativeSpend)
			score += points
			factors = append(factors, contracts.RiskFactor{
				Name:   "CUMULATIVE_SPEND",
				Points: points,
				Detail: fmt.Sprintf("Cumulative spend %.2f× window limit", ratio),
			})
		}
	}

	if ctx.RepeatedRecipient {
		score += e.policy.Weights.RepeatPattern
		factors = append(factors, contracts.RiskFactor{
			Name:   "REPEAT_PATTERN",
			Points: e.policy.Weights.RepeatPattern,
			Detail: "Repeated transfers to same recipient",
		})
	}

	if ctx.BehaviorAnomalyScore != nil {
		points := clampInt(int(math.Floor(*ctx.BehaviorAnomalyScore)), 0, e.policy.Weights.BehaviorAnomaly)
		if points > 0 {
			score += points
			factors = append(factors, contracts.RiskFactor{
				Name:   "BEHAVIOR_ANOMALY",
				Points: points,
				Detail: "Deviation from historical behavior baseline",
			})
		}
	}

	// Correlated signals compound beyond their sum.
	significant := 0
	for _, f := range factors {
		if f.Points >= 15 {
			significant++
		}
	}
	if significant >= 3 {
		score += e.policy.Weights.Compounding
		factors = append(factors, contracts.RiskFactor{
			Name:   "RISK_COMPOUNDING",
			Points: e.policy.Weights.Compounding,
			Detail: "Multiple independent risk signals compounding",
		})
	}

	return e.finalize(score, factors)
}

func (e *Engine) finalize(score int, factors []contracts.RiskFactor) contracts.RiskAssessment {
	score = clampInt(score, 0, 100)

	level := contracts.RiskLow
	switch {
	case score >= e.policy.Thresholds.High:
		level = contracts.RiskHigh
	case score >= e.policy.Thresholds.Medium:
		level = contracts.RiskMedium
	}

	reasoning := "No significant risk factors detected"
	if len(factors) > 0 {
		parts := make([]string, len(factors))
		for i, f := range factors {
			parts[i] = fmt.Sprintf("%s (%d pts)", f.Detail, f.Points)
		}
		reasoning = strings.Join(parts, "; ")
	}

	return contracts.RiskAssessment{
		Score:         score,
		Level:         level,
		Factors:       factors,
		Reasoning:     reasoning,
		EvaluatedAt:   e.clock().UTC(),
		EngineVersion: engineVersion,
	}
}

// scoreRatio converts an overspend ratio into points, floor-rounded at a
// scale of 20 per unit and capped at weight.
func scoreRatio(ratio float64, weight int) int {
	if math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return 0
	}
	return clampInt(int(math.Floor(ratio*20)), 0, weight)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
