package contracts

import "time"

// Severity grades a firewall verdict.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// RiskLevel is the qualitative band of a risk assessment.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskFactor is one itemized contribution to a risk score.
type RiskFactor struct {
	Name   string `json:"factor"`
	Points int    `json:"points"`
	Detail string `json:"detail"`
}

// RiskAssessment is the risk engine's verdict for one intent. Created fresh
// per intent and never mutated afterwards.
type RiskAssessment struct {
	Score         int          `json:"risk_score"`
	Level         RiskLevel    `json:"risk_level"`
	Factors       []RiskFactor `json:"factors"`
	Reasoning     string       `json:"reasoning"`
	EvaluatedAt   time.Time    `json:"evaluated_at"`
	EngineVersion string       `json:"engine_version"`
}

// PolicyAction is what the policy matrix tells the gate to do.
type PolicyAction string

const (
	PolicyAllow           PolicyAction = "ALLOW"
	PolicyRequireApproval PolicyAction = "REQUIRE_APPROVAL"
	PolicyBlock           PolicyAction = "BLOCK"
)

// PolicyDecision derives from a RiskAssessment's level alone.
type PolicyDecision struct {
	Action PolicyAction `json:"action"`
	Alert  bool         `json:"alert"`
	Reason string       `json:"reason"`
}
