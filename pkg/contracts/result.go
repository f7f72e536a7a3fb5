package contracts

// Layer names the pipeline stage that settled an intent.
type Layer string

const (
	LayerKillSwitch  Layer = "KILL_SWITCH"
	LayerCrossDomain Layer = "CROSS_DOMAIN"
	LayerFirewall    Layer = "FIREWALL"
	LayerRiskEngine  Layer = "RISK_ENGINE"
	LayerGovernance  Layer = "GOVERNANCE"
	LayerOSPolicy    Layer = "OS_POLICY"
	LayerExecution   Layer = "EXECUTION"
	LayerGate        Layer = "GATE"
)

// Outcome is the terminal state of one intent.
type Outcome string

const (
	OutcomeBlocked          Outcome = "BLOCKED"
	OutcomeAwaitingApproval Outcome = "AWAITING_APPROVAL"
	OutcomeExecuted         Outcome = "EXECUTED"
)

// Result is what the gate returns for one processed intent.
type Result struct {
	OK       bool            `json:"ok"`
	Outcome  Outcome         `json:"decision"`
	Layer    Layer           `json:"layer,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Severity Severity        `json:"severity,omitempty"`
	Risk     *RiskAssessment `json:"risk,omitempty"`
	Digest   string          `json:"digest,omitempty"`
	AuditRef string          `json:"audit_ref,omitempty"`
}

// ExecErrorCode normalizes execution collaborator failures.
type ExecErrorCode string

const (
	ExecAwaitingApproval ExecErrorCode = "AWAITING_APPROVAL"
	ExecChainAbort       ExecErrorCode = "CHAIN_ABORT"
	ExecTypeMismatch     ExecErrorCode = "TYPE_MISMATCH"
	ExecError            ExecErrorCode = "EXEC_ERROR"
)

// ExecutionResult is the execution collaborator's answer.
type ExecutionResult struct {
	OK       bool          `json:"ok"`
	Digest   string        `json:"digest,omitempty"`
	AuditRef string        `json:"audit_ref,omitempty"`
	Code     ExecErrorCode `json:"code,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}
