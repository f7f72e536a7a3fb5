// Package gate sequences the governance pipeline for each intent:
// kill-switch check, cross-domain check, firewall, risk scoring, policy,
// human approval, and finally dispatch to the execution collaborator.
package gate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bulwarklabs/bulwark/pkg/alerts"
	"github.com/bulwarklabs/bulwark/pkg/approval"
	"github.com/bulwarklabs/bulwark/pkg/contracts"
	"github.com/bulwarklabs/bulwark/pkg/firewall"
	"github.com/bulwarklabs/bulwark/pkg/killswitch"
	"github.com/bulwarklabs/bulwark/pkg/ledger"
	"github.com/bulwarklabs/bulwark/pkg/risk"
)

// Gate is the orchestrator. One Gate serves many concurrent intents; the
// only shared mutable pieces are State and the kill-switch, both serialized
// internally.
type Gate struct {
	killSwitch      *killswitch.Switch
	firewall        *firewall.Firewall
	engine          *risk.Engine
	broker          *approval.Broker
	executor        ledger.Executor
	alerter         alerts.Emitter
	state           *State
	logger          *zap.Logger
	approvalTimeout time.Duration
	alertCooldown   time.Duration
}

// Options configure a Gate.
type Options struct {
	KillSwitch      *killswitch.Switch
	Firewall        *firewall.Firewall
	Engine          *risk.Engine
	Broker          *approval.Broker
	Executor        ledger.Executor
	Alerter         alerts.Emitter
	Logger          *zap.Logger
	ApprovalTimeout time.Duration
	// AlertCooldown throttles the repeated "attempt while frozen" alerts.
	AlertCooldown time.Duration
}

// New wires a gate. Alerter and Logger default to no-ops; the approval
// timeout defaults to one minute.
func New(opts Options) *Gate {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.ApprovalTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	cooldown := opts.AlertCooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Gate{
		killSwitch:      opts.KillSwitch,
		firewall:        opts.Firewall,
		engine:          opts.Engine,
		broker:          opts.Broker,
		executor:        opts.Executor,
		alerter:         opts.Alerter,
		state:           NewState(),
		logger:          logger,
		approvalTimeout: timeout,
		alertCooldown:   cooldown,
	}
}

// State exposes the counters for status surfaces.
func (g *Gate) State() *State {
	return g.state
}

// ProcessIntent runs one intent through the pipeline to a terminal state.
func (g *Gate) ProcessIntent(ctx context.Context, intent *contracts.Intent, riskCtx risk.Context) contracts.Result {
	frozen, err := g.killSwitch.IsFrozen(ctx)
	if err != nil {
		g.logger.Error("kill-switch read failed, failing closed", zap.Error(err))
		frozen = true
	}
	if frozen {
		// Repeated attempts while frozen alert on a cooldown, not per try.
		if ok, cdErr := g.killSwitch.ShouldAlert(ctx, g.alertCooldown); cdErr == nil && ok {
			g.alert(ctx, alerts.Alert{
				Level:   string(contracts.SeverityCritical),
				Domain:  domainOf(intent),
				Stage:   alerts.StageKillSwitch,
				Message: "Agent blocked by kill-switch",
				Reason:  "Kill-switch engaged",
				Intent:  intent,
			})
		}
		return blocked(contracts.LayerKillSwitch, "Kill-switch engaged", "")
	}

	if mirrorFrozen, reason := g.state.Frozen(); mirrorFrozen {
		if reason == "" {
			reason = "Agent globally frozen"
		}
		if ok, cdErr := g.killSwitch.ShouldAlert(ctx, g.alertCooldown); cdErr == nil && ok {
			g.alert(ctx, alerts.Alert{
				Level:   string(contracts.SeverityCritical),
				Domain:  domainOf(intent),
				Stage:   alerts.StageKillSwitch,
				Message: "Agent globally frozen",
				Reason:  reason,
				Intent:  intent,
			})
		}
		return blocked(contracts.LayerKillSwitch, reason, "")
	}

	if g.state.OSViolations() > 0 && intent != nil && intent.Domain == contracts.DomainLedger {
		g.alert(ctx, alerts.Alert{
			Level:   string(contracts.SeverityCritical),
			Domain:  string(contracts.DomainLedger),
			Stage:   alerts.StageGate,
			Message: "Ledger action blocked due to prior OS violation",
			Intent:  intent,
		})
		return blocked(contracts.LayerCrossDomain, "OS violation triggered ledger freeze", "")
	}

	verdict := g.firewall.Inspect(intent)
	if !verdict.Allowed {
		g.recordViolation(ctx, intent, verdict)
		g.alert(ctx, alerts.Alert{
			Level:   string(verdict.Severity),
			Domain:  domainOf(intent),
			Stage:   alerts.StageFirewall,
			Message: "Agent action blocked by intent firewall",
			Reason:  verdict.Reason,
			Intent:  intent,
		})
		return blocked(contracts.LayerFirewall, verdict.Reason, verdict.Severity)
	}

	assessment := g.engine.Score(intent, riskCtx)
	decision := risk.Decide(assessment)

	if decision.Alert {
		g.alert(ctx, alerts.Alert{
			Level:   string(assessment.Level),
			Domain:  domainOf(intent),
			Stage:   alerts.StageRiskEngine,
			Message: "Risk policy alert triggered",
			Reason:  decision.Reason,
			Risk:    &assessment,
			Intent:  intent,
		})
	}

	switch decision.Action {
	case contracts.PolicyBlock:
		g.recordHighRisk(intent)
		g.alert(ctx, alerts.Alert{
			Level:   string(contracts.RiskHigh),
			Domain:  domainOf(intent),
			Stage:   alerts.StageRiskEngine,
			Message: "Agent action blocked due to high risk",
			Reason:  decision.Reason,
			Risk:    &assessment,
			Intent:  intent,
		})
		res := blocked(contracts.LayerRiskEngine, decision.Reason, "")
		res.Risk = &assessment
		return res

	case contracts.PolicyRequireApproval:
		approved := g.broker.Request(ctx, intent, &assessment, g.approvalTimeout)
		if !approved.Approved {
			reason := approved.Reason
			if reason == "" {
				reason = "Approval denied or timed out"
			}
			return contracts.Result{
				OK:      false,
				Outcome: contracts.OutcomeAwaitingApproval,
				Layer:   contracts.LayerGovernance,
				Reason:  reason,
				Risk:    &assessment,
			}
		}
	}

	return g.dispatch(ctx, intent, &assessment)
}

// ResetState clears the counters, the freeze mirror, and the durable
// kill-switch. Administrative action only.
func (g *Gate) ResetState(ctx context.Context, by string) error {
	g.state.Reset()
	return g.killSwitch.Unfreeze(ctx, by)
}

// dispatch routes an authorized intent to its domain's execution path.
func (g *Gate) dispatch(ctx context.Context, intent *contracts.Intent, assessment *contracts.RiskAssessment) contracts.Result {
	switch intent.Domain {
	case contracts.DomainOS:
		return g.executeOS(ctx, intent, assessment)
	case contracts.DomainLedger:
		return g.executeLedger(ctx, intent, assessment)
	case contracts.DomainFilesystem, contracts.DomainBrowser:
		// The firewall is the whole check for these domains; execution is
		// simulated.
		return contracts.Result{
			OK:      true,
			Outcome: contracts.OutcomeExecuted,
			Risk:    assessment,
		}
	default:
		return blocked(contracts.LayerGate, "unsupported domain: "+string(intent.Domain), "")
	}
}

// executeOS re-validates the command at execution time. The firewall already
// passed it once; a second check here catches anything racing a rule change.
func (g *Gate) executeOS(ctx context.Context, intent *contracts.Intent, assessment *contracts.RiskAssessment) contracts.Result {
	if intent.Action == contracts.ActionExecuteCommand {
		check := g.firewall.CheckOSCommand(intent.Params.Command)
		if !check.Allowed {
			g.recordViolation(ctx, intent, check)
			g.alert(ctx, alerts.Alert{
				Level:   string(check.Severity),
				Domain:  string(contracts.DomainOS),
				Stage:   alerts.StageOSPolicy,
				Message: "Agent violated OS safety policy",
				Reason:  check.Reason,
				Intent:  intent,
			})
			return blocked(contracts.LayerOSPolicy, check.Reason, check.Severity)
		}
	}

	g.logger.Info("OS command allowed (simulated execution)",
		zap.String("intent_id", intent.ID),
		zap.String("command", intent.Params.Command))
	return contracts.Result{
		OK:      true,
		Outcome: contracts.OutcomeExecuted,
		Risk:    assessment,
	}
}

func (g *Gate) executeLedger(ctx context.Context, intent *contracts.Intent, assessment *contracts.RiskAssessment) contracts.Result {
	exec := intent.Metadata.Exec
	if exec == nil || exec.Signer == "" || exec.CapabilityRef == "" || exec.Constraint == nil {
		g.alert(ctx, alerts.Alert{
			Level:   string(contracts.SeverityHigh),
			Domain:  string(contracts.DomainLedger),
			Stage:   alerts.StageGate,
			Message: "Ledger execution credentials missing",
			Intent:  intent,
		})
		return blocked(contracts.LayerGate, "missing ledger execution credentials", "")
	}

	result := g.executor.Execute(ctx, ledger.Request{
		Signer:        exec.Signer,
		CapabilityRef: exec.CapabilityRef,
		Constraint:    exec.Constraint,
		Amount:        intent.Params.Amount,
		Recipient:     intent.Params.Recipient,
		Proposal:      intent,
		Risk:          assessment,
	})

	if !result.OK {
		g.recordHighRisk(intent)
		g.alert(ctx, alerts.Alert{
			Level:   string(contracts.SeverityHigh),
			Domain:  string(contracts.DomainLedger),
			Stage:   alerts.StageExecution,
			Message: "Ledger execution failed or rejected",
			Reason:  result.Reason,
			Intent:  intent,
		})
		return contracts.Result{
			OK:       false,
			Outcome:  contracts.OutcomeBlocked,
			Layer:    contracts.LayerExecution,
			Reason:   result.Reason,
			Risk:     assessment,
			AuditRef: result.AuditRef,
		}
	}

	return contracts.Result{
		OK:       true,
		Outcome:  contracts.OutcomeExecuted,
		Risk:     assessment,
		Digest:   result.Digest,
		AuditRef: result.AuditRef,
	}
}

// recordViolation escalates an OS CRITICAL deny to a global and durable
// freeze, firing the one-time latched freeze notification.
func (g *Gate) recordViolation(ctx context.Context, intent *contracts.Intent, verdict firewall.Verdict) {
	if intent == nil || intent.Domain != contracts.DomainOS || verdict.Severity != contracts.SeverityCritical {
		return
	}

	reason := verdict.Reason
	if reason == "" {
		reason = "Critical OS integrity violation"
	}

	g.state.RecordOSViolation()
	g.state.EngageFreeze(reason)

	if err := g.killSwitch.Freeze(ctx, reason, "OS_FIREWALL", 0); err != nil {
		// The in-memory mirror still blocks this process; the durable record
		// is now inconsistent, which is worth shouting about.
		g.logger.Error("failed to persist freeze", zap.Error(err))
	}

	first, err := g.killSwitch.MarkAlertSent(ctx)
	if err != nil {
		g.logger.Error("failed to latch freeze alert", zap.Error(err))
		return
	}
	if first {
		g.alert(ctx, alerts.Alert{
			Level:   string(contracts.SeverityCritical),
			Domain:  string(contracts.DomainOS),
			Stage:   alerts.StageFreeze,
			Message: "Agent frozen due to critical violation",
			Reason:  reason,
			Intent:  intent,
		})
	}
}

func (g *Gate) recordHighRisk(intent *contracts.Intent) {
	if intent != nil && intent.Domain == contracts.DomainLedger {
		g.state.RecordHighRiskTx()
	}
}

// alert is best effort: a failed notification is logged, never fatal.
func (g *Gate) alert(ctx context.Context, a alerts.Alert) {
	if g.alerter == nil {
		return
	}
	if err := g.alerter.Emit(ctx, a); err != nil {
		g.logger.Warn("alert emit failed", zap.String("stage", a.Stage), zap.Error(err))
	}
}

func blocked(layer contracts.Layer, reason string, severity contracts.Severity) contracts.Result {
	return contracts.Result{
		OK:       false,
		Outcome:  contracts.OutcomeBlocked,
		Layer:    layer,
		Reason:   reason,
		Severity: severity,
	}
}

func domainOf(intent *contracts.Intent) string {
	if intent == nil {
		return "UNKNOWN"
	}
	return string(intent.Domain)
}
