// Package alerts defines the governance alert payload and the emitter
// fan-out that carries alerts to operators.
package alerts

import (
	"context"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// Stage names where in the pipeline an alert originated.
const (
	StageKillSwitch = "KILL_SWITCH"
	StageFirewall   = "FIREWALL"
	StageRiskEngine = "RISK_ENGINE"
	StageOSPolicy   = "OS_POLICY"
	StageExecution  = "EXECUTION"
	StageGate       = "GATE"
	StageFreeze     = "FREEZE"
)

// Alert is one operator notification.
type Alert struct {
	Level   string                    `json:"level"`
	Domain  string                    `json:"domain"`
	Stage   string                    `json:"stage"`
	Message string                    `json:"message"`
	Reason  string                    `json:"reason,omitempty"`
	Risk    *contracts.RiskAssessment `json:"risk,omitempty"`
	Intent  *contracts.Intent         `json:"intent,omitempty"`
}

// Emitter delivers alerts. Emit is best effort; the gate logs failures and
// moves on.
type Emitter interface {
	Emit(ctx context.Context, alert Alert) error
}

// MultiEmitter fans one alert out to several emitters, returning the first
// error after attempting all of them.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter builds a fan-out over the given emitters.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

// Emit delivers to every emitter.
func (m *MultiEmitter) Emit(ctx context.Context, alert Alert) error {
	var first error
	for _, e := range m.emitters {
		if err := e.Emit(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
