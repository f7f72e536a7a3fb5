// Package firewall statically classifies intents before any risk scoring.
// One classifier per domain; dispatch is exhaustive over contracts.Domain and
// every classifier fails closed on malformed input.
package firewall

import (
	"fmt"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// Verdict is a classifier's answer for one intent.
type Verdict struct {
	Allowed  bool
	Severity contracts.Severity
	Reason   string
}

func deny(sev contracts.Severity, reason string) Verdict {
	return Verdict{Allowed: false, Severity: sev, Reason: reason}
}

func allow(sev contracts.Severity, reason string) Verdict {
	return Verdict{Allowed: true, Severity: sev, Reason: reason}
}

// Classifier inspects one domain's intents.
type Classifier interface {
	Classify(intent *contracts.Intent) Verdict
}

// Firewall dispatches an intent to its domain classifier and applies
// operator-defined deny rules first, if any are configured.
type Firewall struct {
	os      *OSClassifier
	fs      *FSClassifier
	browser *BrowserClassifier
	ledger  *LedgerClassifier
	rules   *RuleSet
}

// Option configures a Firewall.
type Option func(*Firewall)

// WithRules installs operator-defined CEL deny rules.
func WithRules(rs *RuleSet) Option {
	return func(f *Firewall) { f.rules = rs }
}

// New builds a firewall rooted at sandboxRoot for path-bounded domains.
func New(sandboxRoot string, opts ...Option) (*Firewall, error) {
	ledger, err := NewLedgerClassifier()
	if err != nil {
		return nil, fmt.Errorf("ledger classifier: %w", err)
	}
	f := &Firewall{
		os:      NewOSClassifier(sandboxRoot),
		fs:      NewFSClassifier(sandboxRoot),
		browser: &BrowserClassifier{},
		ledger:  ledger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Inspect classifies an intent. A malformed intent (missing domain or
// action) is denied HIGH; an unknown domain is denied MEDIUM.
func (f *Firewall) Inspect(intent *contracts.Intent) Verdict {
	if intent == nil {
		return deny(contracts.SeverityHigh, "intent missing")
	}
	if intent.Domain == "" || intent.Action == "" {
		return deny(contracts.SeverityHigh, "malformed intent (missing domain or action)")
	}

	if f.rules != nil {
		if v, matched := f.rules.Evaluate(intent); matched {
			return v
		}
	}

	switch intent.Domain {
	case contracts.DomainOS:
		return normalize(f.os.Classify(intent), contracts.SeverityHigh)
	case contracts.DomainFilesystem:
		return normalize(f.fs.Classify(intent), contracts.SeverityMedium)
	case contracts.DomainBrowser:
		return normalize(f.browser.Classify(intent), contracts.SeverityMedium)
	case contracts.DomainLedger:
		return normalize(f.ledger.Classify(intent), contracts.SeverityMedium)
	default:
		return deny(contracts.SeverityMedium, fmt.Sprintf("unknown intent domain: %s", intent.Domain))
	}
}

// CheckOSCommand re-runs the OS command rule alone. The gate calls this at
// execution time as a second, independent validation.
func (f *Firewall) CheckOSCommand(command string) Verdict {
	return normalize(f.os.classifyCommand(command), contracts.SeverityHigh)
}

// normalize forces a fallback severity onto verdicts a buggy classifier left
// ungraded, so the result still fails toward caution.
func normalize(v Verdict, fallback contracts.Severity) Verdict {
	if v.Severity == "" {
		v.Allowed = false
		v.Severity = fallback
		if v.Reason == "" {
			v.Reason = "classifier returned no severity"
		}
	}
	return v
}
