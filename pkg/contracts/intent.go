// Package contracts defines the shared data model for the governance gate:
// intents, risk assessments, policy decisions, execution results, and the
// durable kill-switch record.
package contracts

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Domain identifies the action domain an intent targets. Dispatch over
// Domain is exhaustive; adding a domain is a compile-time decision.
type Domain string

const (
	DomainOS         Domain = "OS"
	DomainFilesystem Domain = "FILESYSTEM"
	DomainBrowser    Domain = "BROWSER"
	DomainLedger     Domain = "LEDGER"
)

// Known reports whether d is one of the defined domains.
func (d Domain) Known() bool {
	switch d {
	case DomainOS, DomainFilesystem, DomainBrowser, DomainLedger:
		return true
	}
	return false
}

// UnmarshalText rejects unknown domain values.
func (d *Domain) UnmarshalText(text []byte) error {
	v := Domain(strings.ToUpper(string(text)))
	if !v.Known() {
		return fmt.Errorf("unknown domain %q", string(text))
	}
	*d = v
	return nil
}

// Intent action names.
const (
	ActionExecuteCommand     = "EXECUTE_COMMAND"
	ActionDownloadAndExecute = "DOWNLOAD_AND_EXECUTE"
	ActionTransfer           = "TRANSFER"
)

// IntentParams is the domain-specific parameter bag of an intent. Only the
// fields relevant to the intent's domain are populated.
type IntentParams struct {
	// OS
	Command string `json:"command,omitempty"`
	// Script download-and-execute
	URL    string `json:"url,omitempty"`
	Target string `json:"target,omitempty"`
	// Filesystem
	TargetPath string `json:"target_path,omitempty"`
	// Ledger: amount in base units.
	Amount    int64  `json:"amount,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

// ExecCredentials carry what the ledger execution collaborator needs.
type ExecCredentials struct {
	Signer        string      `json:"signer"`
	CapabilityRef string      `json:"capability_ref"`
	Constraint    *Constraint `json:"constraint"`
}

// IntentMetadata describes where an intent came from and why.
type IntentMetadata struct {
	Origin  string           `json:"origin"`
	Purpose string           `json:"purpose,omitempty"`
	Exec    *ExecCredentials `json:"exec,omitempty"`
}

// Intent is a proposed agent action submitted for governance review.
// Immutable once created; consumed exactly once by the gate.
type Intent struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Domain    Domain         `json:"domain"`
	Action    string         `json:"action"`
	Params    IntentParams   `json:"params"`
	Metadata  IntentMetadata `json:"metadata"`
}

// NewIntent constructs an intent with a fresh id and timestamp.
func NewIntent(domain Domain, action string, params IntentParams, meta IntentMetadata) *Intent {
	return &Intent{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Domain:    domain,
		Action:    action,
		Params:    params,
		Metadata:  meta,
	}
}

// Constraint is a bounded authorization attached to a ledger execution
// request: max amount, allowed recipient, expiry, and an anti-replay nonce.
type Constraint struct {
	MaxAmount        int64     `json:"max_amount"`
	AllowedRecipient string    `json:"allowed_recipient"`
	ExpiresAt        time.Time `json:"expires_at"`
	Nonce            string    `json:"nonce"`
}

// NewConstraint mints a constraint bounding a single proposed transfer.
func NewConstraint(amount int64, recipient string, ttl time.Duration) *Constraint {
	id := uuid.New()
	return &Constraint{
		MaxAmount:        amount,
		AllowedRecipient: recipient,
		ExpiresAt:        time.Now().Add(ttl),
		Nonce:            hex.EncodeToString(id[:]),
	}
}
