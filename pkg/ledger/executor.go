// Package ledger is the execution collaborator boundary: it submits an
// authorized, constraint-bounded transfer and reports a digest or a
// normalized error code. All policy checks happen before this package is
// reached.
package ledger

import (
	"context"
	"strings"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// Request carries everything the executor needs, plus the original proposal
// and risk for audit correlation.
type Request struct {
	Signer        string
	CapabilityRef string
	Constraint    *contracts.Constraint
	Amount        int64
	Recipient     string
	Proposal      *contracts.Intent
	Risk          *contracts.RiskAssessment
}

// Executor submits one transfer.
type Executor interface {
	Execute(ctx context.Context, req Request) contracts.ExecutionResult
}

// normalizeError maps a transport error message onto the closed code set.
func normalizeError(msg string) contracts.ExecErrorCode {
	switch {
	case strings.Contains(msg, "AWAITING_APPROVAL"):
		return contracts.ExecAwaitingApproval
	case strings.Contains(msg, "MoveAbort") || strings.Contains(msg, "abort"):
		return contracts.ExecChainAbort
	case strings.Contains(msg, "TypeMismatch"):
		return contracts.ExecTypeMismatch
	default:
		return contracts.ExecError
	}
}
