package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/bulwarklabs/bulwark/pkg/audit"
	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// simHistoryCap bounds the in-memory transfer log.
const simHistoryCap = 20

// SimExecutor fakes the ledger for demos and tests: deterministic digest
// derived from the proposal, optional scripted failure. Settled transfers
// are kept in a bounded in-memory log so History works without a node.
type SimExecutor struct {
	recorder *audit.Recorder
	// Fail, when set, makes every execution report this reason.
	Fail string

	mu        sync.Mutex
	transfers []Transfer
}

// NewSimExecutor builds a simulator. recorder may be nil.
func NewSimExecutor(recorder *audit.Recorder) *SimExecutor {
	return &SimExecutor{recorder: recorder}
}

// Execute pretends to submit the transfer.
func (e *SimExecutor) Execute(ctx context.Context, req Request) contracts.ExecutionResult {
	if req.Signer == "" || req.CapabilityRef == "" || req.Constraint == nil {
		return contracts.ExecutionResult{
			OK:     false,
			Code:   contracts.ExecError,
			Reason: "missing signer, capability reference, or constraint",
		}
	}

	auditRef := ""
	if e.recorder != nil && req.Proposal != nil && req.Risk != nil {
		rec := audit.NewRecord(req.Proposal, req.Risk, req.Constraint, "PENDING", req.Signer)
		auditRef = e.recorder.Log(ctx, rec)
	}

	if e.Fail != "" {
		return contracts.ExecutionResult{
			OK:       false,
			AuditRef: auditRef,
			Code:     normalizeError(e.Fail),
			Reason:   e.Fail,
		}
	}

	seed := fmt.Sprintf("%s:%d:%s", proposalID(req), req.Amount, req.Recipient)
	sum := sha256.Sum256([]byte(seed))
	digest := "0x" + hex.EncodeToString(sum[:])
	e.record(Transfer{
		Digest:    digest,
		Amount:    req.Amount,
		Recipient: req.Recipient,
		Time:      time.Now().UTC(),
	})
	return contracts.ExecutionResult{
		OK:       true,
		Digest:   digest,
		AuditRef: auditRef,
	}
}

func (e *SimExecutor) record(tr Transfer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transfers = append(e.transfers, tr)
	if len(e.transfers) > simHistoryCap {
		e.transfers = e.transfers[len(e.transfers)-simHistoryCap:]
	}
}

// Recent returns the newest settled transfers first.
func (e *SimExecutor) Recent(ctx context.Context, limit int) ([]Transfer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 || limit > len(e.transfers) {
		limit = len(e.transfers)
	}
	out := make([]Transfer, 0, limit)
	for i := len(e.transfers) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.transfers[i])
	}
	return out, nil
}

// Lookup finds a settled transfer by digest.
func (e *SimExecutor) Lookup(ctx context.Context, digest string) (*Transfer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.transfers) - 1; i >= 0; i-- {
		if e.transfers[i].Digest == digest {
			tr := e.transfers[i]
			return &tr, nil
		}
	}
	return nil, nil
}

func proposalID(req Request) string {
	if req.Proposal != nil {
		return req.Proposal.ID
	}
	return "unknown"
}
