// Package approval implements the human-in-the-loop workflow: an approval
// request goes out through a transport, and the caller waits for an
// asynchronous resolution racing against a timeout. Exactly one of the two
// settles any given proposal.
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// Transport delivers approval requests to a human. Resolutions come back
// asynchronously through Broker.Resolve.
type Transport interface {
	SendApprovalRequest(ctx context.Context, proposal *contracts.Intent, risk *contracts.RiskAssessment) error
}

// Decision is the outcome of one approval request.
type Decision struct {
	Approved   bool   `json:"approved"`
	ApprovedBy string `json:"approved_by,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type pending struct {
	ch chan Decision
}

// Broker correlates requests and resolutions by proposal id. The pending
// table holds at most one entry per id; the first settlement (human decision
// or timeout) removes the entry, so the loser is inert.
type Broker struct {
	mu        sync.Mutex
	pending   map[string]*pending
	transport Transport
	logger    *zap.Logger
}

// NewBroker builds a broker over the given transport. A nil transport means
// approvals resolve immediately as not approved rather than hanging.
func NewBroker(transport Transport, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		pending:   make(map[string]*pending),
		transport: transport,
		logger:    logger,
	}
}

// SetTransport installs the transport after construction, for wiring
// cycles where the transport itself needs the broker.
func (b *Broker) SetTransport(t Transport) {
	b.mu.Lock()
	b.transport = t
	b.mu.Unlock()
}

// Request dispatches an approval request and waits for its resolution, the
// timeout, or ctx cancellation, whichever settles first.
func (b *Broker) Request(ctx context.Context, proposal *contracts.Intent, risk *contracts.RiskAssessment, timeout time.Duration) Decision {
	if proposal == nil || risk == nil {
		return Decision{Approved: false, Reason: "missing proposal or risk"}
	}
	b.mu.Lock()
	transport := b.transport
	b.mu.Unlock()
	if transport == nil {
		return Decision{Approved: false, Reason: "approval transport unavailable"}
	}

	entry := &pending{ch: make(chan Decision, 1)}
	b.mu.Lock()
	// At most one outstanding entry per id: a stale entry is settled as
	// superseded before the new one takes its place.
	if old, ok := b.pending[proposal.ID]; ok {
		old.ch <- Decision{Approved: false, Reason: "superseded"}
	}
	b.pending[proposal.ID] = entry
	b.mu.Unlock()

	// Register before sending: a resolution can arrive the instant the
	// request lands.
	if err := transport.SendApprovalRequest(ctx, proposal, risk); err != nil {
		if !b.remove(proposal.ID, entry) {
			return <-entry.ch
		}
		return Decision{Approved: false, Reason: fmt.Sprintf("approval request failed: %v", err)}
	}

	b.logger.Info("awaiting approval",
		zap.String("proposal_id", proposal.ID),
		zap.Int("pending", b.PendingCount()))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-entry.ch:
		return d
	case <-timer.C:
		if !b.remove(proposal.ID, entry) {
			// A resolution won the race; honor it.
			return <-entry.ch
		}
		return Decision{Approved: false, Reason: "timeout"}
	case <-ctx.Done():
		if !b.remove(proposal.ID, entry) {
			return <-entry.ch
		}
		return Decision{Approved: false, Reason: ctx.Err().Error()}
	}
}

// Resolve settles a pending proposal. Returns false when nothing is pending
// under the id; a late resolution after timeout is a no-op.
func (b *Broker) Resolve(proposalID string, d Decision) bool {
	b.mu.Lock()
	entry, ok := b.pending[proposalID]
	if ok {
		delete(b.pending, proposalID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Warn("no pending approval", zap.String("proposal_id", proposalID))
		return false
	}
	entry.ch <- d
	return true
}

// PendingCount reports outstanding approvals, for status surfaces.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// remove drops the entry only if it is still the one we registered,
// reporting whether it was still pending.
func (b *Broker) remove(proposalID string, entry *pending) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.pending[proposalID]; ok && cur == entry {
		delete(b.pending, proposalID)
		return true
	}
	return false
}
