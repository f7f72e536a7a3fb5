// Package audit writes once-only governance records to a durable sink.
// Records are canonicalized before hashing so the digest is stable across
// writers; sink failure degrades to "no audit reference", never an error.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gowebpki/jcs"
	"go.uber.org/zap"

	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

const recordSchema = "constraint-layer/v1"

// Record is the structured audit payload for one governed proposal.
type Record struct {
	Schema     string               `json:"schema"`
	ProposalID string               `json:"proposal_id"`
	CreatedAt  time.Time            `json:"created_at"`
	Action     string               `json:"action"`
	Amount     int64                `json:"amount"`
	Recipient  string               `json:"recipient"`
	Risk       RiskSummary          `json:"risk"`
	Constraint *contracts.Constraint `json:"constraint,omitempty"`
	Decision   string               `json:"decision"`
	ApprovedBy string               `json:"approved_by,omitempty"`
	// Digest is the sha256 of the canonicalized record, excluding itself.
	Digest string `json:"digest,omitempty"`
}

// RiskSummary is the slice of a risk assessment worth keeping forever.
type RiskSummary struct {
	Level     contracts.RiskLevel `json:"level"`
	Score     int                 `json:"score"`
	Reasoning string              `json:"reasoning"`
}

// NewRecord assembles a record from the pipeline's artifacts.
func NewRecord(proposal *contracts.Intent, risk *contracts.RiskAssessment, constraint *contracts.Constraint, decision, approvedBy string) Record {
	rec := Record{
		Schema:     recordSchema,
		CreatedAt:  time.Now().UTC(),
		Constraint: constraint,
		Decision:   decision,
		ApprovedBy: approvedBy,
	}
	if proposal != nil {
		rec.ProposalID = proposal.ID
		rec.Action = proposal.Action
		rec.Amount = proposal.Params.Amount
		rec.Recipient = proposal.Params.Recipient
	}
	if risk != nil {
		rec.Risk = RiskSummary{Level: risk.Level, Score: risk.Score, Reasoning: risk.Reasoning}
	}
	return rec
}

// Sink accepts a write-once blob and returns an opaque reference.
type Sink interface {
	Put(ctx context.Context, blob []byte) (ref string, err error)
}

// Recorder canonicalizes, digests, and writes records with bounded retries.
type Recorder struct {
	sink        Sink
	logger      *zap.Logger
	maxAttempts uint64
	interval    time.Duration
}

// NewRecorder builds a recorder over sink. Three attempts with increasing
// backoff by default.
func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		sink:        sink,
		logger:      logger,
		maxAttempts: 3,
		interval:    time.Second,
	}
}

// Log writes the record and returns the sink's reference, or "" when the
// sink is absent or exhausted its retries. It never returns an error:
// a missing audit reference must not block execution.
func (r *Recorder) Log(ctx context.Context, rec Record) string {
	if r.sink == nil {
		return ""
	}

	blob, err := encode(rec)
	if err != nil {
		r.logger.Error("audit record encode failed", zap.Error(err))
		return ""
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.interval

	var ref string
	op := func() error {
		var putErr error
		ref, putErr = r.sink.Put(ctx, blob)
		return putErr
	}

	err = backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(policy, r.maxAttempts-1), ctx))
	if err != nil {
		r.logger.Warn("audit write failed after retries",
			zap.String("proposal_id", rec.ProposalID), zap.Error(err))
		return ""
	}
	return ref
}

// encode canonicalizes the record and embeds its content digest.
func encode(rec Record) ([]byte, error) {
	rec.Digest = ""
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	sum := sha256.Sum256(canonical)
	rec.Digest = hex.EncodeToString(sum[:])

	final, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(final)
}
