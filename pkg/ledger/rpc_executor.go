package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bulwarklabs/bulwark/pkg/audit"
	"github.com/bulwarklabs/bulwark/pkg/contracts"
)

// RPCExecutor submits transfers to a JSON-RPC node. The audit record is
// written first (decision PENDING) so the on-chain call can carry the blob
// reference; a missing reference never blocks submission.
type RPCExecutor struct {
	url      string
	client   *http.Client
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewRPCExecutor targets a node endpoint. recorder may be nil.
func NewRPCExecutor(url string, recorder *audit.Recorder, logger *zap.Logger) *RPCExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCExecutor{
		url:      url,
		client:   &http.Client{Timeout: 30 * time.Second},
		recorder: recorder,
		logger:   logger,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type executeResult struct {
	Digest string `json:"digest"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Execute submits the transfer and normalizes any failure.
func (e *RPCExecutor) Execute(ctx context.Context, req Request) contracts.ExecutionResult {
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

	params := map[string]any{
		"signer":         req.Signer,
		"capability_ref": req.CapabilityRef,
		"amount":         req.Amount,
		"recipient":      req.Recipient,
		"audit_ref":      auditRef,
		"constraint": map[string]any{
			"max_amount":        req.Constraint.MaxAmount,
			"allowed_recipient": req.Constraint.AllowedRecipient,
			"expires_at":        req.Constraint.ExpiresAt.UnixMilli(),
			"nonce":             req.Constraint.Nonce,
		},
	}

	result, err := e.call(ctx, "bulwark_executeTransfer", []any{params})
	if err != nil {
		e.logger.Warn("ledger execution failed", zap.Error(err))
		return contracts.ExecutionResult{
			OK:       false,
			AuditRef: auditRef,
			Code:     normalizeError(err.Error()),
			Reason:   err.Error(),
		}
	}

	var out executeResult
	if err := json.Unmarshal(result, &out); err != nil {
		return contracts.ExecutionResult{
			OK:       false,
			AuditRef: auditRef,
			Code:     contracts.ExecError,
			Reason:   fmt.Sprintf("decode execution result: %v", err),
		}
	}
	if out.Status != "success" {
		reason := out.Reason
		if reason == "" {
			reason = fmt.Sprintf("execution status %q", out.Status)
		}
		return contracts.ExecutionResult{
			OK:       false,
			Digest:   out.Digest,
			AuditRef: auditRef,
			Code:     normalizeError(reason),
			Reason:   reason,
		}
	}

	return contracts.ExecutionResult{OK: true, Digest: out.Digest, AuditRef: auditRef}
}

type transferRecord struct {
	Digest      string `json:"digest"`
	Amount      int64  `json:"amount"`
	Recipient   string `json:"recipient"`
	TimestampMS int64  `json:"timestamp_ms"`
}

func (r transferRecord) transfer() Transfer {
	return Transfer{
		Digest:    r.Digest,
		Amount:    r.Amount,
		Recipient: r.Recipient,
		Time:      time.UnixMilli(r.TimestampMS).UTC(),
	}
}

// Recent queries the node for the latest settled transfers.
func (e *RPCExecutor) Recent(ctx context.Context, limit int) ([]Transfer, error) {
	if limit <= 0 {
		limit = 5
	}
	result, err := e.call(ctx, "bulwark_recentTransfers", []any{map[string]any{"limit": limit}})
	if err != nil {
		return nil, fmt.Errorf("query recent transfers: %w", err)
	}
	var records []transferRecord
	if err := json.Unmarshal(result, &records); err != nil {
		return nil, fmt.Errorf("decode transfer log: %w", err)
	}
	out := make([]Transfer, 0, len(records))
	for _, r := range records {
		out = append(out, r.transfer())
	}
	return out, nil
}

// Lookup fetches one settled transfer by digest. A nil Transfer with nil
// error means the node does not know the digest.
func (e *RPCExecutor) Lookup(ctx context.Context, digest string) (*Transfer, error) {
	result, err := e.call(ctx, "bulwark_getTransfer", []any{map[string]any{"digest": digest}})
	if err != nil {
		return nil, fmt.Errorf("query transfer %s: %w", digest, err)
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}
	var record transferRecord
	if err := json.Unmarshal(result, &record); err != nil {
		return nil, fmt.Errorf("decode transfer: %w", err)
	}
	tr := record.transfer()
	return &tr, nil
}

func (e *RPCExecutor) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var out rpcResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}
