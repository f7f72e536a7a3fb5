package ledger

import (
	"context"
	"time"
)

// Transfer is one settled transfer as surfaced to operators.
type Transfer struct {
	Digest    string    `json:"digest"`
	Amount    int64     `json:"amount"`
	Recipient string    `json:"recipient"`
	Time      time.Time `json:"time"`
}

// History exposes settled transfers for operator surfaces (chat /logs and
// /tx commands). Both executors implement it.
type History interface {
	Recent(ctx context.Context, limit int) ([]Transfer, error)
	Lookup(ctx context.Context, digest string) (*Transfer, error)
}
