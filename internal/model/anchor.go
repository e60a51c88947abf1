package model

import (
	"context"
	"time"
)

// AnchorReceipt identifies an anchored pointer and the transaction that wrote it.
type AnchorReceipt struct {
	Key             string    `json:"key"`
	CID             string    `json:"cid"`
	TxHash          string    `json:"hash"`
	Ledger          int32     `json:"ledger,omitempty"`
	LedgerCloseTime time.Time `json:"closedAt,omitzero"`
}

// Anchor statuses recorded in the journal.
const (
	AnchorStatusAnchored = "anchored"
	AnchorStatusOrphaned = "orphaned"
)

// AnchorEntry is one journaled anchoring outcome.
type AnchorEntry struct {
	Namespace string
	Account   string
	Key       string
	CID       string
	TxHash    string
	Status    string
	Error     string
	CreatedAt time.Time
}

// AnchorJournal keeps an operator-facing log of anchoring outcomes.
type AnchorJournal interface {
	Record(ctx context.Context, entry AnchorEntry) error
	ListOrphaned(ctx context.Context, limit int) ([]AnchorEntry, error)
}
