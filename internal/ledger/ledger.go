// Package ledger defines the account and transaction model shared by the
// Horizon client and the in-memory emulator.
package ledger

import (
	"context"
	"time"
)

const (
	// AssetTypeNative is the asset type of the ledger's native currency.
	AssetTypeNative = "native"
	// DefaultTimeout is the validity window applied when a transaction has none.
	DefaultTimeout = 30 * time.Second
	// MaxMemoText is the ledger's limit for text memos, in bytes.
	MaxMemoText = 28
	// MaxDataEntrySize bounds both data entry names and values.
	MaxDataEntrySize = 64
)

// AccountSnapshot is the state of an account at load time.
type AccountSnapshot struct {
	AccountID string
	Sequence  int64
	Data      map[string][]byte
	Balances  []Balance
}

// Balance is one asset holding of an account.
type Balance struct {
	AssetType   string
	AssetCode   string
	AssetIssuer string
	Amount      string
}

// Receipt describes a committed transaction. Sequence is the source account
// sequence number the transaction consumed.
type Receipt struct {
	Hash            string
	Sequence        int64
	Ledger          int32
	LedgerCloseTime time.Time
}

// Client loads accounts and submits signed transactions.
type Client interface {
	LoadAccount(ctx context.Context, accountID string) (AccountSnapshot, error)
	Submit(ctx context.Context, tx SignedTransaction) (Receipt, error)
}

// Funder creates and funds a brand new account from an external faucet.
type Funder interface {
	Fund(ctx context.Context, accountID string) error
}
