package ledger

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/stellar/go/keypair"
)

// Asset is a ledger asset. The zero value is the native asset.
type Asset struct {
	Code   string
	Issuer string
}

// NativeAsset returns the ledger's native currency.
func NativeAsset() Asset { return Asset{} }

// CreditAsset returns an issued asset.
func CreditAsset(code, issuer string) Asset { return Asset{Code: code, Issuer: issuer} }

// IsNative reports whether a is the native asset.
func (a Asset) IsNative() bool { return a.Code == "" }

func (a Asset) String() string {
	if a.IsNative() {
		return AssetTypeNative
	}
	return a.Code + ":" + a.Issuer
}

// Operation is one step of a transaction. SourceAccount may be empty,
// in which case the transaction source applies.
type Operation interface {
	Source() string
}

type CreateAccount struct {
	SourceAccount   string
	Destination     string
	StartingBalance string
}

type Payment struct {
	SourceAccount string
	Destination   string
	Asset         Asset
	Amount        string
}

// ManageData sets a data entry on the source account. A nil Value deletes it.
type ManageData struct {
	SourceAccount string
	Name          string
	Value         []byte
}

type ChangeTrust struct {
	SourceAccount string
	Asset         Asset
	Limit         string
}

// SetOptions changes signer settings. Only master weight is supported.
type SetOptions struct {
	SourceAccount string
	MasterWeight  *uint8
}

func (o CreateAccount) Source() string { return o.SourceAccount }
func (o Payment) Source() string       { return o.SourceAccount }
func (o ManageData) Source() string    { return o.SourceAccount }
func (o ChangeTrust) Source() string   { return o.SourceAccount }
func (o SetOptions) Source() string    { return o.SourceAccount }

// Weight is a convenience for SetOptions.MasterWeight.
func Weight(w uint8) *uint8 { return &w }

// Transaction is an unsigned batch of operations applied atomically.
// MaxTime is the last close time at which the ledger accepts it.
type Transaction struct {
	Source     string
	Sequence   int64
	Operations []Operation
	Memo       string
	MaxTime    time.Time
}

// NewTransaction builds the next transaction for the account in snap, valid
// for DefaultTimeout from now.
func NewTransaction(snap AccountSnapshot, memo string, ops ...Operation) Transaction {
	tx := Transaction{
		Source:     snap.AccountID,
		Sequence:   snap.Sequence + 1,
		Operations: ops,
		Memo:       TruncateMemo(memo),
	}
	return tx.ValidFor(time.Now(), DefaultTimeout)
}

// ValidFor sets the validity window to d starting at built.
// A non-positive d falls back to DefaultTimeout.
func (tx Transaction) ValidFor(built time.Time, d time.Duration) Transaction {
	if d <= 0 {
		d = DefaultTimeout
	}
	tx.MaxTime = built.UTC().Add(d).Truncate(time.Second)
	return tx
}

// Validate performs the checks that do not need ledger state.
func (tx Transaction) Validate() error {
	if tx.Source == "" {
		return fmt.Errorf("%w: missing source account", ErrOperation)
	}
	if len(tx.Operations) == 0 {
		return NewSubmitError(CodeMissingOp, nil)
	}
	if len(tx.Memo) > MaxMemoText {
		return fmt.Errorf("%w: memo longer than %d bytes", ErrOperation, MaxMemoText)
	}
	for _, op := range tx.Operations {
		if md, ok := op.(ManageData); ok {
			if len(md.Name) == 0 || len(md.Name) > MaxDataEntrySize || len(md.Value) > MaxDataEntrySize {
				return NewSubmitError(CodeFailed, []string{OpMalformed})
			}
		}
	}
	return nil
}

// Sign attaches the signing keypairs.
func (tx Transaction) Sign(signers ...*keypair.Full) SignedTransaction {
	return SignedTransaction{Transaction: tx, Signers: signers}
}

// SignedTransaction is a transaction together with the keys that authorize it.
type SignedTransaction struct {
	Transaction
	Signers []*keypair.Full
}

// SignedBy reports whether address is among the signers.
func (s SignedTransaction) SignedBy(address string) bool {
	for _, kp := range s.Signers {
		if kp != nil && kp.Address() == address {
			return true
		}
	}
	return false
}

// TruncateMemo cuts memo to the ledger text memo limit without splitting a rune.
func TruncateMemo(memo string) string {
	if len(memo) <= MaxMemoText {
		return memo
	}
	cut := MaxMemoText
	for cut > 0 && !utf8.RuneStart(memo[cut]) {
		cut--
	}
	return memo[:cut]
}
