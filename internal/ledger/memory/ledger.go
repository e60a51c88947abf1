// Package memory is an in-process ledger that follows the account, sequence,
// signer and data entry rules of the Stellar network closely enough for
// local development and tests.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/stellar/go/amount"

	"github.com/dtroode/househelp-server/internal/ledger"
)

const (
	baseFee         int64 = 100
	baseReserve     int64 = 5_000_000
	maxSubentries         = 1000
	friendbotAmount int64 = 10_000 * amount.One
)

var (
	_ ledger.Client = (*Ledger)(nil)
	_ ledger.Funder = (*Ledger)(nil)
)

type trustline struct {
	balance int64
	limit   int64
}

type account struct {
	id           string
	seq          int64
	native       int64
	masterWeight uint8
	data         map[string][]byte
	lines        map[ledger.Asset]*trustline
}

func newAccount(id string, seq, balance int64) *account {
	return &account{
		id:           id,
		seq:          seq,
		native:       balance,
		masterWeight: 1,
		data:         map[string][]byte{},
		lines:        map[ledger.Asset]*trustline{},
	}
}

func (a *account) clone() *account {
	c := *a
	c.data = make(map[string][]byte, len(a.data))
	for k, v := range a.data {
		c.data[k] = append([]byte(nil), v...)
	}
	c.lines = make(map[ledger.Asset]*trustline, len(a.lines))
	for k, v := range a.lines {
		line := *v
		c.lines[k] = &line
	}
	return &c
}

func (a *account) subentries() int { return len(a.data) + len(a.lines) }

func (a *account) minBalance(extra int) int64 {
	return int64(2+a.subentries()+extra) * baseReserve
}

func (a *account) available() int64 { return a.native - a.minBalance(0) }

// Ledger is a thread-safe in-memory ledger.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account
	ledgerNo int32

	clock       func() time.Time
	submitDelay time.Duration
	fundAmount  int64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock used for close times and validity windows.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithSubmitDelay simulates network latency between receipt and application of
// a transaction. Sequence numbers are checked after the delay.
func WithSubmitDelay(d time.Duration) Option {
	return func(l *Ledger) { l.submitDelay = d }
}

// WithFundAmount changes the balance granted by Fund, in stroops.
func WithFundAmount(stroops int64) Option {
	return func(l *Ledger) { l.fundAmount = stroops }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts:   map[string]*account{},
		ledgerNo:   1,
		clock:      func() time.Time { return time.Now().UTC() },
		fundAmount: friendbotAmount,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fund creates accountID with the friendbot balance.
func (l *Ledger) Fund(_ context.Context, accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[accountID]; ok {
		return fmt.Errorf("%w: account %s already exists", ledger.ErrFunding, accountID)
	}
	l.accounts[accountID] = newAccount(accountID, l.startingSequence(), l.fundAmount)
	l.ledgerNo++
	return nil
}

// LoadAccount returns a copy of the account state.
func (l *Ledger) LoadAccount(ctx context.Context, accountID string) (ledger.AccountSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return ledger.AccountSnapshot{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[accountID]
	if !ok {
		return ledger.AccountSnapshot{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, accountID)
	}

	snap := ledger.AccountSnapshot{
		AccountID: acc.id,
		Sequence:  acc.seq,
		Data:      make(map[string][]byte, len(acc.data)),
		Balances:  []ledger.Balance{{AssetType: ledger.AssetTypeNative, Amount: amount.StringFromInt64(acc.native)}},
	}
	for k, v := range acc.data {
		snap.Data[k] = append([]byte(nil), v...)
	}

	assets := make([]ledger.Asset, 0, len(acc.lines))
	for asset := range acc.lines {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].String() < assets[j].String() })
	for _, asset := range assets {
		snap.Balances = append(snap.Balances, ledger.Balance{
			AssetType:   assetType(asset),
			AssetCode:   asset.Code,
			AssetIssuer: asset.Issuer,
			Amount:      amount.StringFromInt64(acc.lines[asset].balance),
		})
	}
	return snap, nil
}

// Submit validates and applies tx atomically.
func (l *Ledger) Submit(ctx context.Context, tx ledger.SignedTransaction) (ledger.Receipt, error) {
	if err := tx.Validate(); err != nil {
		return ledger.Receipt{}, err
	}

	if l.submitDelay > 0 {
		select {
		case <-time.After(l.submitDelay):
		case <-ctx.Done():
			return ledger.Receipt{}, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !tx.MaxTime.IsZero() && l.clock().After(tx.MaxTime) {
		return ledger.Receipt{}, ledger.NewSubmitError(ledger.CodeTooLate, nil)
	}

	src, ok := l.accounts[tx.Source]
	if !ok {
		return ledger.Receipt{}, ledger.NewSubmitError(ledger.CodeNoAccount, nil)
	}
	if tx.Sequence != src.seq+1 {
		return ledger.Receipt{}, ledger.NewSubmitError(ledger.CodeBadSeq, nil)
	}
	if !l.authorized(tx, tx.Source) {
		return ledger.Receipt{}, ledger.NewSubmitError(ledger.CodeBadAuth, nil)
	}
	fee := baseFee * int64(len(tx.Operations))
	if src.native-fee < src.minBalance(0) {
		return ledger.Receipt{}, ledger.NewSubmitError(ledger.CodeInsufficientBal, nil)
	}

	// Fee and sequence are consumed even when an operation fails.
	src.native -= fee
	src.seq = tx.Sequence

	receipt := ledger.Receipt{
		Hash:            txHash(tx),
		Sequence:        tx.Sequence,
		Ledger:          l.ledgerNo,
		LedgerCloseTime: l.clock(),
	}
	l.ledgerNo++

	working := map[string]*account{}
	codes := make([]string, len(tx.Operations))
	failed := false
	for i, op := range tx.Operations {
		code := l.apply(working, tx, op)
		codes[i] = code
		if code != ledger.OpSuccess {
			failed = true
		}
	}
	if failed {
		return ledger.Receipt{}, ledger.NewSubmitError(ledger.CodeFailed, codes)
	}

	for id, acc := range working {
		l.accounts[id] = acc
	}
	return receipt, nil
}

// authorized reports whether address has a valid signature on tx.
// An account whose master weight is zero can no longer sign.
func (l *Ledger) authorized(tx ledger.SignedTransaction, address string) bool {
	acc, ok := l.accounts[address]
	if !ok {
		return false
	}
	return acc.masterWeight > 0 && tx.SignedBy(address)
}

func (l *Ledger) lookup(working map[string]*account, id string) (*account, bool) {
	if acc, ok := working[id]; ok {
		return acc, true
	}
	acc, ok := l.accounts[id]
	if !ok {
		return nil, false
	}
	working[id] = acc.clone()
	return working[id], true
}

func (l *Ledger) apply(working map[string]*account, tx ledger.SignedTransaction, op ledger.Operation) string {
	sourceID := op.Source()
	if sourceID == "" {
		sourceID = tx.Source
	}
	src, ok := l.lookup(working, sourceID)
	if !ok {
		return ledger.OpNoSourceAccount
	}
	if sourceID != tx.Source && !l.authorized(tx, sourceID) {
		return ledger.OpBadAuth
	}

	switch o := op.(type) {
	case ledger.CreateAccount:
		return l.applyCreateAccount(working, src, o)
	case ledger.Payment:
		return l.applyPayment(working, src, o)
	case ledger.ManageData:
		return applyManageData(src, o)
	case ledger.ChangeTrust:
		return l.applyChangeTrust(working, src, o)
	case ledger.SetOptions:
		if o.MasterWeight != nil {
			src.masterWeight = *o.MasterWeight
		}
		return ledger.OpSuccess
	default:
		return ledger.OpMalformed
	}
}

func (l *Ledger) applyCreateAccount(working map[string]*account, src *account, op ledger.CreateAccount) string {
	start, err := amount.ParseInt64(op.StartingBalance)
	if err != nil || start <= 0 {
		return ledger.OpMalformed
	}
	if _, exists := l.lookup(working, op.Destination); exists {
		return ledger.OpAlreadyExists
	}
	if start < 2*baseReserve {
		return ledger.OpLowReserve
	}
	if src.available() < start {
		return ledger.OpUnderfunded
	}
	src.native -= start
	working[op.Destination] = newAccount(op.Destination, l.startingSequence(), start)
	return ledger.OpSuccess
}

func (l *Ledger) applyPayment(working map[string]*account, src *account, op ledger.Payment) string {
	amt, err := amount.ParseInt64(op.Amount)
	if err != nil || amt <= 0 {
		return ledger.OpMalformed
	}
	dst, ok := l.lookup(working, op.Destination)
	if !ok {
		return ledger.OpNoDestination
	}

	if op.Asset.IsNative() {
		if src.available() < amt {
			return ledger.OpUnderfunded
		}
		src.native -= amt
		dst.native += amt
		return ledger.OpSuccess
	}

	if src.id != op.Asset.Issuer {
		line, ok := src.lines[op.Asset]
		if !ok {
			return ledger.OpNoTrust
		}
		if line.balance < amt {
			return ledger.OpUnderfunded
		}
		line.balance -= amt
	}
	if dst.id != op.Asset.Issuer {
		line, ok := dst.lines[op.Asset]
		if !ok {
			return ledger.OpNoTrust
		}
		if line.balance+amt > line.limit {
			return ledger.OpLineFull
		}
		line.balance += amt
	}
	return ledger.OpSuccess
}

func applyManageData(src *account, op ledger.ManageData) string {
	if op.Value == nil {
		if _, ok := src.data[op.Name]; !ok {
			return "op_name_not_found"
		}
		delete(src.data, op.Name)
		return ledger.OpSuccess
	}
	if _, exists := src.data[op.Name]; !exists {
		if src.subentries() >= maxSubentries {
			return "op_too_many_subentries"
		}
		if src.native < src.minBalance(1) {
			return ledger.OpLowReserve
		}
	}
	src.data[op.Name] = append([]byte(nil), op.Value...)
	return ledger.OpSuccess
}

func (l *Ledger) applyChangeTrust(working map[string]*account, src *account, op ledger.ChangeTrust) string {
	if op.Asset.IsNative() || op.Asset.Issuer == src.id {
		return ledger.OpMalformed
	}
	limit, err := amount.ParseInt64(op.Limit)
	if err != nil || limit < 0 {
		return ledger.OpInvalidLimit
	}
	if _, ok := l.lookup(working, op.Asset.Issuer); !ok {
		return "op_no_issuer"
	}

	line, exists := src.lines[op.Asset]
	switch {
	case limit == 0:
		if !exists {
			return ledger.OpInvalidLimit
		}
		if line.balance > 0 {
			return ledger.OpInvalidLimit
		}
		delete(src.lines, op.Asset)
	case exists:
		if limit < line.balance {
			return ledger.OpInvalidLimit
		}
		line.limit = limit
	default:
		if src.subentries() >= maxSubentries {
			return "op_too_many_subentries"
		}
		if src.native < src.minBalance(1) {
			return ledger.OpLowReserve
		}
		src.lines[op.Asset] = &trustline{limit: limit}
	}
	return ledger.OpSuccess
}

// startingSequence mirrors the network rule that a new account starts at
// the current ledger number shifted into the high 32 bits.
func (l *Ledger) startingSequence() int64 {
	return int64(l.ledgerNo) << 32
}

func assetType(a ledger.Asset) string {
	switch {
	case a.IsNative():
		return ledger.AssetTypeNative
	case len(a.Code) <= 4:
		return "credit_alphanum4"
	default:
		return "credit_alphanum12"
	}
}

func txHash(tx ledger.SignedTransaction) string {
	h := sha256.New()
	h.Write([]byte(tx.Source))
	h.Write([]byte(strconv.FormatInt(tx.Sequence, 10)))
	h.Write([]byte(tx.Memo))
	for _, op := range tx.Operations {
		fmt.Fprintf(h, "%T%+v", op, op)
	}
	return hex.EncodeToString(h.Sum(nil))
}
