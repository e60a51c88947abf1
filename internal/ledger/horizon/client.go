package horizon

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/txnbuild"

	"github.com/dtroode/househelp-server/internal/ledger"
)

// Internal adapter interface to enable faking Horizon in tests.
type horizonAPI interface {
	AccountDetail(request horizonclient.AccountRequest) (hProtocol.Account, error)
	SubmitTransaction(transaction *txnbuild.Transaction) (hProtocol.Transaction, error)
}

var _ ledger.Client = (*Client)(nil)

// Client is a ledger.Client backed by a Horizon server.
type Client struct {
	api        func(ctx context.Context) horizonAPI
	passphrase string
}

// NewClient creates a client for the Horizon server at horizonURL.
// horizonclient methods take no context, so every call gets its own
// horizonclient.Client whose transport is bound to the caller's ctx.
func NewClient(horizonURL, passphrase string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		api: func(ctx context.Context) horizonAPI {
			return &horizonclient.Client{HorizonURL: horizonURL, HTTP: contextHTTP{ctx: ctx, client: httpClient}}
		},
		passphrase: passphrase,
	}
}

// NewClientWithAPI allows injecting a fake Horizon (used in tests).
func NewClientWithAPI(api horizonAPI, passphrase string) *Client {
	return &Client{api: func(context.Context) horizonAPI { return api }, passphrase: passphrase}
}

// contextHTTP aborts requests when ctx is done. horizonclient replaces the
// request context with its own timeout, so ctx is joined onto that one.
type contextHTTP struct {
	ctx    context.Context
	client *http.Client
}

var _ horizonclient.HTTP = contextHTTP{}

func (h contextHTTP) Do(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(h.ctx, cancel)
	// The response body is read after Do returns, so the joined context
	// lives until horizonclient cancels its own.
	context.AfterFunc(ctx, func() { stop() })
	return h.client.Do(req.WithContext(ctx))
}

func (h contextHTTP) Get(u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(h.ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return h.client.Do(req)
}

func (h contextHTTP) PostForm(u string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(h.ctx, http.MethodPost, u, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.client.Do(req)
}

// LoadAccount fetches the account state from Horizon.
func (c *Client) LoadAccount(ctx context.Context, accountID string) (ledger.AccountSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return ledger.AccountSnapshot{}, err
	}

	acc, err := c.api(ctx).AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ledger.AccountSnapshot{}, fmt.Errorf("failed to load account: %w", ctxErr)
		}
		if isNotFound(err) {
			return ledger.AccountSnapshot{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, accountID)
		}
		return ledger.AccountSnapshot{}, fmt.Errorf("failed to load account: %w", err)
	}

	snap := ledger.AccountSnapshot{
		AccountID: acc.AccountID,
		Sequence:  acc.Sequence,
		Data:      make(map[string][]byte, len(acc.Data)),
		Balances:  make([]ledger.Balance, 0, len(acc.Balances)),
	}
	for key, encoded := range acc.Data {
		value, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return ledger.AccountSnapshot{}, fmt.Errorf("failed to decode data entry %q: %w", key, err)
		}
		snap.Data[key] = value
	}
	for _, b := range acc.Balances {
		snap.Balances = append(snap.Balances, ledger.Balance{
			AssetType:   b.Type,
			AssetCode:   b.Code,
			AssetIssuer: b.Issuer,
			Amount:      b.Balance,
		})
	}
	return snap, nil
}

// Submit converts, signs and submits tx, waiting for Horizon's verdict.
func (c *Client) Submit(ctx context.Context, tx ledger.SignedTransaction) (ledger.Receipt, error) {
	if err := tx.Validate(); err != nil {
		return ledger.Receipt{}, err
	}
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, err
	}

	built, err := c.build(tx)
	if err != nil {
		return ledger.Receipt{}, err
	}

	resp, err := c.api(ctx).SubmitTransaction(built)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ledger.Receipt{}, fmt.Errorf("failed to submit transaction: %w", ctxErr)
		}
		return ledger.Receipt{}, mapSubmitError(err)
	}

	return ledger.Receipt{
		Hash:            resp.Hash,
		Sequence:        tx.Sequence,
		Ledger:          resp.Ledger,
		LedgerCloseTime: resp.LedgerCloseTime,
	}, nil
}

func (c *Client) build(tx ledger.SignedTransaction) (*txnbuild.Transaction, error) {
	ops := make([]txnbuild.Operation, 0, len(tx.Operations))
	for _, op := range tx.Operations {
		converted, err := convertOperation(op)
		if err != nil {
			return nil, err
		}
		ops = append(ops, converted)
	}

	bounds := txnbuild.NewTimeout(int64(ledger.DefaultTimeout.Seconds()))
	if !tx.MaxTime.IsZero() {
		bounds = txnbuild.NewTimebounds(0, tx.MaxTime.Unix())
	}

	params := txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: tx.Source, Sequence: tx.Sequence - 1},
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: bounds},
	}
	if tx.Memo != "" {
		params.Memo = txnbuild.MemoText(tx.Memo)
	}

	built, err := txnbuild.NewTransaction(params)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build transaction: %v", ledger.ErrOperation, err)
	}

	built, err = built.Sign(c.passphrase, tx.Signers...)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return built, nil
}

func convertOperation(op ledger.Operation) (txnbuild.Operation, error) {
	switch o := op.(type) {
	case ledger.CreateAccount:
		return &txnbuild.CreateAccount{
			SourceAccount: o.SourceAccount,
			Destination:   o.Destination,
			Amount:        o.StartingBalance,
		}, nil
	case ledger.Payment:
		return &txnbuild.Payment{
			SourceAccount: o.SourceAccount,
			Destination:   o.Destination,
			Asset:         convertAsset(o.Asset),
			Amount:        o.Amount,
		}, nil
	case ledger.ManageData:
		return &txnbuild.ManageData{
			SourceAccount: o.SourceAccount,
			Name:          o.Name,
			Value:         o.Value,
		}, nil
	case ledger.ChangeTrust:
		line, err := txnbuild.CreditAsset{Code: o.Asset.Code, Issuer: o.Asset.Issuer}.ToChangeTrustAsset()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid trust line asset: %v", ledger.ErrOperation, err)
		}
		return &txnbuild.ChangeTrust{
			SourceAccount: o.SourceAccount,
			Line:          line,
			Limit:         o.Limit,
		}, nil
	case ledger.SetOptions:
		so := &txnbuild.SetOptions{SourceAccount: o.SourceAccount}
		if o.MasterWeight != nil {
			so.MasterWeight = txnbuild.NewThreshold(txnbuild.Threshold(*o.MasterWeight))
		}
		return so, nil
	default:
		return nil, fmt.Errorf("%w: unsupported operation %T", ledger.ErrOperation, op)
	}
}

func convertAsset(a ledger.Asset) txnbuild.Asset {
	if a.IsNative() {
		return txnbuild.NativeAsset{}
	}
	return txnbuild.CreditAsset{Code: a.Code, Issuer: a.Issuer}
}

func isNotFound(err error) bool {
	if horizonclient.IsNotFoundError(err) {
		return true
	}
	hErr := horizonclient.GetError(err)
	return hErr != nil && hErr.Problem.Status == http.StatusNotFound
}

func mapSubmitError(err error) error {
	hErr := horizonclient.GetError(err)
	if hErr == nil {
		return fmt.Errorf("failed to submit transaction: %w", err)
	}

	codes, cerr := hErr.ResultCodes()
	if cerr == nil && codes != nil && codes.TransactionCode != "" {
		return ledger.NewSubmitError(codes.TransactionCode, codes.OperationCodes)
	}
	if hErr.Problem.Status == http.StatusGatewayTimeout {
		return fmt.Errorf("%w: %s", ledger.ErrTimeout, hErr.Problem.Title)
	}
	return fmt.Errorf("failed to submit transaction: %w", err)
}
