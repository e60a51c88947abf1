package horizon

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/base"
	"github.com/stellar/go/support/render/problem"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/househelp-server/internal/ledger"
)

type fakeHorizon struct {
	account    hProtocol.Account
	accountErr error

	submitted *txnbuild.Transaction
	resp      hProtocol.Transaction
	submitErr error
}

func (f *fakeHorizon) AccountDetail(_ horizonclient.AccountRequest) (hProtocol.Account, error) {
	return f.account, f.accountErr
}

func (f *fakeHorizon) SubmitTransaction(tx *txnbuild.Transaction) (hProtocol.Transaction, error) {
	f.submitted = tx
	return f.resp, f.submitErr
}

func TestClient_LoadAccount(t *testing.T) {
	api := &fakeHorizon{account: hProtocol.Account{
		AccountID: "GPLATFORM",
		Sequence:  42,
		Data:      map[string]string{"jobs_1": base64.StdEncoding.EncodeToString([]byte("bafkreicid"))},
		Balances: []hProtocol.Balance{
			{Balance: "9.9999900", Asset: base.Asset{Type: "native"}},
			{Balance: "1.0000000", Asset: base.Asset{Type: "credit_alphanum4", Code: "CHM", Issuer: "GISSUER"}},
		},
	}}
	c := NewClientWithAPI(api, network.TestNetworkPassphrase)

	snap, err := c.LoadAccount(context.Background(), "GPLATFORM")
	require.NoError(t, err)
	assert.Equal(t, int64(42), snap.Sequence)
	assert.Equal(t, []byte("bafkreicid"), snap.Data["jobs_1"])
	require.Len(t, snap.Balances, 2)
	assert.Equal(t, "CHM", snap.Balances[1].AssetCode)
	assert.Equal(t, "GISSUER", snap.Balances[1].AssetIssuer)
}

func TestClient_LoadAccount_NotFound(t *testing.T) {
	api := &fakeHorizon{accountErr: &horizonclient.Error{Problem: problem.P{Status: http.StatusNotFound, Type: "https://stellar.org/horizon-errors/not_found", Title: "Resource Missing"}}}
	c := NewClientWithAPI(api, network.TestNetworkPassphrase)

	_, err := c.LoadAccount(context.Background(), "GNONE")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestClient_Submit_BuildsTransaction(t *testing.T) {
	platform, err := keypair.Random()
	require.NoError(t, err)
	user, err := keypair.Random()
	require.NoError(t, err)

	closed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	api := &fakeHorizon{resp: hProtocol.Transaction{Hash: "abc", Ledger: 7, LedgerCloseTime: closed}}
	c := NewClientWithAPI(api, network.TestNetworkPassphrase)

	snap := ledger.AccountSnapshot{AccountID: platform.Address(), Sequence: 100}
	tx := ledger.NewTransaction(snap, "employees_20240102030405_101",
		ledger.Payment{Destination: user.Address(), Asset: ledger.NativeAsset(), Amount: "0.0000001"},
		ledger.ManageData{Name: "employees_20240102030405_101", Value: []byte("bafkreicid")},
	)

	receipt, err := c.Submit(context.Background(), tx.Sign(platform))
	require.NoError(t, err)
	assert.Equal(t, "abc", receipt.Hash)
	assert.Equal(t, int32(7), receipt.Ledger)
	assert.Equal(t, closed, receipt.LedgerCloseTime)

	require.NotNil(t, api.submitted)
	assert.Equal(t, int64(101), api.submitted.SequenceNumber())
	assert.Len(t, api.submitted.Operations(), 2)
	assert.Len(t, api.submitted.Signatures(), 1)
	assert.Equal(t, txnbuild.MemoText("employees_20240102030405_101"), api.submitted.Memo())
}

func TestClient_Submit_MapsResultCodes(t *testing.T) {
	kp, err := keypair.Random()
	require.NoError(t, err)

	tests := []struct {
		name  string
		extra map[string]interface{}
		want  error
	}{
		{
			name:  "bad sequence",
			extra: map[string]interface{}{"result_codes": map[string]interface{}{"transaction": "tx_bad_seq"}},
			want:  ledger.ErrSequenceMismatch,
		},
		{
			name:  "underfunded",
			extra: map[string]interface{}{"result_codes": map[string]interface{}{"transaction": "tx_failed", "operations": []string{"op_underfunded"}}},
			want:  ledger.ErrInsufficientBalance,
		},
		{
			name:  "too late",
			extra: map[string]interface{}{"result_codes": map[string]interface{}{"transaction": "tx_too_late"}},
			want:  ledger.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeHorizon{submitErr: &horizonclient.Error{Problem: problem.P{Status: http.StatusBadRequest, Extras: tt.extra}}}
			c := NewClientWithAPI(api, network.TestNetworkPassphrase)

			snap := ledger.AccountSnapshot{AccountID: kp.Address(), Sequence: 1}
			tx := ledger.NewTransaction(snap, "", ledger.ManageData{Name: "k", Value: []byte("v")})

			_, err := c.Submit(context.Background(), tx.Sign(kp))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_Submit_GatewayTimeout(t *testing.T) {
	kp, err := keypair.Random()
	require.NoError(t, err)

	api := &fakeHorizon{submitErr: &horizonclient.Error{Problem: problem.P{Status: http.StatusGatewayTimeout, Title: "Timeout"}}}
	c := NewClientWithAPI(api, network.TestNetworkPassphrase)

	snap := ledger.AccountSnapshot{AccountID: kp.Address(), Sequence: 1}
	_, err = c.Submit(context.Background(), ledger.NewTransaction(snap, "", ledger.ManageData{Name: "k", Value: []byte("v")}).Sign(kp))
	assert.ErrorIs(t, err, ledger.ErrTimeout)
}

func TestClient_Submit_TransportError(t *testing.T) {
	kp, err := keypair.Random()
	require.NoError(t, err)

	api := &fakeHorizon{submitErr: errors.New("connection reset")}
	c := NewClientWithAPI(api, network.TestNetworkPassphrase)

	snap := ledger.AccountSnapshot{AccountID: kp.Address(), Sequence: 1}
	_, err = c.Submit(context.Background(), ledger.NewTransaction(snap, "", ledger.ManageData{Name: "k", Value: []byte("v")}).Sign(kp))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to submit transaction")
}

func TestConvertOperation_MintOps(t *testing.T) {
	issuer, err := keypair.Random()
	require.NoError(t, err)
	asset := ledger.CreditAsset("CHM", issuer.Address())

	trust, err := convertOperation(ledger.ChangeTrust{Asset: asset, Limit: "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", trust.(*txnbuild.ChangeTrust).Limit)

	opts, err := convertOperation(ledger.SetOptions{SourceAccount: issuer.Address(), MasterWeight: ledger.Weight(0)})
	require.NoError(t, err)
	so := opts.(*txnbuild.SetOptions)
	require.NotNil(t, so.MasterWeight)
	assert.Equal(t, txnbuild.Threshold(0), *so.MasterWeight)
	assert.Equal(t, issuer.Address(), so.SourceAccount)
}

func TestFriendbot_Fund(t *testing.T) {
	var gotAddr string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddr = r.URL.Query().Get("addr")
		if gotAddr == "GBAD" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"createAccountAlreadyExist"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fb := NewFriendbot(srv.URL, srv.Client())

	require.NoError(t, fb.Fund(context.Background(), "GGOOD"))
	assert.Equal(t, "GGOOD", gotAddr)

	err := fb.Fund(context.Background(), "GBAD")
	assert.ErrorIs(t, err, ledger.ErrFunding)
	assert.Contains(t, err.Error(), "createAccountAlreadyExist")
}

func TestClient_LoadAccount_OverHTTP(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/hal+json")
		_, _ = w.Write([]byte(`{"id":"GPLATFORM","account_id":"GPLATFORM","sequence":"7","balances":[],"data":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, network.TestNetworkPassphrase, srv.Client())

	snap, err := c.LoadAccount(context.Background(), "GPLATFORM")
	require.NoError(t, err)
	assert.Equal(t, "/accounts/GPLATFORM", gotPath)
	assert.Equal(t, int64(7), snap.Sequence)
}

func TestClient_LoadAccount_StopsOnDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient(srv.URL, network.TestNetworkPassphrase, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.LoadAccount(ctx, "GPLATFORM")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
