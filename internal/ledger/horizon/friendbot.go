package horizon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dtroode/househelp-server/internal/ledger"
)

var _ ledger.Funder = (*Friendbot)(nil)

// Friendbot funds new accounts through the test network faucet.
type Friendbot struct {
	url  string
	http *http.Client
}

// NewFriendbot creates a Funder calling the faucet at baseURL.
func NewFriendbot(baseURL string, httpClient *http.Client) *Friendbot {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Friendbot{url: baseURL, http: httpClient}
}

// Fund asks the faucet to create and fund accountID.
func (f *Friendbot) Fund(ctx context.Context, accountID string) error {
	u, err := url.Parse(f.url)
	if err != nil {
		return fmt.Errorf("%w: invalid friendbot url: %v", ledger.ErrFunding, err)
	}
	q := u.Query()
	q.Set("addr", accountID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrFunding, err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrFunding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: friendbot returned %d: %s", ledger.ErrFunding, resp.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
