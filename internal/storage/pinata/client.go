// Package pinata stores blobs on IPFS through the Pinata pinning service.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/storage/cidutil"
)

const maxBlobSize = 4 << 20

var _ model.BlobStore = (*Client)(nil)

// Client pins JSON with the Pinata API and reads it back via an IPFS gateway.
type Client struct {
	apiURL     string
	gatewayURL string
	jwt        string
	http       *http.Client
}

// NewClient creates a Pinata client. httpClient may be nil.
func NewClient(apiURL, gatewayURL, jwt string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		jwt:        jwt,
		http:       httpClient,
	}
}

type pinRequest struct {
	Content  any         `json:"pinataContent"`
	Metadata pinMetadata `json:"pinataMetadata"`
	Options  pinOptions  `json:"pinataOptions"`
}

type pinMetadata struct {
	Name string `json:"name,omitempty"`
}

type pinOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Upload pins payload and returns the CID reported by Pinata.
func (c *Client) Upload(ctx context.Context, payload any, name string) (string, error) {
	body, err := json.Marshal(pinRequest{
		Content:  payload,
		Metadata: pinMetadata{Name: name},
		Options:  pinOptions{CIDVersion: 1},
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode payload: %w", model.ErrUpload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/pinning/pinJSONToIPFS", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUpload, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to reach pinning service: %w", model.ErrUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: pinning service returned %d: %s", model.ErrUpload, resp.StatusCode, msg)
	}

	var pinned pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pinned); err != nil {
		return "", fmt.Errorf("%w: failed to decode pin response: %w", model.ErrUpload, err)
	}
	if _, err := cidutil.Parse(pinned.IpfsHash); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUpload, err)
	}
	return pinned.IpfsHash, nil
}

// Fetch reads the blob from the gateway.
func (c *Client) Fetch(ctx context.Context, cid string) (json.RawMessage, error) {
	if _, err := cidutil.Parse(cid); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gatewayURL+"/ipfs/"+cid, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrNetwork, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reach gateway: %w", model.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("blob %s: %w", cid, model.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: gateway returned %d", model.ErrNetwork, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read blob: %w", model.ErrNetwork, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("blob %s is not valid JSON", cid)
	}
	return data, nil
}
