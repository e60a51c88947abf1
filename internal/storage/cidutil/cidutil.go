// Package cidutil derives and checks content identifiers for stored blobs.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/dtroode/househelp-server/internal/model"
)

// CIDv1RawSHA256 returns the CIDv1 (raw codec, sha2-256 multihash) of data.
func CIDv1RawSHA256(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Parse decodes s, reporting model.ErrInvalidCID for malformed input.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w %q: %v", model.ErrInvalidCID, s, err)
	}
	return id, nil
}

// Verify checks that data hashes to id using id's own hash function.
func Verify(id cid.Cid, data []byte) error {
	prefix := id.Prefix()
	got, err := prefix.Sum(data)
	if err != nil {
		return fmt.Errorf("failed to hash blob: %w", err)
	}
	if !got.Equals(id) {
		return fmt.Errorf("%w: want %s, got %s", model.ErrCIDMismatch, id, got)
	}
	return nil
}
