package model

import (
	"context"
	"encoding/json"
)

// BlobStore is a content-addressed JSON store.
type BlobStore interface {
	Upload(ctx context.Context, payload any, name string) (string, error)
	Fetch(ctx context.Context, cid string) (json.RawMessage, error)
}
