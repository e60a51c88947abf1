// Package memory is a process-local content-addressed blob store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/storage/cidutil"
)

var _ model.BlobStore = (*Store)(nil)

type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func New() *Store {
	return &Store{blobs: map[string][]byte{}}
}

func (s *Store) Upload(ctx context.Context, payload any, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUpload, err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode payload: %w", model.ErrUpload, err)
	}
	id, err := cidutil.CIDv1RawSHA256(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUpload, err)
	}

	s.mu.Lock()
	s.blobs[id.String()] = data
	s.mu.Unlock()

	return id.String(), nil
}

func (s *Store) Fetch(ctx context.Context, cid string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrNetwork, err)
	}
	if _, err := cidutil.Parse(cid); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.blobs[cid]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", cid, model.ErrNotFound)
	}
	return append(json.RawMessage(nil), data...), nil
}

// Len reports the number of stored blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
