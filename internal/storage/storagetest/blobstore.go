// Package storagetest holds a conformance suite every model.BlobStore backend must pass.
package storagetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/storage/cidutil"
)

// NewStore constructs a fresh, empty store for a test.
type NewStore func(t *testing.T) model.BlobStore

func RunBlobStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("UploadFetchRoundTrip", func(t *testing.T) {
		store := newStore(t)
		record := []any{map[string]any{"name": "Amina", "county": "Nairobi", "isLiveIn": true}}

		id, err := store.Upload(ctx, record, "employees")
		require.NoError(t, err)

		raw, err := store.Fetch(ctx, id)
		require.NoError(t, err)

		want, err := json.Marshal(record)
		require.NoError(t, err)
		assert.JSONEq(t, string(want), string(raw))
	})

	t.Run("UploadIdempotent", func(t *testing.T) {
		store := newStore(t)
		record := []any{map[string]any{"title": "Nanny"}}

		id1, err := store.Upload(ctx, record, "a")
		require.NoError(t, err)
		id2, err := store.Upload(ctx, record, "b")
		require.NoError(t, err)
		assert.Equal(t, id1, id2)
	})

	t.Run("CIDFitsDataEntry", func(t *testing.T) {
		store := newStore(t)

		id, err := store.Upload(ctx, []any{map[string]any{"k": "v"}}, "")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(id), model.MaxDataEntrySize)
	})

	t.Run("FetchUnknown", func(t *testing.T) {
		store := newStore(t)
		id, err := cidutil.CIDv1RawSHA256([]byte("never stored"))
		require.NoError(t, err)

		_, err = store.Fetch(ctx, id.String())
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("FetchInvalidCID", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Fetch(ctx, "garbage")
		assert.Error(t, err)
	})
}
