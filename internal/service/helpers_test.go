package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/ledger/memory"
	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/queue"
	memstore "github.com/dtroode/househelp-server/internal/storage/memory"
	"github.com/dtroode/househelp-server/internal/testutil"
)

type harness struct {
	ledger   *memory.Ledger
	blobs    *memstore.Store
	queue    *queue.Queue
	platform *Platform
	anchor   *Anchor
	index    *Index
	journal  *fakeJournal
}

func newHarness(t *testing.T, opts ...memory.Option) *harness {
	t.Helper()
	return newHarnessWithStore(t, memstore.New(), opts...)
}

func newHarnessWithStore(t *testing.T, blobs model.BlobStore, opts ...memory.Option) *harness {
	t.Helper()

	log := testutil.MakeNoopLogger()
	led := memory.New(opts...)

	q, err := queue.New(log)
	require.NoError(t, err)
	q.Start(context.Background())
	t.Cleanup(q.Stop)

	signer, err := keypair.Random()
	require.NoError(t, err)
	require.NoError(t, led.Fund(context.Background(), signer.Address()))

	platform := NewPlatform(led, q, signer, 0, log)
	journal := &fakeJournal{}

	h := &harness{
		ledger:   led,
		queue:    q,
		platform: platform,
		anchor:   NewAnchor(blobs, platform, journal, nil, log),
		index:    NewIndex(led, blobs, 4, nil, log),
		journal:  journal,
	}
	if store, ok := blobs.(*memstore.Store); ok {
		h.blobs = store
	}
	return h
}

// fundedAccount creates a fresh funded account and returns its keypair.
func (h *harness) fundedAccount(t *testing.T) *keypair.Full {
	t.Helper()
	kp, err := keypair.Random()
	require.NoError(t, err)
	require.NoError(t, h.ledger.Fund(context.Background(), kp.Address()))
	return kp
}

// writePointer stores a raw data entry on the platform account.
func (h *harness) writePointer(t *testing.T, key, value string) {
	t.Helper()
	_, err := h.platform.Submit(context.Background(), func(int64) (string, []ledger.Operation, error) {
		return "", []ledger.Operation{ledger.ManageData{Name: key, Value: []byte(value)}}, nil
	})
	require.NoError(t, err)
}

func (h *harness) dataKeys(t *testing.T) map[string][]byte {
	t.Helper()
	snap, err := h.ledger.LoadAccount(context.Background(), h.platform.Address())
	require.NoError(t, err)
	return snap.Data
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []model.AnchorEntry
}

func (j *fakeJournal) Record(_ context.Context, e model.AnchorEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *fakeJournal) ListOrphaned(_ context.Context, limit int) ([]model.AnchorEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []model.AnchorEntry
	for _, e := range j.entries {
		if e.Status == model.AnchorStatusOrphaned && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *fakeJournal) byStatus(status string) []model.AnchorEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []model.AnchorEntry
	for _, e := range j.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

type failingStore struct{}

func (failingStore) Upload(context.Context, any, string) (string, error) {
	return "", errors.New("pinning service unavailable")
}

func (failingStore) Fetch(context.Context, string) (json.RawMessage, error) {
	return nil, model.ErrNetwork
}

type failingFunder struct{}

func (failingFunder) Fund(context.Context, string) error {
	return ledger.ErrFunding
}

func decodeOne[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}
