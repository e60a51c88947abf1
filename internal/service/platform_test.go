package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/househelp-server/internal/ledger"
)

func TestPlatform_SubmitPassesConsumedSequence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	before, err := h.ledger.LoadAccount(ctx, h.platform.Address())
	require.NoError(t, err)

	var seen int64
	receipt, err := h.platform.Submit(ctx, func(seq int64) (string, []ledger.Operation, error) {
		seen = seq
		return "memo", []ledger.Operation{ledger.ManageData{Name: "k", Value: []byte("v")}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, before.Sequence+1, seen)
	assert.Equal(t, seen, receipt.Sequence)
}

func TestPlatform_BuildError(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")

	_, err := h.platform.Submit(context.Background(), func(int64) (string, []ledger.Operation, error) {
		return "", nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestPlatform_RejectedTransaction(t *testing.T) {
	h := newHarness(t)

	_, err := h.platform.Submit(context.Background(), func(int64) (string, []ledger.Operation, error) {
		return "", []ledger.Operation{ledger.ManageData{Name: "this-name-is-way-too-long-for-a-ledger-data-entry-because-it-exceeds-64", Value: []byte("v")}}, nil
	})
	assert.ErrorIs(t, err, ledger.ErrOperation)
}
