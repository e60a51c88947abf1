package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stellar/go/keypair"

	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/queue"
)

// Serializer runs ledger jobs one at a time.
type Serializer interface {
	Do(ctx context.Context, job queue.Job) (ledger.Receipt, error)
}

var _ Serializer = (*queue.Queue)(nil)

// BuildFunc returns the memo and operations of a platform transaction.
// seq is the sequence number the transaction will consume.
type BuildFunc func(seq int64) (memo string, ops []ledger.Operation, err error)

// Platform is the single signing identity whose account holds every anchored
// pointer. Its key and account snapshot never leave this type.
type Platform struct {
	client    ledger.Client
	serial    Serializer
	signer    *keypair.Full
	txTimeout time.Duration
	logger    *logger.Logger
}

func NewPlatform(client ledger.Client, serial Serializer, signer *keypair.Full, txTimeout time.Duration, logger *logger.Logger) *Platform {
	if txTimeout <= 0 {
		txTimeout = ledger.DefaultTimeout
	}
	return &Platform{
		client:    client,
		serial:    serial,
		signer:    signer,
		txTimeout: txTimeout,
		logger:    logger,
	}
}

// Address returns the platform account id.
func (p *Platform) Address() string {
	return p.signer.Address()
}

// Submit loads a fresh snapshot, builds, signs and submits one transaction
// inside the serialization queue.
func (p *Platform) Submit(ctx context.Context, build BuildFunc) (ledger.Receipt, error) {
	return p.serial.Do(ctx, func(ctx context.Context) (ledger.Receipt, error) {
		snap, err := p.client.LoadAccount(ctx, p.signer.Address())
		if err != nil {
			return ledger.Receipt{}, fmt.Errorf("failed to load platform account: %w", err)
		}

		memo, ops, err := build(snap.Sequence + 1)
		if err != nil {
			return ledger.Receipt{}, err
		}

		tx := ledger.NewTransaction(snap, memo, ops...).ValidFor(time.Now(), p.txTimeout)

		receipt, err := p.client.Submit(ctx, tx.Sign(p.signer))
		if err != nil {
			p.logger.Warn("Platform: transaction rejected",
				"sequence", tx.Sequence,
				"error", err)
			return ledger.Receipt{}, fmt.Errorf("failed to submit platform transaction: %w", err)
		}
		return receipt, nil
	})
}
