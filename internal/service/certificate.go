package service

import (
	"context"
	"fmt"

	"github.com/stellar/go/keypair"
	"golang.org/x/sync/errgroup"

	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/metrics"
	"github.com/dtroode/househelp-server/internal/model"
)

// Mint steps reported in model.MintError.
const (
	MintStepKeypair = "keypair"
	MintStepFund    = "fund"
	MintStepLoad    = "load"
	MintStepSubmit  = "submit"
)

const (
	certificateSupply = "1"
	certificateMemo   = "NFT for PoW - "
)

// Certificates mints single-unit completion tokens. Issuance runs on fresh
// accounts and never touches the platform identity, so it bypasses the queue.
type Certificates struct {
	client     ledger.Client
	funder     ledger.Funder
	newKeypair func() (*keypair.Full, error)
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewCertificates(client ledger.Client, funder ledger.Funder, metrics *metrics.Metrics, logger *logger.Logger) *Certificates {
	return &Certificates{
		client:     client,
		funder:     funder,
		newKeypair: keypair.Random,
		metrics:    metrics,
		logger:     logger,
	}
}

// Mint issues one CHM unit from a new issuer to a new distributor and locks
// the issuer. recipient is the worker the certificate is minted for.
func (s *Certificates) Mint(ctx context.Context, recipient string) (cert model.Certificate, err error) {
	defer func() { s.metrics.IncrementMint(err) }()

	issuer, err := s.newKeypair()
	if err != nil {
		return model.Certificate{}, s.fail(MintStepKeypair, recipient, err)
	}
	distributor, err := s.newKeypair()
	if err != nil {
		return model.Certificate{}, s.fail(MintStepKeypair, recipient, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, kp := range []*keypair.Full{issuer, distributor} {
		g.Go(func() error {
			if err := s.funder.Fund(gctx, kp.Address()); err != nil {
				return fmt.Errorf("failed to fund %s: %w", kp.Address(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Certificate{}, s.fail(MintStepFund, recipient, err)
	}

	snap, err := s.client.LoadAccount(ctx, distributor.Address())
	if err != nil {
		return model.Certificate{}, s.fail(MintStepLoad, recipient, err)
	}

	asset := ledger.CreditAsset(model.CertificateAssetCode, issuer.Address())
	tx := ledger.NewTransaction(snap, certificateMemo+shortID(recipient),
		ledger.ChangeTrust{Asset: asset, Limit: certificateSupply},
		ledger.Payment{
			SourceAccount: issuer.Address(),
			Destination:   distributor.Address(),
			Asset:         asset,
			Amount:        certificateSupply,
		},
		ledger.SetOptions{SourceAccount: issuer.Address(), MasterWeight: ledger.Weight(0)},
	)

	receipt, err := s.client.Submit(ctx, tx.Sign(distributor, issuer))
	if err != nil {
		return model.Certificate{}, s.fail(MintStepSubmit, recipient, err)
	}

	s.logger.Info("Certificate service: certificate minted",
		"recipient", recipient,
		"issuer", issuer.Address(),
		"distributor", distributor.Address(),
		"hash", receipt.Hash)

	return model.Certificate{
		TransactionHash:      receipt.Hash,
		AssetCode:            model.CertificateAssetCode,
		AssetIssuer:          issuer.Address(),
		DistributorPublicKey: distributor.Address(),
		DistributorSecret:    distributor.Seed(),
		DestinationPK:        recipient,
	}, nil
}

func (s *Certificates) fail(step, recipient string, err error) error {
	s.logger.Error("Certificate service: mint failed",
		"step", step,
		"recipient", recipient,
		"error", err)
	return &model.MintError{Step: step, Err: err}
}

func shortID(id string) string {
	if len(id) > 6 {
		return id[:6]
	}
	return id
}
