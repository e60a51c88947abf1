package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/model"
)

// certificateBalance is the balance of a held completion certificate.
const certificateBalance = "1.0000000"

// Profile is everything shown on a worker page.
type Profile struct {
	Employee    model.PublicUser          `json:"employee"`
	WorkHistory []model.WorkHistoryRecord `json:"workHistory"`
	NFTs        []model.NFT               `json:"nfts"`
}

// Catalog answers read queries over users, work history and certificates.
type Catalog struct {
	client   ledger.Client
	platform *Platform
	index    *Index
	logger   *logger.Logger
}

func NewCatalog(client ledger.Client, platform *Platform, index *Index, logger *logger.Logger) *Catalog {
	return &Catalog{
		client:   client,
		platform: platform,
		index:    index,
		logger:   logger,
	}
}

// Employees lists registered workers, oldest first.
func (s *Catalog) Employees(ctx context.Context) ([]model.PublicUser, error) {
	return s.users(ctx, model.NamespaceEmployees, model.RoleWorker)
}

// Employers lists registered employers, oldest first.
func (s *Catalog) Employers(ctx context.Context) ([]model.PublicUser, error) {
	return s.users(ctx, model.NamespaceEmployers, model.RoleEmployer)
}

func (s *Catalog) users(ctx context.Context, ns model.Namespace, role string) ([]model.PublicUser, error) {
	listing, err := s.index.ListNamespace(ctx, s.platform.Address(), ns, Ascending)
	if err != nil {
		return nil, err
	}
	records := Decode[model.UserRecord](s.index, &listing)
	out := make([]model.PublicUser, 0, len(records))
	for _, u := range records {
		if u.Role != role {
			continue
		}
		out = append(out, u.Public())
	}
	return out, nil
}

// Employee finds a worker by public key.
func (s *Catalog) Employee(ctx context.Context, id string) (model.PublicUser, error) {
	employees, err := s.Employees(ctx)
	if err != nil {
		return model.PublicUser{}, err
	}
	// Later registrations shadow earlier ones.
	for i := len(employees) - 1; i >= 0; i-- {
		if employees[i].PublicKey == id {
			return employees[i], nil
		}
	}
	return model.PublicUser{}, fmt.Errorf("employee %s: %w", id, model.ErrNotFound)
}

// WorkHistory lists every work history entry, oldest first.
func (s *Catalog) WorkHistory(ctx context.Context) ([]model.WorkHistoryRecord, error) {
	listing, err := s.index.ListNamespace(ctx, s.platform.Address(), model.NamespaceWorkHistory, Ascending)
	if err != nil {
		return nil, err
	}
	return Decode[model.WorkHistoryRecord](s.index, &listing), nil
}

// EmployeeWorkHistory lists the entries of one worker.
func (s *Catalog) EmployeeWorkHistory(ctx context.Context, id string) ([]model.WorkHistoryRecord, error) {
	all, err := s.WorkHistory(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.WorkHistoryRecord, 0)
	for _, wh := range all {
		if wh.Employee == id {
			out = append(out, wh)
		}
	}
	return out, nil
}

// Attestations lists every anchored attestation, including the legacy namespace.
func (s *Catalog) Attestations(ctx context.Context) ([]model.AttestationRecord, error) {
	var out []model.AttestationRecord
	for _, ns := range []model.Namespace{model.NamespaceLegacyAttestations, model.NamespaceAttestations} {
		listing, err := s.index.ListNamespace(ctx, s.platform.Address(), ns, Ascending)
		if err != nil {
			return nil, err
		}
		for _, a := range Decode[model.AttestationRecord](s.index, &listing) {
			out = append(out, a.Normalize())
		}
	}
	if out == nil {
		out = []model.AttestationRecord{}
	}
	return out, nil
}

// NFTs lists the single-unit tokens held by id. An unknown account holds none.
func (s *Catalog) NFTs(ctx context.Context, id string) ([]model.NFT, error) {
	snap, err := s.client.LoadAccount(ctx, id)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return []model.NFT{}, nil
	}
	if err != nil {
		s.logger.Error("Catalog service: failed to load account balances",
			"account", id,
			"error", err)
		return nil, fmt.Errorf("failed to load account %s: %w", id, err)
	}

	nfts := make([]model.NFT, 0)
	for _, b := range snap.Balances {
		if b.AssetType == ledger.AssetTypeNative || b.Amount != certificateBalance {
			continue
		}
		nfts = append(nfts, model.NFT{AssetType: b.AssetType, Balance: b.Amount, AssetCode: b.AssetCode})
	}
	return nfts, nil
}

// Profile gathers a worker, its work history and its certificates concurrently.
func (s *Catalog) Profile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p.Employee, err = s.Employee(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		p.WorkHistory, err = s.EmployeeWorkHistory(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		p.NFTs, err = s.NFTs(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Profile{}, err
	}
	return p, nil
}
