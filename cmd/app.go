package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/stellar/go/keypair"

	"github.com/dtroode/househelp-server/internal/config"
	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/ledger/horizon"
	memledger "github.com/dtroode/househelp-server/internal/ledger/memory"
	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/metrics"
	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/queue"
	"github.com/dtroode/househelp-server/internal/repository/postgres"
	"github.com/dtroode/househelp-server/internal/service"
	memstore "github.com/dtroode/househelp-server/internal/storage/memory"
	miniostore "github.com/dtroode/househelp-server/internal/storage/minio"
	"github.com/dtroode/househelp-server/internal/storage/pinata"
)

const outboundTimeout = 30 * time.Second

// app holds the long-lived dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	client ledger.Client
	funder ledger.Funder
	signer *keypair.Full
	blobs  model.BlobStore
	db     *postgres.Connection

	queue    *queue.Queue
	platform *service.Platform
	anchor   *service.Anchor
	index    *service.Index
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel, logger.WithJSON(cfg.LogJSON))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{cfg: cfg, logger: log, registry: reg, metrics: metrics.New(reg)}

	if err := a.initLedger(ctx); err != nil {
		return nil, err
	}
	if err := a.initBlobs(ctx); err != nil {
		return nil, err
	}

	var journal model.AnchorJournal
	if cfg.Database.DSN != "" {
		a.db, err = postgres.NewConection(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize anchor journal: %w", err)
		}
		journal = postgres.NewAnchorJournalRepository(a.db)
	}

	a.queue, err = queue.New(log, queue.WithObserver(a.metrics))
	if err != nil {
		return nil, err
	}
	a.platform = service.NewPlatform(a.client, a.queue, a.signer, cfg.Stellar.TxTimeout, log)
	a.anchor = service.NewAnchor(a.blobs, a.platform, journal, a.metrics, log)
	a.index = service.NewIndex(a.client, a.blobs, cfg.IndexFetchConcurrency, a.metrics, log)

	return a, nil
}

func (a *app) initLedger(ctx context.Context) error {
	cfg := a.cfg.Stellar

	if cfg.PlatformSecret != "" {
		signer, err := keypair.ParseFull(cfg.PlatformSecret)
		if err != nil {
			return fmt.Errorf("failed to parse platform secret: %w", err)
		}
		a.signer = signer
	}

	switch cfg.Backend {
	case config.BackendHorizon:
		if a.signer == nil {
			return fmt.Errorf("STELLAR_PLATFORM_SECRET is required for the horizon backend")
		}
		httpClient := &http.Client{Timeout: outboundTimeout}
		a.client = horizon.NewClient(cfg.HorizonURL, cfg.NetworkPassphrase, httpClient)
		a.funder = horizon.NewFriendbot(cfg.FriendbotURL, httpClient)
	default:
		mem := memledger.New()
		a.client, a.funder = mem, mem
		if a.signer == nil {
			signer, err := keypair.Random()
			if err != nil {
				return fmt.Errorf("failed to generate platform keypair: %w", err)
			}
			a.signer = signer
		}
		if err := mem.Fund(ctx, a.signer.Address()); err != nil {
			return fmt.Errorf("failed to fund platform account: %w", err)
		}
		a.logger.Warn("using in-memory ledger, anchored records are lost on exit", "platform", a.signer.Address())
	}
	return nil
}

func (a *app) initBlobs(ctx context.Context) error {
	switch a.cfg.BlobBackend {
	case config.BlobMinio:
		cfg := a.cfg.Storage
		minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to create minio client: %w", err)
		}
		store, err := miniostore.NewClient(ctx, minioClient, cfg.Bucket)
		if err != nil {
			return fmt.Errorf("failed to initialize blob store: %w", err)
		}
		a.blobs = store
	case config.BlobPinata:
		cfg := a.cfg.Pinata
		a.blobs = pinata.NewClient(cfg.APIURL, cfg.GatewayURL, cfg.JWT, &http.Client{Timeout: outboundTimeout})
	default:
		a.blobs = memstore.New()
	}
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
}
