package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/metrics"
	"github.com/dtroode/househelp-server/internal/model"
)

// touchAmount is paid to the destination account alongside every data entry write.
const touchAmount = "0.0000001"

const tracerName = "github.com/dtroode/househelp-server/internal/service"

// Anchor outcomes reported to metrics.
const (
	anchorAnchored     = "anchored"
	anchorUploadFailed = "upload_failed"
	anchorLedgerFailed = "ledger_failed"
)

// StagedRecord is a record uploaded to the blob store but not yet pointed to.
type StagedRecord struct {
	Namespace model.Namespace
	CID       string
	stagedAt  time.Time
}

// Anchor uploads records and writes their CIDs into the platform account.
type Anchor struct {
	blobs    model.BlobStore
	platform *Platform
	journal  model.AnchorJournal
	metrics  *metrics.Metrics
	logger   *logger.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewAnchor(
	blobs model.BlobStore,
	platform *Platform,
	journal model.AnchorJournal,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Anchor {
	return &Anchor{
		blobs:    blobs,
		platform: platform,
		journal:  journal,
		metrics:  metrics,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

// Anchor uploads record and points a fresh key in ns at it. destination
// receives the touch payment bundled with the data entry write.
func (s *Anchor) Anchor(ctx context.Context, destination string, ns model.Namespace, record any) (model.AnchorReceipt, error) {
	staged, err := s.Stage(ctx, ns, record)
	if err != nil {
		return model.AnchorReceipt{}, err
	}
	return s.Commit(ctx, destination, staged)
}

// Stage uploads record wrapped as a one-element collection.
func (s *Anchor) Stage(ctx context.Context, ns model.Namespace, record any) (StagedRecord, error) {
	ctx, span := s.tracer.Start(ctx, "anchor.stage", trace.WithAttributes(attribute.String("namespace", ns.Name)))
	defer span.End()

	cid, err := s.blobs.Upload(ctx, []any{record}, ns.Prefix+"record")
	if err != nil {
		s.logger.Error("Anchor service: failed to upload record",
			"namespace", ns.Name,
			"error", err)
		s.metrics.IncrementAnchor(ns.Name, anchorUploadFailed)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "upload failed")
		return StagedRecord{}, &model.AnchorError{Namespace: ns.Name, Err: err}
	}

	if len(cid) > model.MaxDataEntrySize {
		s.logger.Error("Anchor service: blob store returned a cid longer than a data entry",
			"namespace", ns.Name,
			"cid", cid)
		return StagedRecord{}, &model.AnchorError{Namespace: ns.Name, CID: cid, Err: model.ErrCIDTooLong}
	}

	span.SetAttributes(attribute.String("cid", cid))
	return StagedRecord{Namespace: ns, CID: cid, stagedAt: s.now()}, nil
}

// Commit writes the pointer for staged through the platform queue. On failure
// the blob stays uploaded without a pointer and the error carries its CID.
func (s *Anchor) Commit(ctx context.Context, destination string, staged StagedRecord) (model.AnchorReceipt, error) {
	ns := staged.Namespace
	ctx, span := s.tracer.Start(ctx, "anchor.commit", trace.WithAttributes(
		attribute.String("namespace", ns.Name),
		attribute.String("cid", staged.CID),
	))
	defer span.End()

	at := staged.stagedAt
	if at.IsZero() {
		at = s.now()
	}

	receipt, err := s.platform.Submit(ctx, func(seq int64) (string, []ledger.Operation, error) {
		key, err := ns.Key(at, seq)
		if err != nil {
			return "", nil, err
		}
		return key, []ledger.Operation{
			ledger.Payment{Destination: destination, Asset: ledger.NativeAsset(), Amount: touchAmount},
			ledger.ManageData{Name: key, Value: []byte(staged.CID)},
		}, nil
	})
	if err != nil {
		s.logger.Error("Anchor service: failed to write pointer, blob left orphaned",
			"namespace", ns.Name,
			"cid", staged.CID,
			"error", err)
		s.metrics.IncrementAnchor(ns.Name, anchorLedgerFailed)
		s.record(ctx, model.AnchorEntry{
			Namespace: ns.Name,
			Account:   destination,
			CID:       staged.CID,
			Status:    model.AnchorStatusOrphaned,
			Error:     err.Error(),
		})
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "ledger write failed")
		return model.AnchorReceipt{}, &model.AnchorError{Namespace: ns.Name, CID: staged.CID, Err: err}
	}

	key, err := ns.Key(at, receipt.Sequence)
	if err != nil {
		return model.AnchorReceipt{}, &model.AnchorError{Namespace: ns.Name, CID: staged.CID, Err: err}
	}

	s.logger.Info("Anchor service: record anchored",
		"namespace", ns.Name,
		"key", key,
		"cid", staged.CID,
		"hash", receipt.Hash)
	s.metrics.IncrementAnchor(ns.Name, anchorAnchored)
	s.record(ctx, model.AnchorEntry{
		Namespace: ns.Name,
		Account:   destination,
		Key:       key,
		CID:       staged.CID,
		TxHash:    receipt.Hash,
		Status:    model.AnchorStatusAnchored,
	})

	return model.AnchorReceipt{
		Key:             key,
		CID:             staged.CID,
		TxHash:          receipt.Hash,
		Ledger:          receipt.Ledger,
		LedgerCloseTime: receipt.LedgerCloseTime,
	}, nil
}

func (s *Anchor) record(ctx context.Context, entry model.AnchorEntry) {
	if s.journal == nil {
		return
	}
	entry.CreatedAt = s.now().UTC()
	if err := s.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("Anchor service: failed to journal anchor outcome",
			"cid", entry.CID,
			"status", entry.Status,
			"error", fmt.Sprint(err))
	}
}
