package service

import (
	"context"
	"time"

	"github.com/stellar/go/strkey"

	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/model"
)

const (
	attestationCompleteMessage = "Attestation, work history and certificate created"
	attestationNoNFTMessage    = "Attestation and work history created; certificate minting failed"
	attestationNoHistory       = "Attestation anchored; work history could not be anchored"
)

// AttestationRequest is the body of an attestation.
type AttestationRequest struct {
	EmployeePK  string `json:"employee_pk"`
	WorkType    string `json:"workType"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
}

func (r AttestationRequest) Validate() error {
	if r.EmployeePK == "" {
		return model.NewValidationError("employee_pk", "is required")
	}
	if !strkey.IsValidEd25519PublicKey(r.EmployeePK) {
		return model.NewValidationError("employee_pk", "is not a valid account id")
	}
	if r.WorkType == "" {
		return model.NewValidationError("workType", "is required")
	}
	if r.StartDate == "" {
		return model.NewValidationError("startDate", "is required")
	}
	return nil
}

// AnchoredAttestation is an attestation with its pointer.
type AnchoredAttestation struct {
	model.AttestationRecord
	CID       string `json:"cid"`
	Key       string `json:"key"`
	StellarTx string `json:"stellarTx"`
}

// AnchoredWorkHistory is a work history entry with its pointer.
type AnchoredWorkHistory struct {
	model.WorkHistoryRecord
	CID       string `json:"cid"`
	Key       string `json:"key"`
	StellarTx string `json:"stellarTx"`
}

// AttestationResult reports the three independent parts of an attestation.
// WorkHistory and NFT are nil when their step failed.
type AttestationResult struct {
	Attestation AnchoredAttestation  `json:"attestation"`
	WorkHistory *AnchoredWorkHistory `json:"workHistory"`
	NFT         *model.Certificate   `json:"nft"`
	Message     string               `json:"message"`
}

// Minter issues completion certificates.
type Minter interface {
	Mint(ctx context.Context, recipient string) (model.Certificate, error)
}

type Attestations struct {
	anchor *Anchor
	minter Minter
	now    func() time.Time
	logger *logger.Logger
}

func NewAttestations(anchor *Anchor, minter Minter, logger *logger.Logger) *Attestations {
	return &Attestations{
		anchor: anchor,
		minter: minter,
		now:    time.Now,
		logger: logger,
	}
}

// Create anchors an attestation by employerID, mints a certificate for the
// worker and anchors the derived work history. Only the attestation itself
// is required to succeed.
func (s *Attestations) Create(ctx context.Context, employerID string, req AttestationRequest) (AttestationResult, error) {
	if err := req.Validate(); err != nil {
		return AttestationResult{}, err
	}

	now := s.now().UTC()
	attestation := model.AttestationRecord{
		Employer:    employerID,
		Employee:    req.EmployeePK,
		WorkType:    req.WorkType,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Description: req.Description,
		Timestamp:   model.NewTime(now),
	}

	stagedAttestation, err := s.anchor.Stage(ctx, model.NamespaceAttestations, attestation)
	if err != nil {
		return AttestationResult{}, err
	}

	var nft *model.Certificate
	cert, err := s.minter.Mint(ctx, req.EmployeePK)
	if err != nil {
		s.logger.Warn("Attestation service: continuing without certificate",
			"employee", req.EmployeePK,
			"error", err)
	} else {
		nft = &cert
	}

	history := model.WorkHistoryRecord{
		Employee:       req.EmployeePK,
		Employer:       employerID,
		Position:       req.WorkType,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Description:    req.Description,
		AttestationCID: stagedAttestation.CID,
		Timestamp:      model.NewTime(now),
		Status:         model.WorkHistoryStatusVerified,
	}
	if nft != nil {
		history.NFTResult = nft.Ref()
	}
	stagedHistory, historyErr := s.anchor.Stage(ctx, model.NamespaceWorkHistory, history)

	attestationReceipt, err := s.anchor.Commit(ctx, req.EmployeePK, stagedAttestation)
	if err != nil {
		return AttestationResult{}, err
	}

	result := AttestationResult{
		Attestation: AnchoredAttestation{
			AttestationRecord: attestation,
			CID:               attestationReceipt.CID,
			Key:               attestationReceipt.Key,
			StellarTx:         attestationReceipt.TxHash,
		},
		NFT: nft,
	}

	if historyErr == nil {
		var historyReceipt model.AnchorReceipt
		historyReceipt, historyErr = s.anchor.Commit(ctx, req.EmployeePK, stagedHistory)
		if historyErr == nil {
			result.WorkHistory = &AnchoredWorkHistory{
				WorkHistoryRecord: history,
				CID:               historyReceipt.CID,
				Key:               historyReceipt.Key,
				StellarTx:         historyReceipt.TxHash,
			}
		}
	}

	switch {
	case historyErr != nil:
		s.logger.Error("Attestation service: work history not anchored",
			"employee", req.EmployeePK,
			"attestation_cid", attestationReceipt.CID,
			"error", historyErr)
		result.Message = attestationNoHistory
	case nft == nil:
		result.Message = attestationNoNFTMessage
	default:
		result.Message = attestationCompleteMessage
	}

	s.logger.Info("Attestation service: attestation created",
		"employer", employerID,
		"employee", req.EmployeePK,
		"key", attestationReceipt.Key,
		"nft", nft != nil,
		"work_history", result.WorkHistory != nil)

	return result, nil
}
