package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/service"
)

// AttestationService creates attestations.
type AttestationService interface {
	Create(ctx context.Context, employerID string, req service.AttestationRequest) (service.AttestationResult, error)
}

type Attestations struct {
	attestations   AttestationService
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewAttestations(attestations AttestationService, contextManager model.ContextManager, logger *logger.Logger) *Attestations {
	return &Attestations{attestations: attestations, contextManager: contextManager, logger: logger}
}

// Create handles POST /api/employers/{id}/create-attestation. An
// authenticated caller may only attest as itself.
func (h *Attestations) Create(w http.ResponseWriter, r *http.Request) {
	employerID := chi.URLParam(r, "id")

	if claims, ok := h.contextManager.GetClaimsFromContext(r.Context()); ok && claims.PublicKey != employerID {
		h.logger.Info("Attestation handler: caller attesting for another employer",
			"caller", claims.PublicKey,
			"employer", employerID)
		writeError(w, model.ErrForbidden)
		return
	}

	var req service.AttestationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.attestations.Create(r.Context(), employerID, req)
	if err != nil {
		h.logger.Error("Attestation handler: failed to create attestation",
			"employer", employerID,
			"employee", req.EmployeePK,
			"error", err.Error())
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}
