package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/service"
)

// CatalogService answers read queries.
type CatalogService interface {
	Employees(ctx context.Context) ([]model.PublicUser, error)
	Employers(ctx context.Context) ([]model.PublicUser, error)
	Employee(ctx context.Context, id string) (model.PublicUser, error)
	WorkHistory(ctx context.Context) ([]model.WorkHistoryRecord, error)
	EmployeeWorkHistory(ctx context.Context, id string) ([]model.WorkHistoryRecord, error)
	Attestations(ctx context.Context) ([]model.AttestationRecord, error)
	NFTs(ctx context.Context, id string) ([]model.NFT, error)
	Profile(ctx context.Context, id string) (service.Profile, error)
}

// Catalog serves the reconstructed collections.
type Catalog struct {
	catalog CatalogService
	logger  *logger.Logger
}

func NewCatalog(catalog CatalogService, logger *logger.Logger) *Catalog {
	return &Catalog{catalog: catalog, logger: logger}
}

func (h *Catalog) ListEmployees(w http.ResponseWriter, r *http.Request) {
	v, err := h.catalog.Employees(r.Context())
	h.respond(w, "list employees", v, err)
}

func (h *Catalog) ListEmployers(w http.ResponseWriter, r *http.Request) {
	v, err := h.catalog.Employers(r.Context())
	h.respond(w, "list employers", v, err)
}

func (h *Catalog) GetEmployee(w http.ResponseWriter, r *http.Request) {
	v, err := h.catalog.Employee(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "get employee", v, err)
}

func (h *Catalog) ListWorkHistory(w http.ResponseWriter, r *http.Request) {
	v, err := h.catalog.WorkHistory(r.Context())
	h.respond(w, "list work history", v, err)
}

func (h *Catalog) EmployeeWorkHistory(w http.ResponseWriter, r *http.Request) {
	v, err := h.catalog.EmployeeWorkHistory(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "employee work history", v, err)
}

func (h *Catalog) ListAttestations(w http.ResponseWriter, r *http.Request) {
	v, err := h.catalog.Attestations(r.Context())
	h.respond(w, "list attestations", v, err)
}

func (h *Catalog) EmployeeNFTs(w http.ResponseWriter, r *http.Request) {
	v, err := h.catalog.NFTs(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "employee nfts", v, err)
}

func (h *Catalog) EmployeeProfile(w http.ResponseWriter, r *http.Request) {
	v, err := h.catalog.Profile(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "employee profile", v, err)
}

// respond writes a 200 with v or maps err.
func (h *Catalog) respond(w http.ResponseWriter, op string, v any, err error) {
	if err != nil {
		h.logger.Error("Catalog handler: request failed",
			"operation", op,
			"error", err.Error())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
