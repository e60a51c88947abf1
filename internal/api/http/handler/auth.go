package handler

import (
	"context"
	"net/http"

	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/service"
)

// AuthService registers and logs in users.
type AuthService interface {
	Register(ctx context.Context, reg service.Registration) (service.Session, error)
	Login(ctx context.Context, phone, pin string) (service.Session, error)
}

// Auth handles registration and login.
type Auth struct {
	authService AuthService
	logger      *logger.Logger
}

func NewAuth(authService AuthService, logger *logger.Logger) *Auth {
	return &Auth{authService: authService, logger: logger}
}

type loginRequest struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
}

// Register handles POST /api/auth/register.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req service.Registration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.authService.Register(r.Context(), req)
	if err != nil {
		h.logger.Info("Auth handler: registration failed",
			"phone", req.Phone,
			"error", err.Error())
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// Login handles POST /api/auth/login.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.authService.Login(r.Context(), req.Phone, req.PIN)
	if err != nil {
		h.logger.Info("Auth handler: login failed",
			"phone", req.Phone,
			"error", err.Error())
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}
