package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-api-verify/internal/application/auth"
	"github.com/go-api-verify/internal/domain"
)

// AuthHandler handles registration and verification endpoints.
type AuthHandler struct {
	svc auth.Service
	log *slog.Logger
}

func NewAuthHandler(svc auth.Service, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{svc: svc, log: log}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}
	if _, err := h.svc.Register(r.Context(), req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: "Check your email to verify your account"})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "token is required")
		return
	}
	next, err := h.svc.VerifyEmail(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{RedirectURL: next})
}

func (h *AuthHandler) SendSMSCode(w http.ResponseWriter, r *http.Request) {
	var req domain.SendSMSCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}
	if err := h.svc.SendSMSCode(r.Context(), req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "SMS verification code sent"})
}

func (h *AuthHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyPhoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}
	next, err := h.svc.VerifyPhone(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Phone number verified successfully", RedirectURL: next})
}
