package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shindig/internal/middleware"
	"github.com/dukerupert/shindig/internal/service"
)

// invalidLinkMsg is the single message returned for every token failure.
// The precise cause (expired, consumed, wrong type) is logged, never shown.
const invalidLinkMsg = "invalid or expired link"

type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type emailRequest struct {
	Email string `json:"email"`
}

// RequestMagicLink issues a login link. The response is identical whether or
// not the email belongs to a known person, to prevent enumeration.
func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	err := h.auth.RequestMagicLink(req.Email, middleware.RealIP(r), r.UserAgent())
	if errors.Is(err, service.ErrRateLimited) {
		writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
		return
	}
	if err != nil {
		h.logger.Error("request magic link", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send link")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "check your email"})
}

// VerifyMagicLink consumes a login token and returns the authenticated person.
func (h *AuthHandler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	person, err := h.auth.VerifyMagicLink(token)
	if err != nil {
		h.logger.Warn("magic link verify failed", "error", err)
		writeError(w, http.StatusUnauthorized, invalidLinkMsg)
		return
	}

	writeJSON(w, http.StatusOK, person)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	person, err := h.auth.PasswordLogin(strings.TrimSpace(req.Email), req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		h.logger.Error("password login", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, person)
}

// RequestPasswordReset mirrors RequestMagicLink's enumeration-safe behavior.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	err := h.auth.RequestPasswordReset(req.Email, middleware.RealIP(r), r.UserAgent())
	if errors.Is(err, service.ErrRateLimited) {
		writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
		return
	}
	if err != nil {
		h.logger.Error("request password reset", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send link")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "check your email"})
}

// CheckPasswordReset validates a reset token without consuming it, so the
// reset form can reject a dead link before the user types a new password.
func (h *AuthHandler) CheckPasswordReset(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.auth.PeekPasswordReset(token); err != nil {
		h.logger.Warn("password reset peek failed", "error", err)
		writeError(w, http.StatusUnauthorized, invalidLinkMsg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "valid"})
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AuthHandler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	person, err := h.auth.CompletePasswordReset(req.Token, req.Password)
	if err != nil {
		h.logger.Warn("password reset failed", "error", err)
		writeError(w, http.StatusUnauthorized, invalidLinkMsg)
		return
	}

	writeJSON(w, http.StatusOK, person)
}
