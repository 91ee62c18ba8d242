package handlers

import (
	"errors"
	"net/http"

	"github.com/genmedia-bff/bff/internal/auth"
	"github.com/genmedia-bff/bff/internal/httpresponse"
	"github.com/genmedia-bff/bff/internal/models"
)

// registerRequest is the body of POST /auth/register (spec.md §4.1, §6).
type registerRequest struct {
	VerificationSecret string                 `json:"verification_secret"`
	TenantType         models.TenantType      `json:"tenant_type"`
	TenantIdentifier   string                 `json:"tenant_identifier"`
	DisplayName        string                 `json:"display_name"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if _, err := decodeJSON(r, &req); err != nil {
		writeValidationErr(w, asValidationError(err))
		return
	}

	result, err := h.Auth.Register(r.Context(), req.VerificationSecret, req.TenantType, req.TenantIdentifier, req.DisplayName, req.Metadata)
	if err != nil {
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			httpresponse.WriteUnauthorized(w, authErr.Message)
			return
		}
		if errors.Is(err, auth.ErrValidation) {
			writeValidationErr(w, newValidationError(err.Error(), nil))
			return
		}
		httpresponse.WriteInternalErrorWithLog(w, "registration failed", err, h.Logger)
		return
	}

	httpresponse.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"api_key":     result.APIKey,
		"tenant_id":   result.TenantID,
		"tenant_type": result.TenantType,
		"message":     "registration successful",
	})
}

// Health handles GET /health and GET / (spec.md §6, both public).
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// AuthHealth handles GET /auth/health (spec.md §6, public).
func (h *Handler) AuthHealth(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "component": "auth"})
}
