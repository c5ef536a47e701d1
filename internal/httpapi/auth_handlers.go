package httpapi

import (
	"net/http"
	"strings"
	"time"

	"agendafit.app/internal/audit"
	"agendafit.app/internal/checkin"
)

type tokenRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Role   string `json:"role" validate:"required,oneof=FRANQUIA FRANQUEADORA ADMIN SUPER_ADMIN TEACHER STUDENT"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAuthToken issues a signed token for any identity. Only registered
// when the development issuer is enabled.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if a.tokens == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeInternal, "token issuer not configured")
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Role = string(checkin.ParseRole(req.Role))
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, validationMessage(err))
		return
	}

	token, expiresAt, err := a.tokens.GenerateToken(req.UserID, req.Role, a.issuerTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, codeInternal, "token generation failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user":       req.UserID,
		"role":       req.Role,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
