package handler

import (
	"errors"
	"net/http"

	"github.com/reunitehq/reunite-api/services/account-service/internal/payload"
	"github.com/reunitehq/reunite-api/services/account-service/internal/usecase"
	"github.com/reunitehq/reunite-api/shared/middleware"
)

func (h *Handler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req payload.ChangeEmailRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, codeInvalidCredentials, "missing session token")
		return
	}
	callerID, _ := claims["user_id"].(string)

	if err := h.emailChangeUsecase.RequestChange(r.Context(), callerID, req.UserID, req.NewEmail); err != nil {
		if errors.Is(err, usecase.ErrNotProfileOwner) {
			h.logger.Warn().Str("credential_user_id", callerID).Str("profile_id", req.UserID).
				Msg("email change request rejected for a profile the session does not own")
		}
		h.respondFlowError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, payload.SuccessResponse{Success: true})
}

func (h *Handler) ConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID := r.URL.Query().Get("user_id")
	if token == "" || userID == "" {
		h.redirectWith(w, r, "error", codeValidationError)
		return
	}

	if err := h.emailChangeUsecase.ConfirmChange(r.Context(), userID, token); err != nil {
		h.logger.Error().Err(err).Str("profile_id", userID).Msg("failed to confirm email change")
		h.redirectWith(w, r, "error", flowErrorCode(err))
		return
	}

	h.redirectWith(w, r, "email_changed", "true")
}
