package handler

import (
	"errors"
	"net/http"

	"github.com/reunitehq/reunite-api/services/account-service/internal/payload"
	"github.com/reunitehq/reunite-api/services/account-service/internal/usecase"
)

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req payload.ResendVerificationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.verificationUsecase.RequestVerification(r.Context(), req.Email); err != nil {
		h.logger.Error().Err(err).Msg("failed to resend verification email")
		h.respondError(w, http.StatusInternalServerError, codeUpstreamError, "something went wrong")
		return
	}

	h.respondJSON(w, http.StatusOK, payload.SuccessResponse{Success: true})
}

func (h *Handler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID := r.URL.Query().Get("user_id")
	if token == "" || userID == "" {
		h.redirectWith(w, r, "error", codeValidationError)
		return
	}

	err := h.verificationUsecase.ConfirmVerification(r.Context(), userID, token)
	if err != nil && !errors.Is(err, usecase.ErrAlreadyCompleted) {
		h.logger.Error().Err(err).Str("profile_id", userID).Msg("failed to confirm verification")
		h.redirectWith(w, r, "error", flowErrorCode(err))
		return
	}

	h.redirectWith(w, r, "email_verified", "true")
}
