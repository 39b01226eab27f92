package handler

import (
	"net/http"

	"github.com/reunitehq/reunite-api/services/account-service/internal/payload"
)

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req payload.ForgotPasswordRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.passwordResetUsecase.RequestReset(r.Context(), req.Email); err != nil {
		h.logger.Error().Err(err).Msg("failed to request password reset")
		h.respondError(w, http.StatusInternalServerError, codeUpstreamError, "something went wrong")
		return
	}

	h.respondJSON(w, http.StatusOK, payload.SuccessResponse{Success: true})
}

func (h *Handler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID := r.URL.Query().Get("user_id")
	if token == "" || userID == "" {
		h.respondJSON(w, http.StatusOK, payload.ValidateTokenResponse{
			Valid: false,
			Error: codeValidationError,
		})
		return
	}

	if err := h.passwordResetUsecase.ValidateResetToken(r.Context(), userID, token); err != nil {
		h.respondJSON(w, http.StatusOK, payload.ValidateTokenResponse{
			Valid: false,
			Error: flowErrorCode(err),
		})
		return
	}

	h.respondJSON(w, http.StatusOK, payload.ValidateTokenResponse{Valid: true})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req payload.ResetPasswordRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	err := h.passwordResetUsecase.ConfirmReset(r.Context(), req.UserID, req.Token, req.NewPassword)
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, payload.SuccessResponse{Success: true})
}
