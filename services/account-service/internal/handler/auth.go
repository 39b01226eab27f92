package handler

import (
	"errors"
	"net/http"

	"github.com/reunitehq/reunite-api/services/account-service/internal/payload"
	"github.com/reunitehq/reunite-api/services/account-service/internal/usecase"
	"github.com/reunitehq/reunite-api/shared/middleware"
	"github.com/reunitehq/reunite-api/shared/utilities"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req payload.RegisterRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ip, userAgent := utilities.RequestMeta(r)
	tokens, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: ip,
		UserAgent: userAgent,
	})
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, payload.TokensResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req payload.LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ip, userAgent := utilities.RequestMeta(r)
	tokens, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: ip,
		UserAgent: userAgent,
	})
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, payload.TokensResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, codeInvalidCredentials, "missing authorization header")
		return
	}

	profile, err := h.authUsecase.CurrentUser(r.Context(), token)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidSession) {
			h.respondError(w, http.StatusUnauthorized, codeInvalidCredentials, "invalid session token")
			return
		}
		h.respondFlowError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, payload.ProfileResponse{
		ID:            profile.ID.Hex(),
		Username:      profile.Username,
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		HasPassword:   profile.HasPassword,
	})
}
