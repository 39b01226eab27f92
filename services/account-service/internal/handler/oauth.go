package handler

import (
	"net/http"
	"time"

	"github.com/reunitehq/reunite-api/shared/utilities"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

func (h *Handler) GoogleRedirect(w http.ResponseWriter, r *http.Request) {
	state, err := h.stateStore.Put(r.Context(), "google", h.cfg.Verification.OAuthStateTTL)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to store oauth state")
		h.respondError(w, http.StatusInternalServerError, codeUpstreamError, "something went wrong")
		return
	}

	http.Redirect(w, r, h.googleProvider.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		h.redirectWith(w, r, "error", providerErr)
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		h.redirectWith(w, r, "error", codeValidationError)
		return
	}

	// The state is one-shot; a replayed callback fails here.
	if _, err := h.stateStore.Take(r.Context(), state); err != nil {
		h.logger.Warn().Err(err).Msg("oauth callback with unknown state")
		h.redirectWith(w, r, "error", "invalid oauth state")
		return
	}

	identity, err := h.googleProvider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Msg("oauth code exchange failed")
		h.redirectWith(w, r, "error", "sign-in failed")
		return
	}

	profile, err := h.accountLinker.LinkOrCreate(r.Context(), identity)
	if err != nil {
		h.logger.Error().Err(err).Str("email", identity.Email).Msg("oauth sign-in failed")
		h.redirectWith(w, r, "error", "sign-in failed")
		return
	}

	ip, userAgent := utilities.RequestMeta(r)
	tokens, err := h.authUsecase.IssueSession(r.Context(), profile.AuthUserID, ip, userAgent)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to issue session after oauth sign-in")
		h.redirectWith(w, r, "error", "sign-in failed")
		return
	}

	h.setSessionCookie(w, accessTokenCookie, tokens.AccessToken, h.cfg.Token.AccessTokenExpiresIn)
	h.setSessionCookie(w, refreshTokenCookie, tokens.RefreshToken, h.cfg.Token.RefreshTokenExpiresIn)

	http.Redirect(w, r, h.cfg.AppBaseURL, http.StatusFound)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
