package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/reunitehq/reunite-api/services/account-service/internal/usecase"
	"github.com/reunitehq/reunite-api/shared/security"
)

// Machine-checkable reason codes carried by error responses and redirect
// query parameters.
const (
	codeValidationError    = "validation_error"
	codeInvalidCredentials = "invalid_credentials"
	codeEmailTaken         = "email_taken"
	codeTokenNotFound      = "token_not_found"
	codeInvalidToken       = "invalid_token"
	codeTokenExpired       = "token_expired"
	codeNotFound           = "not_found"
	codeForbidden          = "forbidden"
	codeRateLimited        = "rate_limited"
	codeUpstreamError      = "upstream_error"
)

type errorBody struct {
	Code           string            `json:"code"`
	Message        string            `json:"message"`
	Fields         map[string]string `json:"fields,omitempty"`
	HoursRemaining *int              `json:"hoursRemaining,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response body")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func (h *Handler) respondFieldErrors(w http.ResponseWriter, fields map[string]string) {
	h.respondJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
		Code:    codeValidationError,
		Message: "invalid request payload",
		Fields:  fields,
	}})
}

// respondFlowError maps a usecase error onto the error taxonomy.
func (h *Handler) respondFlowError(w http.ResponseWriter, err error) {
	var policyErr *security.PolicyError
	var rateErr *usecase.RateLimitedError

	switch {
	case errors.As(err, &policyErr):
		h.respondFieldErrors(w, map[string]string{policyErr.Field: policyErr.Reason})
	case errors.As(err, &rateErr):
		hours := rateErr.HoursRemaining
		h.respondJSON(w, http.StatusTooManyRequests, errorResponse{Error: errorBody{
			Code:           codeRateLimited,
			Message:        rateErr.Error(),
			HoursRemaining: &hours,
		}})
	case errors.Is(err, usecase.ErrTokenNotFound):
		h.respondError(w, http.StatusBadRequest, codeTokenNotFound, "token not found")
	case errors.Is(err, usecase.ErrTokenMismatch):
		h.respondError(w, http.StatusBadRequest, codeInvalidToken, "invalid token")
	case errors.Is(err, usecase.ErrTokenExpired):
		h.respondError(w, http.StatusBadRequest, codeTokenExpired, "token has expired")
	case errors.Is(err, usecase.ErrEmailTaken), errors.Is(err, usecase.ErrUserAlreadyExists):
		h.respondError(w, http.StatusBadRequest, codeEmailTaken, "email already in use")
	case errors.Is(err, usecase.ErrInvalidCredentials):
		h.respondError(w, http.StatusUnauthorized, codeInvalidCredentials, "invalid credentials")
	case errors.Is(err, usecase.ErrNotProfileOwner):
		h.respondError(w, http.StatusForbidden, codeForbidden, "profile does not belong to this session")
	case errors.Is(err, usecase.ErrProfileNotFound):
		h.respondError(w, http.StatusNotFound, codeNotFound, "profile not found")
	default:
		h.logger.Error().Err(err).Msg("request failed")
		h.respondError(w, http.StatusInternalServerError, codeUpstreamError, "something went wrong")
	}
}

// flowErrorCode maps a usecase error onto a redirect reason code.
func flowErrorCode(err error) string {
	switch {
	case errors.Is(err, usecase.ErrTokenNotFound):
		return codeTokenNotFound
	case errors.Is(err, usecase.ErrTokenMismatch):
		return codeInvalidToken
	case errors.Is(err, usecase.ErrTokenExpired):
		return codeTokenExpired
	default:
		return codeUpstreamError
	}
}

// redirectWith sends a 302 to the app with a single query parameter appended.
func (h *Handler) redirectWith(w http.ResponseWriter, r *http.Request, key, value string) {
	target, err := url.Parse(h.cfg.AppBaseURL)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, codeUpstreamError, "invalid app base url")
		return
	}

	q := target.Query()
	q.Set(key, value)
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
		return false
	}

	if fields := h.validator.Validate(dst); fields != nil {
		h.respondFieldErrors(w, fields)
		return false
	}

	return true
}
