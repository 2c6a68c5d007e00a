// Package handler exposes the core services over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"promocode-service/internal/policy"
	"promocode-service/internal/service"
)

// envelope is the standard success response body.
type envelope struct {
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	StatusCode int    `json:"status_code"`
}

// errorEnvelope is the standard error response body.
type errorEnvelope struct {
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{
		Message:    message,
		Data:       data,
		StatusCode: status,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string, errs any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorEnvelope{
		Message: message,
		Errors:  errs,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// respondServiceError maps service-layer errors onto the HTTP status
// taxonomy: 422 validation, 404 unknown code, 400 business rejection,
// 500 everything else.
func respondServiceError(w http.ResponseWriter, err error) {
	var verr *policy.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusUnprocessableEntity, "Validation failed.", verr.Fields)
	case errors.Is(err, service.ErrCodeInUse),
		errors.Is(err, service.ErrEmailInUse),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidBulkCount):
		respondError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, service.ErrCodeNotFound), errors.Is(err, service.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrAlreadyRedeemed),
		errors.Is(err, service.ErrLimitReached),
		errors.Is(err, service.ErrPointsExhausted),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrCodeSpaceBusy):
		respondError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err.Error(), nil)
	default:
		log.Error().Err(err).Msg("Unhandled service error")
		respondError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
