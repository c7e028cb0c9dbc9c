package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and error code.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Error().Str("error_code", code).Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps a service error onto an HTTP status and error body.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var vErr *model.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, vErr.Error(), logger)
		return
	}

	var dErr *model.DomainError
	if errors.As(err, &dErr) {
		writeError(w, statusForCode(dErr.Code), dErr.Code, dErr.Message, logger)
		return
	}

	writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
}

// statusForCode maps stable domain error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeCouponNotFound:
		return http.StatusNotFound
	case model.ErrCodeCouponExists, model.ErrCodeConcurrencyConflict:
		return http.StatusConflict
	case model.ErrCodeCouponInvalid:
		return http.StatusBadRequest
	case model.ErrCodeGlobalLimitReached,
		model.ErrCodeUserLimitReached,
		model.ErrCodeBelowMinimumOrder,
		model.ErrCodeCategoryMismatch,
		model.ErrCodeNotEligible:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
