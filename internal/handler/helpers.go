package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/partsdesk/parts-broker/internal/brand"
	"github.com/partsdesk/parts-broker/internal/offer"
	"github.com/partsdesk/parts-broker/internal/order"
	"github.com/partsdesk/parts-broker/internal/ranking"
	"github.com/partsdesk/parts-broker/internal/rates"
	"github.com/partsdesk/parts-broker/internal/user"
	"github.com/partsdesk/parts-broker/internal/workflow"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
	return details
}

// respondValidationError renders a validator failure as the standard
// 400 payload, falling back to 500 for non-validation error types.
func respondValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: formatValidationErrors(validationErrors),
		})
		return
	}
	log.Error().Err(err).Msg("Unexpected error type during validation")
	respondWithError(w, http.StatusInternalServerError, "Internal validation error")
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, offer.ErrOfferNotFound),
		errors.Is(err, ranking.ErrOfferItemNotFound),
		errors.Is(err, brand.ErrNotFound),
		errors.Is(err, rates.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, offer.ErrDuplicateOffer),
		errors.Is(err, brand.ErrDuplicate),
		errors.Is(err, workflow.ErrConfirmationRequired):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, order.ErrNoItems):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
