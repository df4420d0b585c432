package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/partsdesk/parts-broker/internal/ranking"
)

type SelectWinnerRequest struct {
	OrderItemID         uuid.UUID        `json:"order_item_id" validate:"required"`
	AdminPrice          *decimal.Decimal `json:"admin_price,omitempty"`
	AdminComment        string           `json:"admin_comment"`
	ClientDeliveryWeeks *int             `json:"client_delivery_weeks,omitempty"`
}

type ResetWinnerRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id" validate:"required"`
}

type RankingHandler struct {
	selector ranking.Selector
	validate *validator.Validate
}

func NewRankingHandler(selector ranking.Selector) *RankingHandler {
	return &RankingHandler{
		selector: selector,
		validate: validator.New(),
	}
}

func (h *RankingHandler) RegisterRoutes(router chi.Router) {
	router.Post("/offer-items/{id}/winner", h.handleSelectWinner)
	router.Delete("/offer-items/{id}/winner", h.handleResetWinner)
}

func (h *RankingHandler) handleSelectWinner(w http.ResponseWriter, r *http.Request) {
	offerItemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload SelectWinnerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	err = h.selector.SelectWinner(r.Context(), ranking.SelectWinnerParams{
		OfferItemID:         offerItemID,
		OrderItemID:         requestPayload.OrderItemID,
		AdminPrice:          requestPayload.AdminPrice,
		AdminComment:        requestPayload.AdminComment,
		ClientDeliveryWeeks: requestPayload.ClientDeliveryWeeks,
	})
	if err != nil {
		log.Error().Err(err).Stringer("offer_item_id", offerItemID).Msg("Failed to select winner")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to select winner")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RankingHandler) handleResetWinner(w http.ResponseWriter, r *http.Request) {
	offerItemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload ResetWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	if err := h.selector.ResetWinner(r.Context(), offerItemID, requestPayload.OrderItemID); err != nil {
		log.Error().Err(err).Stringer("offer_item_id", offerItemID).Msg("Failed to reset winner")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to reset winner")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
