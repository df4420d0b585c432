package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/partsdesk/parts-broker/internal/offer"
)

type OfferItemRequest struct {
	OrderItemID   uuid.UUID       `json:"order_item_id" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Quantity      int             `json:"quantity" validate:"required,gt=0"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency" validate:"omitempty,oneof=RUB CNY USD"`
	DeliveryWeeks int             `json:"delivery_weeks" validate:"gte=0"`
	SupplierSKU   string          `json:"supplier_sku"`
}

type CreateOfferRequest struct {
	Items []OfferItemRequest `json:"items" validate:"required,min=1,dive"`
}

type EditOfferRequest struct {
	Items []OfferItemRequest `json:"items" validate:"required,min=1,dive"`
}

// LockConflictResponse tells the client who holds the edit lease.
type LockConflictResponse struct {
	Error  string           `json:"error"`
	Holder offer.LockHolder `json:"holder"`
}

type OfferHandler struct {
	service  offer.Service
	validate *validator.Validate
}

func NewOfferHandler(service offer.Service) *OfferHandler {
	return &OfferHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *OfferHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders/{id}/offers", h.handleCreateOffer)
	router.Get("/orders/{id}/offers", h.handleListOffers)
	router.Get("/offers/{id}", h.handleGetOffer)
	router.Put("/offers/{id}", h.handleEditOffer)
	router.Post("/offers/{id}/refuse", h.handleRefuseOffer)
	router.Post("/offers/{id}/lock", h.handleLock)
	router.Delete("/offers/{id}/lock", h.handleUnlock)
}

func (h *OfferHandler) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload CreateOfferRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Error().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	u := CurrentUser(r.Context())
	if u == nil {
		respondWithError(w, http.StatusUnauthorized, "Missing authorization token")
		return
	}

	o := offer.Offer{
		OrderID:      orderID,
		SupplierID:   u.ID,
		SupplierName: u.Name,
		Status:       offer.StatusSubmitted,
		Items:        toOfferItems(requestPayload.Items),
	}

	created, err := h.service.CreateOffer(r.Context(), &o)
	if err != nil {
		if errors.Is(err, offer.ErrDuplicateOffer) {
			respondWithError(w, http.StatusConflict, "Offer for this order already exists")
			return
		}
		log.Error().Err(err).Msg("Failed to create offer via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to create offer")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OfferHandler) handleListOffers(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	offers, err := h.service.ListOffersByOrder(r.Context(), orderID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list offers via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list offers")
		return
	}

	respondWithJSON(w, http.StatusOK, offers)
}

func (h *OfferHandler) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	found, err := h.service.GetOfferByID(r.Context(), offerID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get offer")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *OfferHandler) handleEditOffer(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload EditOfferRequest
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

	u := CurrentUser(r.Context())
	if u == nil {
		respondWithError(w, http.StatusUnauthorized, "Missing authorization token")
		return
	}

	err = h.service.EditOffer(r.Context(), offerID, u.ID, toOfferItems(requestPayload.Items))
	if err != nil {
		var lockErr *offer.LockHeldError
		if errors.As(err, &lockErr) {
			respondWithJSON(w, http.StatusConflict, LockConflictResponse{
				Error:  "Offer is being edited",
				Holder: lockErr.Holder,
			})
			return
		}
		log.Error().Err(err).Msg("Failed to edit offer via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to edit offer")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OfferHandler) handleRefuseOffer(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if err := h.service.RefuseOffer(r.Context(), offerID); err != nil {
		log.Error().Err(err).Msg("Failed to refuse offer via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to refuse offer")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OfferHandler) handleLock(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	u := CurrentUser(r.Context())
	if u == nil {
		respondWithError(w, http.StatusUnauthorized, "Missing authorization token")
		return
	}

	if err := h.service.Lock(r.Context(), offerID, u.ID); err != nil {
		var lockErr *offer.LockHeldError
		if errors.As(err, &lockErr) {
			respondWithJSON(w, http.StatusConflict, LockConflictResponse{
				Error:  "Offer is being edited",
				Holder: lockErr.Holder,
			})
			return
		}
		log.Error().Err(err).Msg("Failed to acquire offer lease")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to lock offer")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OfferHandler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	offerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	u := CurrentUser(r.Context())
	if u == nil {
		respondWithError(w, http.StatusUnauthorized, "Missing authorization token")
		return
	}

	if err := h.service.Unlock(r.Context(), offerID, u.ID); err != nil {
		log.Error().Err(err).Msg("Failed to release offer lease")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to unlock offer")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toOfferItems(items []OfferItemRequest) []offer.Item {
	converted := make([]offer.Item, 0, len(items))
	for _, item := range items {
		converted = append(converted, offer.Item{
			OrderItemID:   item.OrderItemID,
			Name:          item.Name,
			Quantity:      item.Quantity,
			Price:         item.Price,
			Currency:      offer.Currency(item.Currency),
			DeliveryWeeks: item.DeliveryWeeks,
			SupplierSKU:   item.SupplierSKU,
		})
	}
	return converted
}
