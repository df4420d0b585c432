package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/partsdesk/parts-broker/internal/ai"
	"github.com/partsdesk/parts-broker/internal/order"
)

type CreateOrderItemRequest struct {
	Name     string `json:"name" validate:"required"`
	Brand    string `json:"brand"`
	Article  string `json:"article"`
	Unit     string `json:"unit"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	ClientName  string                   `json:"client_name" validate:"required"`
	ClientPhone string                   `json:"client_phone"`
	ClientEmail string                   `json:"client_email" validate:"omitempty,email"`
	Address     string                   `json:"address"`
	Deadline    string                   `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Items       []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type ExtractRequest struct {
	Text string `json:"text" validate:"required"`
}

// Extractor turns free-form request text into a structured order draft.
type Extractor interface {
	Extract(ctx context.Context, text string) (*ai.Extraction, error)
}

type OrderHandler struct {
	service   order.Service
	extractor Extractor
	validate  *validator.Validate
}

func NewOrderHandler(service order.Service, extractor Extractor) *OrderHandler {
	return &OrderHandler{
		service:   service,
		extractor: extractor,
		validate:  validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Post("/orders/extract", h.handleExtract)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/stats", h.handleOrderStats)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Get("/orders/{id}/quote", h.handleGetQuote)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateOrderRequest

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

	o := order.Order{
		ClientName:  requestPayload.ClientName,
		ClientPhone: requestPayload.ClientPhone,
		ClientEmail: requestPayload.ClientEmail,
		Address:     requestPayload.Address,
	}
	if requestPayload.Deadline != "" {
		deadline, err := time.Parse("2006-01-02", requestPayload.Deadline)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid deadline")
			return
		}
		o.Deadline = &deadline
	}
	if u := CurrentUser(r.Context()); u != nil {
		o.CreatedBy = u.ID
	}
	for _, item := range requestPayload.Items {
		o.Items = append(o.Items, order.Item{
			Name:     item.Name,
			Brand:    item.Brand,
			Article:  item.Article,
			Unit:     item.Unit,
			Quantity: item.Quantity,
		})
	}

	created, err := h.service.CreateOrder(r.Context(), &o)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create order via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// handleExtract drafts order fields from raw client text via the AI worker.
// The draft is a suggestion; nothing is persisted here.
func (h *OrderHandler) handleExtract(w http.ResponseWriter, r *http.Request) {
	var requestPayload ExtractRequest

	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	extraction, err := h.extractor.Extract(r.Context(), requestPayload.Text)
	if err != nil {
		log.Error().Err(err).Msg("Failed to extract order draft")
		respondWithError(w, http.StatusBadGateway, "Extraction failed")
		return
	}

	respondWithJSON(w, http.StatusOK, extraction)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	found, err := h.service.GetOrderByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, order.ErrOrderNotFound) {
			log.Error().Err(err).Msg("Failed to get order via service")
		}
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	status := order.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = order.StatusProcessing
	}

	orders, err := h.service.ListOrdersByStatus(r.Context(), status)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list orders via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleOrderStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.CountOrdersByStatus(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to count orders via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to count orders")
		return
	}

	respondWithJSON(w, http.StatusOK, counts)
}

func (h *OrderHandler) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	items, err := h.service.GetQuote(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get quote via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get quote")
		return
	}

	respondWithJSON(w, http.StatusOK, items)
}
