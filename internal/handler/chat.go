package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/partsdesk/parts-broker/internal/chat"
)

type SendMessageRequest struct {
	OrderID *uuid.UUID `json:"order_id,omitempty"`
	Body    string     `json:"body" validate:"required"`
}

type ChatHandler struct {
	service  chat.Service
	validate *validator.Validate
}

func NewChatHandler(service chat.Service) *ChatHandler {
	return &ChatHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ChatHandler) RegisterRoutes(router chi.Router) {
	router.Post("/chat/messages", h.handleSendMessage)
	router.Get("/chat/messages", h.handleListGlobal)
	router.Get("/orders/{id}/chat", h.handleListByOrder)
}

func (h *ChatHandler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var requestPayload SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil {
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

	m := chat.Message{
		OrderID:    requestPayload.OrderID,
		AuthorID:   u.ID,
		AuthorRole: string(u.Role),
		Body:       requestPayload.Body,
	}

	sent, err := h.service.Send(r.Context(), &m)
	if err != nil {
		log.Error().Err(err).Msg("Failed to send chat message")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to send message")
		return
	}

	respondWithJSON(w, http.StatusCreated, sent)
}

func (h *ChatHandler) handleListGlobal(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.ListGlobal(r.Context(), queryLimit(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list chat messages")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list messages")
		return
	}

	respondWithJSON(w, http.StatusOK, messages)
}

func (h *ChatHandler) handleListByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	messages, err := h.service.ListByOrder(r.Context(), orderID, queryLimit(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list chat messages")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list messages")
		return
	}

	respondWithJSON(w, http.StatusOK, messages)
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}
