package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/partsdesk/parts-broker/internal/offer"
	"github.com/partsdesk/parts-broker/internal/workflow"
)

type ApproveRequest struct {
	// ConfirmEmpty acknowledges approval with zero winning lines.
	ConfirmEmpty bool `json:"confirm_empty"`
	// Force proceeds despite live buyer edit leases.
	Force bool `json:"force"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

// ConfirmationRequiredResponse asks the administrator to repeat the call
// with confirm_empty set.
type ConfirmationRequiredResponse struct {
	Error                string `json:"error"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
}

// BlockedByLocksResponse lists the buyers whose live leases block approval.
type BlockedByLocksResponse struct {
	Error    string             `json:"error"`
	LockedBy []offer.LockHolder `json:"locked_by"`
}

type WorkflowHandler struct {
	service workflow.Service
}

func NewWorkflowHandler(service workflow.Service) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

func (h *WorkflowHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders/{id}/approve", h.handleApprove)
	router.Post("/orders/{id}/manual", h.handleManual)
	router.Post("/orders/{id}/complete", h.handleComplete)
	router.Post("/orders/{id}/cancel", h.handleCancel)
}

func (h *WorkflowHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, h.service.Approve)
}

func (h *WorkflowHandler) handleManual(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, h.service.ApproveManual)
}

func (h *WorkflowHandler) approve(w http.ResponseWriter, r *http.Request,
	call func(ctx context.Context, orderID, actorID uuid.UUID, opts workflow.ApproveOptions) error) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	// The options body is optional; an empty body means default guards.
	var requestPayload ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	u := CurrentUser(r.Context())
	if u == nil {
		respondWithError(w, http.StatusUnauthorized, "Missing authorization token")
		return
	}

	err = call(r.Context(), orderID, u.ID, workflow.ApproveOptions{
		ConfirmEmpty: requestPayload.ConfirmEmpty,
		Force:        requestPayload.Force,
	})
	if err != nil {
		if errors.Is(err, workflow.ErrConfirmationRequired) {
			respondWithJSON(w, http.StatusConflict, ConfirmationRequiredResponse{
				Error:                "No winners selected",
				RequiresConfirmation: true,
			})
			return
		}
		var lockedErr *workflow.LockedError
		if errors.As(err, &lockedErr) {
			respondWithJSON(w, http.StatusConflict, BlockedByLocksResponse{
				Error:    "Offers are being edited",
				LockedBy: lockedErr.Holders,
			})
			return
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to approve order")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to approve order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkflowHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if err := h.service.Complete(r.Context(), orderID); err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to complete order")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to complete order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkflowHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.service.Cancel(r.Context(), orderID, requestPayload.Reason); err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to cancel order")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to cancel order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
