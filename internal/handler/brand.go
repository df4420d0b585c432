package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/partsdesk/parts-broker/internal/brand"
)

type BrandRequest struct {
	Name string `json:"name" validate:"required,min=1"`
}

type BrandHandler struct {
	repo     brand.Repository
	validate *validator.Validate
}

func NewBrandHandler(repo brand.Repository) *BrandHandler {
	return &BrandHandler{
		repo:     repo,
		validate: validator.New(),
	}
}

func (h *BrandHandler) RegisterRoutes(router chi.Router) {
	router.Get("/brands", h.handleListBrands)
	router.Post("/brands", h.handleCreateBrand)
	router.Put("/brands/{id}", h.handleUpdateBrand)
	router.Delete("/brands/{id}", h.handleDeleteBrand)
}

func (h *BrandHandler) handleListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.repo.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list brands")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list brands")
		return
	}

	respondWithJSON(w, http.StatusOK, brands)
}

func (h *BrandHandler) handleCreateBrand(w http.ResponseWriter, r *http.Request) {
	var requestPayload BrandRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	b := brand.Brand{Name: requestPayload.Name}
	if u := CurrentUser(r.Context()); u != nil {
		b.CreatedBy = u.Name
	}

	if err := h.repo.Create(r.Context(), &b); err != nil {
		if errors.Is(err, brand.ErrDuplicate) {
			respondWithError(w, http.StatusConflict, "Brand already exists")
			return
		}
		log.Error().Err(err).Msg("Failed to create brand")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to create brand")
		return
	}

	respondWithJSON(w, http.StatusCreated, b)
}

func (h *BrandHandler) handleUpdateBrand(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload BrandRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	if err := h.repo.Update(r.Context(), id, requestPayload.Name); err != nil {
		if errors.Is(err, brand.ErrDuplicate) {
			respondWithError(w, http.StatusConflict, "Brand already exists")
			return
		}
		log.Error().Err(err).Msg("Failed to update brand")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to update brand")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BrandHandler) handleDeleteBrand(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		log.Error().Err(err).Msg("Failed to delete brand")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to delete brand")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
