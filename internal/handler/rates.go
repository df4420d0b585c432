package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/partsdesk/parts-broker/internal/rates"
)

type UpsertRatesRequest struct {
	Date             string          `json:"date" validate:"required,datetime=2006-01-02"`
	USDToRUB         decimal.Decimal `json:"usd_to_rub"`
	CNYToRUB         decimal.Decimal `json:"cny_to_rub"`
	DeliveryWeeksAdd int             `json:"delivery_weeks_add" validate:"gte=0"`
}

type RatesHandler struct {
	repo     rates.Repository
	validate *validator.Validate
}

func NewRatesHandler(repo rates.Repository) *RatesHandler {
	return &RatesHandler{
		repo:     repo,
		validate: validator.New(),
	}
}

func (h *RatesHandler) RegisterRoutes(router chi.Router) {
	router.Get("/rates", h.handleGetRates)
	router.Put("/rates", h.handleUpsertRates)
}

// handleGetRates returns the row for ?date=YYYY-MM-DD, or the latest row
// when the parameter is absent.
func (h *RatesHandler) handleGetRates(w http.ResponseWriter, r *http.Request) {
	var (
		er  *rates.ExchangeRates
		err error
	)

	if dateParam := r.URL.Query().Get("date"); dateParam != "" {
		date, parseErr := time.Parse("2006-01-02", dateParam)
		if parseErr != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid date parameter")
			return
		}
		er, err = h.repo.GetByDate(r.Context(), date)
	} else {
		er, err = h.repo.GetLatest(r.Context())
	}

	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get exchange rates")
		return
	}

	respondWithJSON(w, http.StatusOK, er)
}

func (h *RatesHandler) handleUpsertRates(w http.ResponseWriter, r *http.Request) {
	var requestPayload UpsertRatesRequest
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondValidationError(w, err)
		return
	}

	date, err := time.Parse("2006-01-02", requestPayload.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date")
		return
	}

	er := rates.ExchangeRates{
		Date:             date,
		USDToRUB:         requestPayload.USDToRUB,
		CNYToRUB:         requestPayload.CNYToRUB,
		DeliveryWeeksAdd: requestPayload.DeliveryWeeksAdd,
	}

	if err := h.repo.Upsert(r.Context(), &er); err != nil {
		log.Error().Err(err).Msg("Failed to upsert exchange rates")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to save exchange rates")
		return
	}

	respondWithJSON(w, http.StatusOK, er)
}
