package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/remit-demo/remit-service/internal/domain"
)

const defaultHistoryLimit = 20

type rateGetter interface {
	GetRate(ctx context.Context, source, destination domain.Currency) (*domain.ExchangeRate, error)
}

type rateHistory interface {
	ListRecent(ctx context.Context, source, destination domain.Currency, limit int) ([]domain.ExchangeRate, error)
}

type RatesHandler struct {
	rates   rateGetter
	history rateHistory
}

func NewRatesHandler(rates rateGetter, history rateHistory) *RatesHandler {
	return &RatesHandler{rates: rates, history: history}
}

type rateResponse struct {
	SourceCurrency      string    `json:"source_currency"`
	DestinationCurrency string    `json:"destination_currency"`
	Rate                string    `json:"rate"`
	Provider            string    `json:"provider"`
	QuotedAt            time.Time `json:"quoted_at"`
}

func toRateResponse(r *domain.ExchangeRate) rateResponse {
	return rateResponse{
		SourceCurrency:      string(r.SourceCurrency),
		DestinationCurrency: string(r.DestinationCurrency),
		Rate:                r.Rate.String(),
		Provider:            r.Provider,
		QuotedAt:            r.QuotedAt,
	}
}

// Current handles GET /api/v1/rates: the INR to CAD rate, served through the
// TTL cache.
func (h *RatesHandler) Current(w http.ResponseWriter, r *http.Request) {
	rate, err := h.rates.GetRate(r.Context(), domain.CurrencyINR, domain.CurrencyCAD)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toRateResponse(rate))
}

// History handles GET /api/v1/rates/history?limit=20: recent stored quotes,
// newest first.
func (h *RatesHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			RespondValidationError(w, []FieldError{{Field: "limit", Message: "must be between 1 and 100"}})
			return
		}
		limit = parsed
	}

	rates, err := h.history.ListRecent(r.Context(), domain.CurrencyINR, domain.CurrencyCAD, limit)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]rateResponse, 0, len(rates))
	for i := range rates {
		out = append(out, toRateResponse(&rates[i]))
	}
	RespondSuccess(w, http.StatusOK, out)
}
