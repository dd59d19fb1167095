package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExchangeRate is an immutable quote snapshot. Quotes are never mutated,
// only superseded by newer rows; freshness is decided against QuotedAt.
type ExchangeRate struct {
	ID                  uuid.UUID
	SourceCurrency      Currency
	DestinationCurrency Currency
	Rate                decimal.Decimal
	Provider            string
	QuotedAt            time.Time
}

func NewExchangeRate(source, destination Currency, rate decimal.Decimal, provider string) *ExchangeRate {
	return &ExchangeRate{
		ID:                  uuid.New(),
		SourceCurrency:      source,
		DestinationCurrency: destination,
		Rate:                rate,
		Provider:            provider,
		QuotedAt:            time.Now().UTC(),
	}
}

func (r *ExchangeRate) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.QuotedAt) <= ttl
}
