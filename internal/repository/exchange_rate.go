package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/remit-demo/remit-service/internal/domain"
)

// ExchangeRateRepository stores quotes append-only; the latest row per
// currency pair is the current quote and older rows form the rate history.
type ExchangeRateRepository struct {
	db *sql.DB
}

func NewExchangeRateRepository(db *sql.DB) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: db}
}

func (r *ExchangeRateRepository) Insert(ctx context.Context, rate *domain.ExchangeRate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exchange_rates (rate_id, source_currency, destination_currency, rate, provider, quoted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rate.ID, rate.SourceCurrency, rate.DestinationCurrency, rate.Rate, rate.Provider, rate.QuotedAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

func (r *ExchangeRateRepository) GetLatest(ctx context.Context, source, destination domain.Currency) (*domain.ExchangeRate, error) {
	var rate domain.ExchangeRate
	err := r.db.QueryRowContext(ctx,
		`SELECT rate_id, source_currency, destination_currency, rate, provider, quoted_at
		FROM exchange_rates
		WHERE source_currency = $1 AND destination_currency = $2
		ORDER BY quoted_at DESC LIMIT 1`,
		source, destination,
	).Scan(&rate.ID, &rate.SourceCurrency, &rate.DestinationCurrency, &rate.Rate, &rate.Provider, &rate.QuotedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetLatest: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetLatest: %w", err)
	}
	return &rate, nil
}

func (r *ExchangeRateRepository) ListRecent(ctx context.Context, source, destination domain.Currency, limit int) ([]domain.ExchangeRate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rate_id, source_currency, destination_currency, rate, provider, quoted_at
		FROM exchange_rates
		WHERE source_currency = $1 AND destination_currency = $2
		ORDER BY quoted_at DESC LIMIT $3`,
		source, destination, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer rows.Close()

	var rates []domain.ExchangeRate
	for rows.Next() {
		var rate domain.ExchangeRate
		if err := rows.Scan(&rate.ID, &rate.SourceCurrency, &rate.DestinationCurrency, &rate.Rate, &rate.Provider, &rate.QuotedAt); err != nil {
			return nil, fmt.Errorf("ListRecent: scan: %w", err)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRecent: rows: %w", err)
	}
	return rates, nil
}
