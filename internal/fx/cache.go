package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/logging"
)

type rateStore interface {
	Insert(ctx context.Context, rate *domain.ExchangeRate) error
	GetLatest(ctx context.Context, source, destination domain.Currency) (*domain.ExchangeRate, error)
}

type rateQuoter interface {
	QuoteRate(ctx context.Context, source, destination domain.Currency) (*domain.ExchangeRate, error)
}

// RateCache serves exchange rates read-through: a stored quote younger than
// the TTL is returned as-is, otherwise a fresh quote is fetched from the
// provider and appended to the store. A quote past the TTL is treated as
// absent, so a provider outage surfaces as an error rather than a stale rate.
type RateCache struct {
	store  rateStore
	quoter rateQuoter
	ttl    time.Duration

	now func() time.Time
}

func NewRateCache(store rateStore, quoter rateQuoter, ttl time.Duration) *RateCache {
	return &RateCache{
		store:  store,
		quoter: quoter,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *RateCache) GetRate(ctx context.Context, source, destination domain.Currency) (*domain.ExchangeRate, error) {
	cached, err := c.store.GetLatest(ctx, source, destination)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("GetRate: %w", err)
	}

	if cached != nil && cached.FreshAt(c.now(), c.ttl) {
		return cached, nil
	}

	fresh, quoteErr := c.quoter.QuoteRate(ctx, source, destination)
	if quoteErr != nil {
		return nil, fmt.Errorf("GetRate: %w", quoteErr)
	}

	if err := c.store.Insert(ctx, fresh); err != nil {
		// The quote is still good; persisting it is for history and reuse.
		logging.FromContext(ctx).Warn("failed to persist exchange rate quote", "error", err)
	}
	return fresh, nil
}
