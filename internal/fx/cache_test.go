package fx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remit-demo/remit-service/internal/domain"
)

type fakeRateStore struct {
	latest   *domain.ExchangeRate
	inserted []*domain.ExchangeRate
}

func (s *fakeRateStore) Insert(_ context.Context, rate *domain.ExchangeRate) error {
	s.inserted = append(s.inserted, rate)
	s.latest = rate
	return nil
}

func (s *fakeRateStore) GetLatest(_ context.Context, _, _ domain.Currency) (*domain.ExchangeRate, error) {
	if s.latest == nil {
		return nil, domain.ErrNotFound
	}
	return s.latest, nil
}

type fakeQuoter struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (q *fakeQuoter) QuoteRate(_ context.Context, source, destination domain.Currency) (*domain.ExchangeRate, error) {
	q.calls++
	if q.err != nil {
		return nil, q.err
	}
	return domain.NewExchangeRate(source, destination, q.rate, "test-provider"), nil
}

func quoteAt(rate float64, quotedAt time.Time) *domain.ExchangeRate {
	q := domain.NewExchangeRate(domain.CurrencyINR, domain.CurrencyCAD, decimal.NewFromFloat(rate), "test-provider")
	q.QuotedAt = quotedAt
	return q
}

func TestGetRate_FreshCacheHit(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeRateStore{latest: quoteAt(0.016, now.Add(-time.Minute))}
	quoter := &fakeQuoter{rate: decimal.NewFromFloat(0.017)}

	cache := NewRateCache(store, quoter, 5*time.Minute)
	cache.now = func() time.Time { return now }

	rate, err := cache.GetRate(context.Background(), domain.CurrencyINR, domain.CurrencyCAD)
	require.NoError(t, err)
	assert.True(t, rate.Rate.Equal(decimal.NewFromFloat(0.016)))
	assert.Zero(t, quoter.calls, "fresh cache hit should not hit the provider")
}

func TestGetRate_ExpiredQuoteRefetches(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeRateStore{latest: quoteAt(0.016, now.Add(-10*time.Minute))}
	quoter := &fakeQuoter{rate: decimal.NewFromFloat(0.017)}

	cache := NewRateCache(store, quoter, 5*time.Minute)
	cache.now = func() time.Time { return now }

	rate, err := cache.GetRate(context.Background(), domain.CurrencyINR, domain.CurrencyCAD)
	require.NoError(t, err)
	assert.True(t, rate.Rate.Equal(decimal.NewFromFloat(0.017)))
	assert.Equal(t, 1, quoter.calls)
	require.Len(t, store.inserted, 1, "fresh quote should be persisted")
}

func TestGetRate_EmptyCacheFetches(t *testing.T) {
	store := &fakeRateStore{}
	quoter := &fakeQuoter{rate: decimal.NewFromFloat(0.017)}

	cache := NewRateCache(store, quoter, 5*time.Minute)

	rate, err := cache.GetRate(context.Background(), domain.CurrencyINR, domain.CurrencyCAD)
	require.NoError(t, err)
	assert.True(t, rate.Rate.Equal(decimal.NewFromFloat(0.017)))
}

func TestGetRate_ExpiredQuoteNeverServed(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeRateStore{latest: quoteAt(0.016, now.Add(-time.Hour))}
	quoter := &fakeQuoter{err: errors.New("connection refused")}

	cache := NewRateCache(store, quoter, 5*time.Minute)
	cache.now = func() time.Time { return now }

	// A quote past the TTL counts as absent: the provider error propagates
	// instead of the stale rate.
	rate, err := cache.GetRate(context.Background(), domain.CurrencyINR, domain.CurrencyCAD)
	require.Error(t, err)
	assert.Nil(t, rate)
	assert.Equal(t, 1, quoter.calls)
}

func TestGetRate_ProviderDownNoCache(t *testing.T) {
	store := &fakeRateStore{}
	quoter := &fakeQuoter{err: errors.New("connection refused")}

	cache := NewRateCache(store, quoter, 5*time.Minute)

	_, err := cache.GetRate(context.Background(), domain.CurrencyINR, domain.CurrencyCAD)
	require.Error(t, err)
}
