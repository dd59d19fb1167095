package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/logging"
)

// ADBankClient talks to the authorized dealer bank that executes INR to CAD
// conversions and quotes exchange rates.
type ADBankClient struct {
	baseURL    string
	apiKey     string
	clientID   string
	httpClient *http.Client
}

func NewADBankClient(baseURL, apiKey, clientID string, timeout time.Duration) *ADBankClient {
	return &ADBankClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		clientID:   clientID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type getRateRequest struct {
	SourceCurrency      string `json:"source_currency"`
	DestinationCurrency string `json:"destination_currency"`
	ClientID            string `json:"client_id"`
}

type getRateResponse struct {
	SourceCurrency      string    `json:"source_currency"`
	DestinationCurrency string    `json:"destination_currency"`
	Rate                string    `json:"rate"`
	Timestamp           time.Time `json:"timestamp"`
}

type convertRequest struct {
	SourceCurrency      string `json:"source_currency"`
	DestinationCurrency string `json:"destination_currency"`
	SourceAmount        string `json:"source_amount"`
	ClientID            string `json:"client_id"`
	ReferenceID         string `json:"reference_id"`
}

type convertResponse struct {
	ConversionID        string    `json:"conversion_id"`
	SourceCurrency      string    `json:"source_currency"`
	DestinationCurrency string    `json:"destination_currency"`
	SourceAmount        string    `json:"source_amount"`
	DestinationAmount   string    `json:"destination_amount"`
	Rate                string    `json:"rate"`
	Fees                string    `json:"fees"`
	Status              string    `json:"status"`
	Timestamp           time.Time `json:"timestamp"`
}

// QuoteRate fetches an indicative rate for the pair. The rate actually
// applied is the one returned by Convert.
func (c *ADBankClient) QuoteRate(ctx context.Context, source, destination domain.Currency) (*domain.ExchangeRate, error) {
	req := getRateRequest{
		SourceCurrency:      string(source),
		DestinationCurrency: string(destination),
		ClientID:            c.clientID,
	}

	var resp getRateResponse
	err := postJSON(ctx, c.httpClient, c.baseURL+"/rates", c.headers(), req, &resp)
	if err != nil {
		return nil, domain.NewExternalServiceError("ad_bank", fmt.Errorf("QuoteRate: %w", err))
	}

	rate, err := decimal.NewFromString(resp.Rate)
	if err != nil {
		return nil, domain.NewExternalServiceError("ad_bank", fmt.Errorf("QuoteRate: parse rate %q: %w", resp.Rate, err))
	}

	return domain.NewExchangeRate(source, destination, rate, "AD Bank"), nil
}

// ConversionResult is the executed-conversion outcome: the correlation
// details plus the rate and destination amount the bank actually applied.
type ConversionResult struct {
	Details           *domain.ConversionDetails
	Rate              decimal.Decimal
	DestinationAmount decimal.Decimal
}

// Convert executes a conversion of sourceAmount at the bank's current rate.
func (c *ADBankClient) Convert(ctx context.Context, source, destination domain.Currency, sourceAmount decimal.Decimal) (*ConversionResult, error) {
	referenceID := uuid.NewString()

	req := convertRequest{
		SourceCurrency:      string(source),
		DestinationCurrency: string(destination),
		SourceAmount:        sourceAmount.String(),
		ClientID:            c.clientID,
		ReferenceID:         referenceID,
	}

	log := logging.FromContext(ctx)
	log.Info("ad bank convert", "reference_id", referenceID, "source_amount", sourceAmount)

	var resp convertResponse
	err := postJSON(ctx, c.httpClient, c.baseURL+"/convert", c.headers(), req, &resp)
	if err != nil {
		return nil, domain.NewExternalServiceError("ad_bank", fmt.Errorf("Convert: %w", err))
	}

	rate, err := decimal.NewFromString(resp.Rate)
	if err != nil {
		return nil, domain.NewExternalServiceError("ad_bank", fmt.Errorf("Convert: parse rate %q: %w", resp.Rate, err))
	}
	destAmount, err := decimal.NewFromString(resp.DestinationAmount)
	if err != nil {
		return nil, domain.NewExternalServiceError("ad_bank", fmt.Errorf("Convert: parse destination amount %q: %w", resp.DestinationAmount, err))
	}

	ts := resp.Timestamp
	return &ConversionResult{
		Details: &domain.ConversionDetails{
			ConversionID:   resp.ConversionID,
			ConversionTime: &ts,
			ActualRate:     rate,
			ReferenceID:    referenceID,
		},
		Rate:              rate,
		DestinationAmount: destAmount,
	}, nil
}

func (c *ADBankClient) headers() map[string]string {
	return map[string]string{"x-api-key": c.apiKey}
}
