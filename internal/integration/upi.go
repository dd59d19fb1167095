package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/logging"
)

// PaymentStatus is the normalized state of a UPI collection.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusExpired   PaymentStatus = "expired"
)

// ParsePaymentStatus maps the gateway's free-form status strings onto the
// normalized enum. Unknown values are treated as still pending.
func ParsePaymentStatus(s string) PaymentStatus {
	switch strings.ToLower(s) {
	case "completed", "success":
		return PaymentStatusCompleted
	case "failed", "failure":
		return PaymentStatusFailed
	case "expired":
		return PaymentStatusExpired
	default:
		return PaymentStatusPending
	}
}

// UPIWebhookPayload is the callback body the UPI gateway posts when a
// collection settles. ReferenceID is the correlation token issued at payment
// creation.
type UPIWebhookPayload struct {
	PaymentID        string    `json:"payment_id"`
	Status           string    `json:"status"`
	ReferenceID      string    `json:"reference_id"`
	PaymentTime      time.Time `json:"payment_time"`
	UPITransactionID string    `json:"upi_transaction_id"`
}

// UPIClient talks to the UPI payment gateway used for the INR collection leg.
type UPIClient struct {
	baseURL     string
	apiKey      string
	callbackURL string
	httpClient  *http.Client
}

func NewUPIClient(baseURL, apiKey, callbackURL string, timeout time.Duration) *UPIClient {
	return &UPIClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type createPaymentRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	ReferenceID string `json:"reference_id"`
	CallbackURL string `json:"callback_url"`
}

type createPaymentResponse struct {
	PaymentID   string    `json:"payment_id"`
	PaymentLink string    `json:"payment_link"`
	Status      string    `json:"status"`
	ExpiryTime  time.Time `json:"expiry_time"`
}

type paymentStatusResponse struct {
	PaymentID        string     `json:"payment_id"`
	Status           string     `json:"status"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency"`
	ReferenceID      string     `json:"reference_id"`
	PaymentTime      *time.Time `json:"payment_time,omitempty"`
	UPITransactionID *string    `json:"upi_transaction_id,omitempty"`
}

// CreatePayment registers a collection request with the gateway and returns
// the payment link for the payer, with a fresh correlation token under which
// the gateway will call back.
func (c *UPIClient) CreatePayment(ctx context.Context, amount decimal.Decimal, description string) (*domain.PaymentDetails, error) {
	referenceID := uuid.NewString()

	req := createPaymentRequest{
		Amount:      amount.String(),
		Currency:    string(domain.CurrencyINR),
		Description: description,
		ReferenceID: referenceID,
		CallbackURL: c.callbackURL,
	}

	log := logging.FromContext(ctx)
	log.Info("upi create payment", "reference_id", referenceID, "amount", amount)

	var resp createPaymentResponse
	err := postJSON(ctx, c.httpClient, c.baseURL+"/payments", c.headers(), req, &resp)
	if err != nil {
		return nil, domain.NewExternalServiceError("upi", fmt.Errorf("CreatePayment: %w", err))
	}

	return &domain.PaymentDetails{
		PaymentID:   resp.PaymentID,
		PaymentLink: resp.PaymentLink,
		ReferenceID: referenceID,
	}, nil
}

// CheckStatus polls the gateway for the current state of a collection.
func (c *UPIClient) CheckStatus(ctx context.Context, paymentID string) (PaymentStatus, *domain.PaymentDetails, error) {
	var resp paymentStatusResponse
	err := getJSON(ctx, c.httpClient, c.baseURL+"/payments/"+paymentID, c.headers(), &resp)
	if err != nil {
		if isNotFound(err) {
			return "", nil, fmt.Errorf("CheckStatus: payment %s: %w", paymentID, domain.ErrNotFound)
		}
		return "", nil, domain.NewExternalServiceError("upi", fmt.Errorf("CheckStatus: %w", err))
	}

	details := &domain.PaymentDetails{
		PaymentID:   resp.PaymentID,
		ReferenceID: resp.ReferenceID,
		PaymentTime: resp.PaymentTime,
	}
	return ParsePaymentStatus(resp.Status), details, nil
}

// ValidateUPIWebhook checks a callback payload carries the fields needed to
// correlate and apply it.
func ValidateUPIWebhook(p *UPIWebhookPayload) error {
	if p.ReferenceID == "" {
		return errors.New("missing reference_id")
	}
	if p.Status == "" {
		return errors.New("missing status")
	}
	return nil
}

func (c *UPIClient) headers() map[string]string {
	return map[string]string{"x-api-key": c.apiKey}
}
