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

// TransferStatus is the normalized state of a Wise transfer.
type TransferStatus string

const (
	TransferStatusProcessing TransferStatus = "processing"
	TransferStatusCompleted  TransferStatus = "completed"
	TransferStatusFailed     TransferStatus = "failed"
	TransferStatusCancelled  TransferStatus = "cancelled"
)

// ParseTransferStatus maps Wise's event statuses onto the normalized enum.
// Unknown values are treated as still processing.
func ParseTransferStatus(s string) TransferStatus {
	switch strings.ToLower(s) {
	case "completed", "outgoing_payment_sent":
		return TransferStatusCompleted
	case "failed", "outgoing_payment_failed":
		return TransferStatusFailed
	case "cancelled", "outgoing_payment_cancelled":
		return TransferStatusCancelled
	default:
		return TransferStatusProcessing
	}
}

// WiseWebhookPayload is the callback body Wise posts on transfer state
// changes. TransferID is the correlation token issued at transfer creation.
type WiseWebhookPayload struct {
	EventType         string     `json:"event_type"`
	TransferID        string     `json:"transfer_id"`
	Status            string     `json:"status"`
	Timestamp         time.Time  `json:"timestamp"`
	TrackingURL       *string    `json:"tracking_url,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// ValidateWiseWebhook checks a callback payload carries the fields needed to
// correlate and apply it.
func ValidateWiseWebhook(p *WiseWebhookPayload) error {
	if p.TransferID == "" {
		return errors.New("missing transfer_id")
	}
	if p.Status == "" {
		return errors.New("missing status")
	}
	return nil
}

// WiseClient talks to the Wise API that carries CAD to the recipient's
// Canadian bank account.
type WiseClient struct {
	baseURL     string
	apiKey      string
	profileID   string
	callbackURL string
	httpClient  *http.Client
}

func NewWiseClient(baseURL, apiKey, profileID, callbackURL string, timeout time.Duration) *WiseClient {
	return &WiseClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		profileID:   profileID,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type recipientAccountRequest struct {
	ProfileID         string `json:"profile_id"`
	AccountHolderName string `json:"account_holder_name"`
	Currency          string `json:"currency"`
	AccountNumber     string `json:"account_number"`
	BankCode          string `json:"bank_code"`
	BankName          string `json:"bank_name"`
	Country           string `json:"country"`
}

type recipientAccountResponse struct {
	ID                string `json:"id"`
	ProfileID         string `json:"profile_id"`
	AccountHolderName string `json:"account_holder_name"`
	Currency          string `json:"currency"`
	Country           string `json:"country"`
	Status            string `json:"status"`
}

type createTransferRequest struct {
	SourceCurrency        string  `json:"source_currency"`
	SourceAmount          string  `json:"source_amount"`
	TargetCurrency        string  `json:"target_currency"`
	TargetAccountID       string  `json:"target_account_id"`
	ProfileID             string  `json:"profile_id"`
	Reference             string  `json:"reference"`
	PaymentPurpose        string  `json:"payment_purpose"`
	QuoteID               *string `json:"quote_id"`
	CustomerTransactionID string  `json:"customer_transaction_id"`
	CallbackURL           string  `json:"callback_url"`
}

type createTransferResponse struct {
	ID                string     `json:"id"`
	SourceCurrency    string     `json:"source_currency"`
	SourceAmount      string     `json:"source_amount"`
	TargetCurrency    string     `json:"target_currency"`
	TargetAmount      string     `json:"target_amount"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	TrackingURL       *string    `json:"tracking_url,omitempty"`
}

type transferStatusResponse struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ErrorCode         *string    `json:"error_code,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	TrackingURL       *string    `json:"tracking_url,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// CreateTransfer registers the recipient account with Wise, then initiates
// the CAD transfer into it.
func (c *WiseClient) CreateTransfer(ctx context.Context, sourceAmount decimal.Decimal, recipient domain.BankAccountDetails, reference string) (*domain.TransferDetails, error) {
	accountID, err := c.createRecipientAccount(ctx, recipient)
	if err != nil {
		return nil, err
	}

	referenceID := uuid.NewString()
	req := createTransferRequest{
		SourceCurrency:        string(domain.CurrencyCAD),
		SourceAmount:          sourceAmount.String(),
		TargetCurrency:        string(domain.CurrencyCAD),
		TargetAccountID:       accountID,
		ProfileID:             c.profileID,
		Reference:             reference,
		PaymentPurpose:        "remittance",
		CustomerTransactionID: referenceID,
		CallbackURL:           c.callbackURL,
	}

	log := logging.FromContext(ctx)
	log.Info("wise create transfer", "reference_id", referenceID, "source_amount", sourceAmount)

	var resp createTransferResponse
	err = postJSON(ctx, c.httpClient, c.baseURL+"/transfers", c.headers(), req, &resp)
	if err != nil {
		return nil, domain.NewExternalServiceError("wise", fmt.Errorf("CreateTransfer: %w", err))
	}

	createdAt := resp.CreatedAt
	details := &domain.TransferDetails{
		TransferID:        resp.ID,
		TransferTime:      &createdAt,
		EstimatedDelivery: resp.EstimatedDelivery,
		ReferenceID:       referenceID,
	}
	if resp.TrackingURL != nil {
		details.TrackingURL = *resp.TrackingURL
	}
	return details, nil
}

// CheckStatus polls Wise for the current state of a transfer.
func (c *WiseClient) CheckStatus(ctx context.Context, transferID string) (TransferStatus, error) {
	var resp transferStatusResponse
	err := getJSON(ctx, c.httpClient, c.baseURL+"/transfers/"+transferID, c.headers(), &resp)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("CheckStatus: transfer %s: %w", transferID, domain.ErrNotFound)
		}
		return "", domain.NewExternalServiceError("wise", fmt.Errorf("CheckStatus: %w", err))
	}

	status := ParseTransferStatus(resp.Status)
	if status == TransferStatusFailed && resp.ErrorMessage != nil {
		return status, domain.NewExternalServiceError("wise", fmt.Errorf("transfer failed: %s", *resp.ErrorMessage))
	}
	return status, nil
}

func (c *WiseClient) createRecipientAccount(ctx context.Context, recipient domain.BankAccountDetails) (string, error) {
	req := recipientAccountRequest{
		ProfileID:         c.profileID,
		AccountHolderName: recipient.AccountHolderName,
		Currency:          string(domain.CurrencyCAD),
		AccountNumber:     recipient.AccountNumber,
		BankCode:          recipient.IFSCOrSwiftCode,
		BankName:          recipient.BankName,
		Country:           "CA",
	}

	var resp recipientAccountResponse
	err := postJSON(ctx, c.httpClient, c.baseURL+"/accounts", c.headers(), req, &resp)
	if err != nil {
		return "", domain.NewExternalServiceError("wise", fmt.Errorf("createRecipientAccount: %w", err))
	}
	return resp.ID, nil
}

func (c *WiseClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}
