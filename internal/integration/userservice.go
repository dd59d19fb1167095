package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/remit-demo/remit-service/internal/domain"
)

// UserDetails is the user service's view of a sender.
type UserDetails struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	KYCStatus   string `json:"kyc_status"`
	KYCVerified bool   `json:"kyc_verified"`
}

// RecipientDetails is a saved beneficiary as held by the user service.
type RecipientDetails struct {
	RecipientID       string `json:"recipient_id"`
	Name              string `json:"name"`
	AccountHolderName string `json:"account_holder_name"`
	AccountNumber     string `json:"account_number"`
	BankName          string `json:"bank_name"`
	IFSCOrSwiftCode   string `json:"ifsc_or_swift_code"`
	Relationship      string `json:"relationship"`
}

// BankAccount converts the saved beneficiary into the snapshot stored on a
// transaction.
func (r *RecipientDetails) BankAccount() domain.BankAccountDetails {
	return domain.BankAccountDetails{
		BankName:          r.BankName,
		AccountNumber:     r.AccountNumber,
		AccountHolderName: r.AccountHolderName,
		IFSCOrSwiftCode:   r.IFSCOrSwiftCode,
	}
}

// UserServiceClient talks to the platform user service for sender
// eligibility and recipient lookups.
type UserServiceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewUserServiceClient(baseURL, apiKey string, timeout time.Duration) *UserServiceClient {
	return &UserServiceClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *UserServiceClient) GetUser(ctx context.Context, userID string) (*UserDetails, error) {
	var user UserDetails
	err := getJSON(ctx, c.httpClient, c.baseURL+"/users/"+userID, c.headers(), &user)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("GetUser: user %s: %w", userID, domain.ErrNotFound)
		}
		return nil, domain.NewExternalServiceError("user_service", fmt.Errorf("GetUser: %w", err))
	}
	return &user, nil
}

// VerifyEligibility confirms the sender may remit. Today that means KYC is
// verified.
func (c *UserServiceClient) VerifyEligibility(ctx context.Context, userID string) error {
	user, err := c.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.KYCVerified {
		return fmt.Errorf("VerifyEligibility: user %s KYC not verified: %w", userID, domain.ErrIneligibleUser)
	}
	return nil
}

func (c *UserServiceClient) GetRecipient(ctx context.Context, userID, recipientID string) (*RecipientDetails, error) {
	var recipient RecipientDetails
	url := c.baseURL + "/users/" + userID + "/recipients/" + recipientID
	err := getJSON(ctx, c.httpClient, url, c.headers(), &recipient)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("GetRecipient: recipient %s: %w", recipientID, domain.ErrRecipientNotFound)
		}
		return nil, domain.NewExternalServiceError("user_service", fmt.Errorf("GetRecipient: %w", err))
	}
	return &recipient, nil
}

func (c *UserServiceClient) ListRecipients(ctx context.Context, userID string) ([]RecipientDetails, error) {
	var recipients []RecipientDetails
	err := getJSON(ctx, c.httpClient, c.baseURL+"/users/"+userID+"/recipients", c.headers(), &recipients)
	if err != nil {
		return nil, domain.NewExternalServiceError("user_service", fmt.Errorf("ListRecipients: %w", err))
	}
	return recipients, nil
}

func (c *UserServiceClient) headers() map[string]string {
	return map[string]string{"x-api-key": c.apiKey}
}
