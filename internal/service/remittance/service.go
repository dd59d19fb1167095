// Package remittance orchestrates the INR to CAD remittance pipeline:
// collect the sender's INR over UPI, convert to CAD through the AD bank,
// transfer to the recipient through Wise, and confirm delivery.
package remittance

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/remit-demo/remit-service/internal/config"
	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/integration"
)

type transactionLedger interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByPaymentReference(ctx context.Context, referenceID string) (*domain.Transaction, error)
	GetByTransferID(ctx context.Context, transferID string) (*domain.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	SetPaymentDetails(ctx context.Context, id uuid.UUID, details *domain.PaymentDetails) error
	MarkFunded(ctx context.Context, id uuid.UUID, details *domain.PaymentDetails) error
	MarkConverted(ctx context.Context, id uuid.UUID, details *domain.ConversionDetails, rate, destinationAmount decimal.Decimal) error
	MarkTransferred(ctx context.Context, id uuid.UUID, details *domain.TransferDetails) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type upiGateway interface {
	CreatePayment(ctx context.Context, amount decimal.Decimal, description string) (*domain.PaymentDetails, error)
	CheckStatus(ctx context.Context, paymentID string) (integration.PaymentStatus, *domain.PaymentDetails, error)
}

type conversionBank interface {
	Convert(ctx context.Context, source, destination domain.Currency, sourceAmount decimal.Decimal) (*integration.ConversionResult, error)
}

type transferProvider interface {
	CreateTransfer(ctx context.Context, sourceAmount decimal.Decimal, recipient domain.BankAccountDetails, reference string) (*domain.TransferDetails, error)
	CheckStatus(ctx context.Context, transferID string) (integration.TransferStatus, error)
}

type userDirectory interface {
	VerifyEligibility(ctx context.Context, userID string) error
	GetRecipient(ctx context.Context, userID, recipientID string) (*integration.RecipientDetails, error)
	ListRecipients(ctx context.Context, userID string) ([]integration.RecipientDetails, error)
}

type rateSource interface {
	GetRate(ctx context.Context, source, destination domain.Currency) (*domain.ExchangeRate, error)
}

type Service struct {
	ledger transactionLedger
	upi    upiGateway
	bank   conversionBank
	wise   transferProvider
	users  userDirectory
	rates  rateSource
	config *config.Config
}

func NewService(
	ledger transactionLedger,
	upi upiGateway,
	bank conversionBank,
	wise transferProvider,
	users userDirectory,
	rates rateSource,
	cfg *config.Config,
) *Service {
	return &Service{
		ledger: ledger,
		upi:    upi,
		bank:   bank,
		wise:   wise,
		users:  users,
		rates:  rates,
		config: cfg,
	}
}
