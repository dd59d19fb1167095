package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending     TransactionStatus = "PENDING"
	StatusFunded      TransactionStatus = "FUNDED"
	StatusConverted   TransactionStatus = "CONVERTED"
	StatusTransferred TransactionStatus = "TRANSFERRED"
	StatusCompleted   TransactionStatus = "COMPLETED"
	StatusFailed      TransactionStatus = "FAILED"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// forwardEdges is the only legal forward path; Failed is reachable from any
// non-terminal status and nothing leaves a terminal status.
var forwardEdges = map[TransactionStatus]TransactionStatus{
	StatusPending:     StatusFunded,
	StatusFunded:      StatusConverted,
	StatusConverted:   StatusTransferred,
	StatusTransferred: StatusCompleted,
}

func CanTransition(from, to TransactionStatus) bool {
	if to == StatusFailed {
		return !from.IsTerminal()
	}
	return forwardEdges[from] == to
}

// BankAccountDetails is the recipient snapshot captured at creation. Later
// changes to the recipient's profile never affect an in-flight transaction.
type BankAccountDetails struct {
	BankName          string `json:"bank_name"`
	AccountNumber     string `json:"account_number"`
	AccountHolderName string `json:"account_holder_name"`
	IFSCOrSwiftCode   string `json:"ifsc_or_swift_code"`
}

// PaymentDetails correlates the collection stage with the UPI gateway.
// ReferenceID is the token inbound UPI webhooks are matched on.
type PaymentDetails struct {
	PaymentID   string     `json:"payment_id"`
	PaymentLink string     `json:"payment_link,omitempty"`
	PaymentTime *time.Time `json:"payment_time,omitempty"`
	ReferenceID string     `json:"reference_id"`
}

// ConversionDetails correlates the conversion stage with AD Bank.
type ConversionDetails struct {
	ConversionID   string          `json:"conversion_id"`
	ConversionTime *time.Time      `json:"conversion_time,omitempty"`
	ActualRate     decimal.Decimal `json:"actual_exchange_rate"`
	ReferenceID    string          `json:"reference_id"`
}

// TransferDetails correlates the transfer stage with Wise. TransferID is the
// token inbound Wise webhooks are matched on.
type TransferDetails struct {
	TransferID        string     `json:"transfer_id"`
	TransferTime      *time.Time `json:"transfer_time,omitempty"`
	TrackingURL       string     `json:"tracking_url,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ReferenceID       string     `json:"reference_id,omitempty"`
}

// Transaction is the remittance aggregate root. Status only ever moves
// forward along forwardEdges or sideways into Failed; each stage's detail
// record is nil until that stage has run.
type Transaction struct {
	ID                uuid.UUID
	UserID            string
	Status            TransactionStatus
	SourceAmount      Money
	DestinationAmount *Money
	ExchangeRate      *decimal.Decimal
	Fees              Money
	RecipientID       string
	RecipientAccount  BankAccountDetails
	PaymentDetails    *PaymentDetails
	ConversionDetails *ConversionDetails
	TransferDetails   *TransferDetails
	FailureReason     *string
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewTransaction(userID string, sourceAmount decimal.Decimal, fees decimal.Decimal, recipientID string, recipient BankAccountDetails, notes string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:               uuid.New(),
		UserID:           userID,
		Status:           StatusPending,
		SourceAmount:     NewMoney(sourceAmount, CurrencyINR),
		Fees:             NewMoney(fees, CurrencyINR),
		RecipientID:      recipientID,
		RecipientAccount: recipient,
		Notes:            notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// TotalCharge is the amount collected from the payer: principal plus fees.
func (t *Transaction) TotalCharge() decimal.Decimal {
	return t.SourceAmount.Amount.Add(t.Fees.Amount)
}
