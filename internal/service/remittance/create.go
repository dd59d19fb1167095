package remittance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/logging"
)

const maxNotesLength = 500

type CreateParams struct {
	UserID      string
	AmountINR   decimal.Decimal
	RecipientID string
	Notes       string
}

// CreateResult carries the new transaction plus the UPI link the sender pays
// through.
type CreateResult struct {
	Transaction *domain.Transaction
	PaymentLink string
}

// CalculateFee applies the configured percentage with a floor: the fee is
// never below the configured minimum regardless of amount.
func (s *Service) CalculateFee(amount decimal.Decimal) decimal.Decimal {
	pct := decimal.NewFromFloat(s.config.FeePercentage)
	fee := amount.Mul(pct).Div(decimal.NewFromInt(100))
	minFee := decimal.NewFromInt(s.config.MinFeeINR)
	return decimal.Max(fee, minFee)
}

func (s *Service) validateAmount(amount decimal.Decimal) error {
	min := decimal.NewFromInt(s.config.MinAmountINR)
	max := decimal.NewFromInt(s.config.MaxAmountINR)
	if amount.LessThan(min) || amount.GreaterThan(max) {
		return fmt.Errorf("amount %s outside %s..%s INR: %w", amount, min, max, domain.ErrAmountOutOfRange)
	}
	return nil
}

// Create validates the request, snapshots the recipient, persists a Pending
// transaction, and initiates the UPI collection for amount plus fee.
func (s *Service) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	log := logging.FromContext(ctx)

	if err := s.validateAmount(params.AmountINR); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if len(params.Notes) > maxNotesLength {
		return nil, fmt.Errorf("Create: notes exceed %d characters: %w", maxNotesLength, domain.ErrValidation)
	}

	fee := s.CalculateFee(params.AmountINR)
	if fee.GreaterThan(params.AmountINR) {
		return nil, fmt.Errorf("Create: fee %s exceeds amount %s: %w", fee, params.AmountINR, domain.ErrFeeExceedsAmount)
	}

	if err := s.users.VerifyEligibility(ctx, params.UserID); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	recipient, err := s.users.GetRecipient(ctx, params.UserID, params.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	txn := domain.NewTransaction(params.UserID, params.AmountINR, fee, params.RecipientID, recipient.BankAccount(), params.Notes)
	if err := s.ledger.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	log.Info("transaction created",
		"transaction_id", txn.ID,
		"user_id", txn.UserID,
		"amount", txn.SourceAmount.Amount,
		"fee", txn.Fees.Amount,
	)

	// Collect principal plus fee in one UPI payment.
	description := "Remittance " + txn.ID.String()
	payment, err := s.upi.CreatePayment(ctx, txn.TotalCharge(), description)
	if err != nil {
		// The transaction stays Pending; the sender can retry initiation.
		log.Error("upi payment initiation failed", "transaction_id", txn.ID, "error", err)
		return nil, fmt.Errorf("Create: %w", err)
	}

	if err := s.ledger.SetPaymentDetails(ctx, txn.ID, payment); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	txn.PaymentDetails = payment

	return &CreateResult{Transaction: txn, PaymentLink: payment.PaymentLink}, nil
}

// InitiatePayment starts the UPI collection for a Pending transaction whose
// initiation during Create did not stick, and returns the payment link. An
// already-initiated transaction gets its existing link back rather than a
// second collection request.
func (s *Service) InitiatePayment(ctx context.Context, userID string, id uuid.UUID) (string, error) {
	txn, err := s.GetTransaction(ctx, userID, id)
	if err != nil {
		return "", fmt.Errorf("InitiatePayment: %w", err)
	}
	if txn.Status != domain.StatusPending {
		return "", fmt.Errorf("InitiatePayment: %w", domain.NewInvalidState(txn.Status, domain.StatusPending))
	}
	if txn.PaymentDetails != nil && txn.PaymentDetails.PaymentLink != "" {
		return txn.PaymentDetails.PaymentLink, nil
	}

	payment, err := s.upi.CreatePayment(ctx, txn.TotalCharge(), "Remittance "+txn.ID.String())
	if err != nil {
		return "", fmt.Errorf("InitiatePayment: %w", err)
	}
	if err := s.ledger.SetPaymentDetails(ctx, txn.ID, payment); err != nil {
		return "", fmt.Errorf("InitiatePayment: %w", err)
	}

	logging.FromContext(ctx).Info("payment initiated",
		"transaction_id", txn.ID, "payment_id", payment.PaymentID)
	return payment.PaymentLink, nil
}

// Quote prices a prospective remittance without creating anything: the fee,
// the current indicative rate, and the estimated CAD the recipient would get.
type Quote struct {
	AmountINR    decimal.Decimal
	Fee          decimal.Decimal
	TotalCharge  decimal.Decimal
	Rate         decimal.Decimal
	RateProvider string
	EstimatedCAD decimal.Decimal
}

func (s *Service) GetQuote(ctx context.Context, amount decimal.Decimal) (*Quote, error) {
	if err := s.validateAmount(amount); err != nil {
		return nil, fmt.Errorf("GetQuote: %w", err)
	}

	rate, err := s.rates.GetRate(ctx, domain.CurrencyINR, domain.CurrencyCAD)
	if err != nil {
		return nil, fmt.Errorf("GetQuote: %w", err)
	}

	fee := s.CalculateFee(amount)
	return &Quote{
		AmountINR:    amount,
		Fee:          fee,
		TotalCharge:  amount.Add(fee),
		Rate:         rate.Rate,
		RateProvider: rate.Provider,
		EstimatedCAD: amount.Mul(rate.Rate),
	}, nil
}
