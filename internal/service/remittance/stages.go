package remittance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/logging"
)

// Each stage below is independently invokable: webhooks, polling, and the
// API surface all funnel into the same transition primitives. A stage first
// checks the status it read (InvalidStateError for callers that are plainly
// out of order), then relies on the ledger's conditional write for the
// race window (ErrConflict when another writer got there first).

// ProcessPayment applies a confirmed UPI collection: Pending becomes Funded.
// With auto-advance enabled the conversion stage runs immediately after.
func (s *Service) ProcessPayment(ctx context.Context, id uuid.UUID, details *domain.PaymentDetails) error {
	log := logging.FromContext(ctx)

	txn, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ProcessPayment: %w", err)
	}
	if txn.Status != domain.StatusPending {
		return fmt.Errorf("ProcessPayment: %w", domain.NewInvalidState(txn.Status, domain.StatusPending))
	}

	merged := mergePaymentDetails(txn.PaymentDetails, details)
	if err := s.ledger.MarkFunded(ctx, id, merged); err != nil {
		return fmt.Errorf("ProcessPayment: %w", err)
	}

	log.Info("transaction funded", "transaction_id", id, "payment_id", merged.PaymentID)

	if s.config.AutoAdvanceStages {
		s.advance(ctx, id, s.ConvertFunds)
	}
	return nil
}

// ConvertFunds executes the INR to CAD conversion: Funded becomes Converted.
func (s *Service) ConvertFunds(ctx context.Context, id uuid.UUID) error {
	log := logging.FromContext(ctx)

	txn, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ConvertFunds: %w", err)
	}
	if txn.Status != domain.StatusFunded {
		return fmt.Errorf("ConvertFunds: %w", domain.NewInvalidState(txn.Status, domain.StatusFunded))
	}

	// Only the principal is converted; the fee stays with the platform.
	// A failed provider call leaves the transaction Funded so the stage can
	// be retried.
	result, err := s.bank.Convert(ctx, domain.CurrencyINR, domain.CurrencyCAD, txn.SourceAmount.Amount)
	if err != nil {
		log.Error("currency conversion failed", "transaction_id", id, "error", err)
		return fmt.Errorf("ConvertFunds: %w", err)
	}

	if err := s.ledger.MarkConverted(ctx, id, result.Details, result.Rate, result.DestinationAmount); err != nil {
		return fmt.Errorf("ConvertFunds: %w", err)
	}

	log.Info("transaction converted",
		"transaction_id", id,
		"rate", result.Rate,
		"destination_amount", result.DestinationAmount,
	)

	if s.config.AutoAdvanceStages {
		s.advance(ctx, id, s.TransferFunds)
	}
	return nil
}

// TransferFunds initiates the CAD payout through Wise: Converted becomes
// Transferred. Completion waits for Wise's delivery confirmation.
func (s *Service) TransferFunds(ctx context.Context, id uuid.UUID) error {
	log := logging.FromContext(ctx)

	txn, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("TransferFunds: %w", err)
	}
	if txn.Status != domain.StatusConverted {
		return fmt.Errorf("TransferFunds: %w", domain.NewInvalidState(txn.Status, domain.StatusConverted))
	}
	if txn.DestinationAmount == nil {
		return fmt.Errorf("TransferFunds: no destination amount recorded: %w", domain.ErrMissingReference)
	}

	// A failed provider call leaves the transaction Converted so the stage
	// can be retried.
	details, err := s.wise.CreateTransfer(ctx, txn.DestinationAmount.Amount, txn.RecipientAccount, "Remittance "+txn.ID.String())
	if err != nil {
		log.Error("transfer initiation failed", "transaction_id", id, "error", err)
		return fmt.Errorf("TransferFunds: %w", err)
	}

	if err := s.ledger.MarkTransferred(ctx, id, details); err != nil {
		return fmt.Errorf("TransferFunds: %w", err)
	}

	log.Info("transaction transferred", "transaction_id", id, "transfer_id", details.TransferID)
	return nil
}

// CompleteTransaction records delivery confirmation: Transferred becomes
// Completed.
func (s *Service) CompleteTransaction(ctx context.Context, id uuid.UUID) error {
	txn, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("CompleteTransaction: %w", err)
	}
	if txn.Status != domain.StatusTransferred {
		return fmt.Errorf("CompleteTransaction: %w", domain.NewInvalidState(txn.Status, domain.StatusTransferred))
	}

	if err := s.ledger.UpdateStatus(ctx, id, domain.StatusTransferred, domain.StatusCompleted); err != nil {
		return fmt.Errorf("CompleteTransaction: %w", err)
	}

	logging.FromContext(ctx).Info("transaction completed", "transaction_id", id)
	return nil
}

// FailTransaction moves any non-terminal transaction to Failed with a
// reason. Already-terminal transactions report ErrConflict.
func (s *Service) FailTransaction(ctx context.Context, id uuid.UUID, reason string) error {
	if err := s.ledger.MarkFailed(ctx, id, reason); err != nil {
		return fmt.Errorf("FailTransaction: %w", err)
	}
	logging.FromContext(ctx).Warn("transaction failed", "transaction_id", id, "reason", reason)
	return nil
}

// advance runs the next stage after a committed transition. The caller's own
// transition already succeeded and stays committed; a chained-stage error is
// logged and the transaction waits in its current state for a retry.
func (s *Service) advance(ctx context.Context, id uuid.UUID, stage func(context.Context, uuid.UUID) error) {
	if err := stage(ctx, id); err != nil {
		logging.FromContext(ctx).Error("auto-advance stage failed", "transaction_id", id, "error", err)
	}
}

// mergePaymentDetails folds the webhook's settlement fields into the details
// captured at initiation, keeping the payment link and original reference.
func mergePaymentDetails(existing, incoming *domain.PaymentDetails) *domain.PaymentDetails {
	if existing == nil {
		return incoming
	}
	if incoming == nil {
		return existing
	}
	merged := *existing
	if incoming.PaymentID != "" {
		merged.PaymentID = incoming.PaymentID
	}
	if incoming.PaymentTime != nil {
		merged.PaymentTime = incoming.PaymentTime
	}
	if incoming.ReferenceID != "" {
		merged.ReferenceID = incoming.ReferenceID
	}
	return &merged
}
