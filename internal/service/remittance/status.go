package remittance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/integration"
)

// GetTransaction fetches a transaction the given user owns. Someone else's
// transaction reads as not found rather than forbidden.
func (s *Service) GetTransaction(ctx context.Context, userID string, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if txn.UserID != userID {
		return nil, fmt.Errorf("GetTransaction: %w", domain.ErrNotFound)
	}
	return txn, nil
}

// ListTransactions returns the user's transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	txns, err := s.ledger.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txns, nil
}

// ListRecipients returns the user's saved beneficiaries from the user
// directory.
func (s *Service) ListRecipients(ctx context.Context, userID string) ([]integration.RecipientDetails, error) {
	recipients, err := s.users.ListRecipients(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListRecipients: %w", err)
	}
	return recipients, nil
}

// CheckPaymentStatus polls the UPI gateway for a Pending transaction,
// applies whatever outcome the poll reports, and returns the transaction's
// resulting status. It covers gaps where the webhook was lost. Outside
// Pending there is nothing to poll and the current status comes back
// unchanged.
func (s *Service) CheckPaymentStatus(ctx context.Context, userID string, id uuid.UUID) (domain.TransactionStatus, error) {
	txn, err := s.GetTransaction(ctx, userID, id)
	if err != nil {
		return "", fmt.Errorf("CheckPaymentStatus: %w", err)
	}
	if txn.Status != domain.StatusPending {
		return txn.Status, nil
	}
	if txn.PaymentDetails == nil || txn.PaymentDetails.PaymentID == "" {
		return "", fmt.Errorf("CheckPaymentStatus: no payment initiated: %w", domain.ErrMissingReference)
	}

	status, details, err := s.upi.CheckStatus(ctx, txn.PaymentDetails.PaymentID)
	if err != nil {
		return "", fmt.Errorf("CheckPaymentStatus: %w", err)
	}

	switch status {
	case integration.PaymentStatusCompleted:
		if err := s.ProcessPayment(ctx, id, details); err != nil {
			return "", fmt.Errorf("CheckPaymentStatus: %w", err)
		}
	case integration.PaymentStatusFailed:
		if err := s.FailTransaction(ctx, id, "upi payment failed"); err != nil {
			return "", fmt.Errorf("CheckPaymentStatus: %w", err)
		}
	case integration.PaymentStatusExpired:
		if err := s.FailTransaction(ctx, id, "upi payment expired"); err != nil {
			return "", fmt.Errorf("CheckPaymentStatus: %w", err)
		}
	default:
		// Still pending at the gateway.
		return txn.Status, nil
	}

	return s.currentStatus(ctx, id)
}

// CheckTransferStatus polls Wise for a Transferred transaction, applies the
// outcome, and returns the transaction's resulting status. Outside
// Transferred there is nothing to poll and the current status comes back
// unchanged.
func (s *Service) CheckTransferStatus(ctx context.Context, userID string, id uuid.UUID) (domain.TransactionStatus, error) {
	txn, err := s.GetTransaction(ctx, userID, id)
	if err != nil {
		return "", fmt.Errorf("CheckTransferStatus: %w", err)
	}
	if txn.Status != domain.StatusTransferred {
		return txn.Status, nil
	}
	if txn.TransferDetails == nil || txn.TransferDetails.TransferID == "" {
		return "", fmt.Errorf("CheckTransferStatus: no transfer initiated: %w", domain.ErrMissingReference)
	}

	status, err := s.wise.CheckStatus(ctx, txn.TransferDetails.TransferID)
	if err != nil && status != integration.TransferStatusFailed {
		return "", fmt.Errorf("CheckTransferStatus: %w", err)
	}

	switch status {
	case integration.TransferStatusCompleted:
		if err := s.CompleteTransaction(ctx, id); err != nil {
			return "", fmt.Errorf("CheckTransferStatus: %w", err)
		}
	case integration.TransferStatusFailed:
		if err := s.FailTransaction(ctx, id, "wise transfer failed"); err != nil {
			return "", fmt.Errorf("CheckTransferStatus: %w", err)
		}
	case integration.TransferStatusCancelled:
		if err := s.FailTransaction(ctx, id, "wise transfer cancelled"); err != nil {
			return "", fmt.Errorf("CheckTransferStatus: %w", err)
		}
	default:
		// Still in flight at Wise.
		return txn.Status, nil
	}

	return s.currentStatus(ctx, id)
}

func (s *Service) currentStatus(ctx context.Context, id uuid.UUID) (domain.TransactionStatus, error) {
	cur, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("currentStatus: %w", err)
	}
	return cur.Status, nil
}
