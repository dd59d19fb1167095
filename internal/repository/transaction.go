package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/remit-demo/remit-service/internal/domain"
)

const transactionColumns = `transaction_id, user_id, status, source_amount, source_currency,
	destination_amount, destination_currency, exchange_rate, fees, recipient_id,
	recipient_account, payment_details, conversion_details, transfer_details,
	failure_reason, notes, created_at, updated_at`

// TransactionRepository is the transaction ledger. Every status-changing
// write is a single UPDATE conditioned on the expected prior status, so two
// racing writers can never double-apply a transition: the loser's UPDATE
// matches zero rows and surfaces domain.ErrConflict.
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	recipient, err := json.Marshal(t.RecipientAccount)
	if err != nil {
		return fmt.Errorf("Create: marshal recipient: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO transactions (
			transaction_id, user_id, status, source_amount, source_currency,
			destination_currency, fees, recipient_id, recipient_account, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.UserID, t.Status, t.SourceAmount.Amount, t.SourceAmount.Currency,
		domain.CurrencyCAD, t.Fees.Amount, t.RecipientID, recipient, t.Notes,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// GetByPaymentReference resolves a UPI webhook's correlation token to its
// owning transaction via the unique payment_reference_id column.
func (r *TransactionRepository) GetByPaymentReference(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE payment_reference_id = $1`, referenceID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByPaymentReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByPaymentReference: %w", err)
	}
	return t, nil
}

// GetByTransferID resolves a Wise webhook's transfer id to its owning
// transaction via the unique transfer_ref column.
func (r *TransactionRepository) GetByTransferID(ctx context.Context, transferID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transfer_ref = $1`, transferID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByTransferID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByTransferID: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	return collectTransactions(rows, "ListByUser")
}

func (r *TransactionRepository) ListByStatus(ctx context.Context, status domain.TransactionStatus, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByStatus: %w", err)
	}
	return collectTransactions(rows, "ListByStatus")
}

// SetPaymentDetails records the collection correlation issued at payment
// initiation. Guarded on Pending so a late initiation cannot clobber details
// of a transaction that already moved on.
func (r *TransactionRepository) SetPaymentDetails(ctx context.Context, id uuid.UUID, details *domain.PaymentDetails) error {
	blob, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("SetPaymentDetails: marshal: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		SET payment_details = $1, payment_reference_id = $2, updated_at = now()
		WHERE transaction_id = $3 AND status = $4`,
		blob, details.ReferenceID, id, domain.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("SetPaymentDetails: %w", err)
	}
	return r.resolveGuardedWrite(ctx, res, id, "SetPaymentDetails")
}

// MarkFunded applies the Pending → Funded transition together with the final
// payment details in one conditional write.
func (r *TransactionRepository) MarkFunded(ctx context.Context, id uuid.UUID, details *domain.PaymentDetails) error {
	blob, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("MarkFunded: marshal: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		SET status = $1, payment_details = $2, payment_reference_id = $3, updated_at = now()
		WHERE transaction_id = $4 AND status = $5`,
		domain.StatusFunded, blob, details.ReferenceID, id, domain.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("MarkFunded: %w", err)
	}
	return r.resolveGuardedWrite(ctx, res, id, "MarkFunded")
}

// MarkConverted applies Funded → Converted and stores the conversion
// outcome: rate, destination amount, and correlation details.
func (r *TransactionRepository) MarkConverted(ctx context.Context, id uuid.UUID, details *domain.ConversionDetails, rate decimal.Decimal, destinationAmount decimal.Decimal) error {
	blob, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("MarkConverted: marshal: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		SET status = $1, conversion_details = $2, exchange_rate = $3, destination_amount = $4, updated_at = now()
		WHERE transaction_id = $5 AND status = $6`,
		domain.StatusConverted, blob, rate, destinationAmount, id, domain.StatusFunded,
	)
	if err != nil {
		return fmt.Errorf("MarkConverted: %w", err)
	}
	return r.resolveGuardedWrite(ctx, res, id, "MarkConverted")
}

// MarkTransferred applies Converted → Transferred and records the Wise
// correlation, populating the indexed transfer_ref column for webhooks.
func (r *TransactionRepository) MarkTransferred(ctx context.Context, id uuid.UUID, details *domain.TransferDetails) error {
	blob, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("MarkTransferred: marshal: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		SET status = $1, transfer_details = $2, transfer_ref = $3, updated_at = now()
		WHERE transaction_id = $4 AND status = $5`,
		domain.StatusTransferred, blob, details.TransferID, id, domain.StatusConverted,
	)
	if err != nil {
		return fmt.Errorf("MarkTransferred: %w", err)
	}
	return r.resolveGuardedWrite(ctx, res, id, "MarkTransferred")
}

// UpdateStatus applies a bare conditional transition (used for
// Transferred → Completed, which carries no payload).
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status = $1, updated_at = now()
		WHERE transaction_id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return r.resolveGuardedWrite(ctx, res, id, "UpdateStatus")
}

// MarkFailed moves any non-terminal transaction to Failed with a reason.
// Terminal rows are left untouched and report ErrConflict.
func (r *TransactionRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status = $1, failure_reason = $2, updated_at = now()
		WHERE transaction_id = $3 AND status NOT IN ($4, $5)`,
		domain.StatusFailed, reason, id, domain.StatusCompleted, domain.StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return r.resolveGuardedWrite(ctx, res, id, "MarkFailed")
}

// resolveGuardedWrite distinguishes the two reasons a conditional UPDATE can
// match zero rows: the row is gone (NotFound) or its status moved under us
// (Conflict, caller re-reads and decides).
func (r *TransactionRepository) resolveGuardedWrite(ctx context.Context, res sql.Result, id uuid.UUID, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows > 0 {
		return nil
	}

	var status domain.TransactionStatus
	err = r.db.QueryRowContext(ctx,
		`SELECT status FROM transactions WHERE transaction_id = $1`, id,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: status is %s: %w", op, status, domain.ErrConflict)
}

func collectTransactions(rows *sql.Rows, op string) ([]domain.Transaction, error) {
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return txns, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var (
		t              domain.Transaction
		sourceAmount   decimal.Decimal
		sourceCurrency domain.Currency
		destAmount     decimal.NullDecimal
		destCurrency   domain.Currency
		exchangeRate   decimal.NullDecimal
		fees           decimal.Decimal
		recipientBlob  []byte
		paymentBlob    []byte
		conversionBlob []byte
		transferBlob   []byte
	)

	err := s.Scan(
		&t.ID, &t.UserID, &t.Status, &sourceAmount, &sourceCurrency,
		&destAmount, &destCurrency, &exchangeRate, &fees, &t.RecipientID,
		&recipientBlob, &paymentBlob, &conversionBlob, &transferBlob,
		&t.FailureReason, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.SourceAmount = domain.NewMoney(sourceAmount, sourceCurrency)
	t.Fees = domain.NewMoney(fees, sourceCurrency)
	if destAmount.Valid {
		m := domain.NewMoney(destAmount.Decimal, destCurrency)
		t.DestinationAmount = &m
	}
	if exchangeRate.Valid {
		t.ExchangeRate = &exchangeRate.Decimal
	}

	if err := json.Unmarshal(recipientBlob, &t.RecipientAccount); err != nil {
		return nil, fmt.Errorf("unmarshal recipient_account: %w", err)
	}
	if paymentBlob != nil {
		t.PaymentDetails = &domain.PaymentDetails{}
		if err := json.Unmarshal(paymentBlob, t.PaymentDetails); err != nil {
			return nil, fmt.Errorf("unmarshal payment_details: %w", err)
		}
	}
	if conversionBlob != nil {
		t.ConversionDetails = &domain.ConversionDetails{}
		if err := json.Unmarshal(conversionBlob, t.ConversionDetails); err != nil {
			return nil, fmt.Errorf("unmarshal conversion_details: %w", err)
		}
	}
	if transferBlob != nil {
		t.TransferDetails = &domain.TransferDetails{}
		if err := json.Unmarshal(transferBlob, t.TransferDetails); err != nil {
			return nil, fmt.Errorf("unmarshal transfer_details: %w", err)
		}
	}

	return &t, nil
}
