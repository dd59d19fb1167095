package remittance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/integration"
)

func TestCalculateFee(t *testing.T) {
	f := newTestService(false)

	tests := []struct {
		name   string
		amount int64
		want   int64
	}{
		{"minimum amount hits fee floor", 1000, 100},
		{"percentage below floor", 5000, 100},
		{"boundary where percentage equals floor", 20000, 100},
		{"percentage above floor", 50000, 250},
		{"maximum amount", 1000000, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := f.svc.CalculateFee(decimal.NewFromInt(tt.amount))
			assert.True(t, fee.Equal(decimal.NewFromInt(tt.want)),
				"fee for %d: got %s, want %d", tt.amount, fee, tt.want)
		})
	}
}

func TestCreate(t *testing.T) {
	f := newTestService(false)

	result, err := f.svc.Create(context.Background(), CreateParams{
		UserID:      "user-1",
		AmountINR:   decimal.NewFromInt(50000),
		RecipientID: "recipient-1",
	})
	require.NoError(t, err)

	txn := result.Transaction
	assert.Equal(t, domain.StatusPending, txn.Status)
	assert.True(t, txn.Fees.Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "Royal Bank of Canada", txn.RecipientAccount.BankName)
	assert.NotEmpty(t, result.PaymentLink)
	require.NotNil(t, txn.PaymentDetails)
	assert.NotEmpty(t, txn.PaymentDetails.ReferenceID)

	stored, err := f.ledger.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	require.NotNil(t, stored.PaymentDetails)
}

func TestCreate_AmountOutOfRange(t *testing.T) {
	f := newTestService(false)

	for _, amount := range []int64{999, 1000001} {
		_, err := f.svc.Create(context.Background(), CreateParams{
			UserID:      "user-1",
			AmountINR:   decimal.NewFromInt(amount),
			RecipientID: "recipient-1",
		})
		assert.ErrorIs(t, err, domain.ErrAmountOutOfRange, "amount %d", amount)
	}
}

func TestCreate_NotesTooLong(t *testing.T) {
	f := newTestService(false)

	notes := make([]byte, 501)
	for i := range notes {
		notes[i] = 'a'
	}
	_, err := f.svc.Create(context.Background(), CreateParams{
		UserID:      "user-1",
		AmountINR:   decimal.NewFromInt(50000),
		RecipientID: "recipient-1",
		Notes:       string(notes),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreate_IneligibleUser(t *testing.T) {
	f := newTestService(false)
	f.users.eligibilityErr = domain.ErrIneligibleUser

	_, err := f.svc.Create(context.Background(), CreateParams{
		UserID:      "user-1",
		AmountINR:   decimal.NewFromInt(50000),
		RecipientID: "recipient-1",
	})
	assert.ErrorIs(t, err, domain.ErrIneligibleUser)
}

func TestCreate_RecipientNotFound(t *testing.T) {
	f := newTestService(false)
	f.users.recipientErr = domain.ErrRecipientNotFound

	_, err := f.svc.Create(context.Background(), CreateParams{
		UserID:      "user-1",
		AmountINR:   decimal.NewFromInt(50000),
		RecipientID: "missing",
	})
	assert.ErrorIs(t, err, domain.ErrRecipientNotFound)
}

func TestInitiatePayment_RetriesAfterFailedCreate(t *testing.T) {
	f := newTestService(false)
	f.upi.createErr = errors.New("gateway timeout")

	_, err := f.svc.Create(context.Background(), CreateParams{
		UserID:      "user-1",
		AmountINR:   decimal.NewFromInt(50000),
		RecipientID: "recipient-1",
	})
	require.Error(t, err)

	// The transaction persisted before the gateway call and is stranded
	// Pending with no payment details.
	txns, err := f.svc.ListTransactions(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Nil(t, txns[0].PaymentDetails)

	f.upi.createErr = nil
	link, err := f.svc.InitiatePayment(context.Background(), "user-1", txns[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, link)

	stored, err := f.ledger.GetByID(context.Background(), txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	require.NotNil(t, stored.PaymentDetails)
	assert.NotEmpty(t, stored.PaymentDetails.ReferenceID)
}

func TestInitiatePayment_AlreadyInitiatedReturnsExistingLink(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusPending)
	require.NoError(t, f.ledger.SetPaymentDetails(context.Background(), txn.ID, &domain.PaymentDetails{
		PaymentID:   "PAY-1",
		PaymentLink: "upi://pay?tr=REF-1",
		ReferenceID: "REF-1",
	}))

	link, err := f.svc.InitiatePayment(context.Background(), "user-1", txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "upi://pay?tr=REF-1", link)
	assert.Zero(t, f.upi.createCalls, "no second collection request for an initiated payment")
}

func TestInitiatePayment_NonPending(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusFunded)

	_, err := f.svc.InitiatePayment(context.Background(), "user-1", txn.ID)
	var ise *domain.InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, domain.StatusFunded, ise.Current)
	assert.Equal(t, domain.StatusPending, ise.Expected)
}

func TestProcessPayment(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusPending)

	err := f.svc.ProcessPayment(context.Background(), txn.ID, &domain.PaymentDetails{PaymentID: "PAY-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFunded, f.ledger.status(txn.ID))
}

func TestProcessPayment_AutoAdvance(t *testing.T) {
	f := newTestService(true)
	txn := f.seed(domain.StatusPending)

	err := f.svc.ProcessPayment(context.Background(), txn.ID, &domain.PaymentDetails{PaymentID: "PAY-1"})
	require.NoError(t, err)

	// Funding chains conversion and transfer; completion waits for the
	// delivery confirmation from Wise.
	assert.Equal(t, domain.StatusTransferred, f.ledger.status(txn.ID))

	stored, err := f.ledger.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ConversionDetails)
	require.NotNil(t, stored.TransferDetails)
	require.NotNil(t, stored.DestinationAmount)
	assert.True(t, stored.DestinationAmount.Amount.Equal(decimal.NewFromInt(800)))
}

func TestProcessPayment_InvalidState(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusFunded)

	err := f.svc.ProcessPayment(context.Background(), txn.ID, nil)
	var ise *domain.InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, domain.StatusFunded, ise.Current)
	assert.Equal(t, domain.StatusPending, ise.Expected)
}

func TestProcessPayment_ConcurrentOnlyOneWins(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusPending)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.ProcessPayment(context.Background(), txn.ID, &domain.PaymentDetails{PaymentID: "PAY-1"})
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			var ise *domain.InvalidStateError
			require.ErrorAs(t, err, &ise, "unexpected error: %v", err)
			conflicts++
		}
	}
	assert.Equal(t, 1, successes, "exactly one writer should apply the transition")
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, domain.StatusFunded, f.ledger.status(txn.ID))
}

func TestConvertFunds_ProviderFailureLeavesFunded(t *testing.T) {
	f := newTestService(false)
	f.bank.err = domain.NewExternalServiceError("ad_bank", errors.New("connection refused"))
	txn := f.seed(domain.StatusFunded)

	err := f.svc.ConvertFunds(context.Background(), txn.ID)
	require.Error(t, err)

	var ese *domain.ExternalServiceError
	assert.ErrorAs(t, err, &ese)
	assert.Equal(t, domain.StatusFunded, f.ledger.status(txn.ID),
		"a failed provider call must not advance or fail the transaction")

	// Once the provider recovers the same stage succeeds.
	f.bank.err = nil
	require.NoError(t, f.svc.ConvertFunds(context.Background(), txn.ID))
	assert.Equal(t, domain.StatusConverted, f.ledger.status(txn.ID))
}

func TestTransferFunds_ProviderFailureLeavesConverted(t *testing.T) {
	f := newTestService(false)
	f.wise.createErr = domain.NewExternalServiceError("wise", errors.New("connection refused"))
	txn := f.seed(domain.StatusConverted)

	err := f.svc.TransferFunds(context.Background(), txn.ID)
	require.Error(t, err)
	assert.Equal(t, domain.StatusConverted, f.ledger.status(txn.ID))

	f.wise.createErr = nil
	require.NoError(t, f.svc.TransferFunds(context.Background(), txn.ID))
	assert.Equal(t, domain.StatusTransferred, f.ledger.status(txn.ID))
}

func TestProcessPayment_AutoAdvanceConversionFailureLeavesFunded(t *testing.T) {
	f := newTestService(true)
	f.bank.err = domain.NewExternalServiceError("ad_bank", errors.New("connection refused"))
	txn := f.seed(domain.StatusPending)

	// The funding transition stays committed; the failed chained stage
	// leaves the transaction waiting for a conversion retry.
	err := f.svc.ProcessPayment(context.Background(), txn.ID, &domain.PaymentDetails{PaymentID: "PAY-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFunded, f.ledger.status(txn.ID))
}

func TestTransferFunds(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusConverted)

	err := f.svc.TransferFunds(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTransferred, f.ledger.status(txn.ID))
}

func TestTransferFunds_InvalidState(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusPending)

	err := f.svc.TransferFunds(context.Background(), txn.ID)
	var ise *domain.InvalidStateError
	require.ErrorAs(t, err, &ise)
}

func TestCompleteTransaction(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusTransferred)

	require.NoError(t, f.svc.CompleteTransaction(context.Background(), txn.ID))
	assert.Equal(t, domain.StatusCompleted, f.ledger.status(txn.ID))
}

func TestCompleteTransaction_InvalidState(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusFunded)

	err := f.svc.CompleteTransaction(context.Background(), txn.ID)
	var ise *domain.InvalidStateError
	require.ErrorAs(t, err, &ise)
}

func TestFailTransaction_TerminalIsConflict(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusTransferred)
	require.NoError(t, f.svc.CompleteTransaction(context.Background(), txn.ID))

	err := f.svc.FailTransaction(context.Background(), txn.ID, "late failure")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.StatusCompleted, f.ledger.status(txn.ID))
}

func TestGetTransaction_OwnershipHidesOthers(t *testing.T) {
	f := newTestService(false)
	txn := f.seed(domain.StatusPending)

	_, err := f.svc.GetTransaction(context.Background(), "someone-else", txn.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.svc.GetTransaction(context.Background(), "user-1", txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
}

func TestCheckPaymentStatus_AppliesCompletion(t *testing.T) {
	f := newTestService(false)
	f.upi.status = integration.PaymentStatusCompleted
	txn := f.seed(domain.StatusPending)

	status, err := f.svc.CheckPaymentStatus(context.Background(), "user-1", txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFunded, status)
	assert.Equal(t, domain.StatusFunded, f.ledger.status(txn.ID))
}

func TestCheckPaymentStatus_ExpiredFails(t *testing.T) {
	f := newTestService(false)
	f.upi.status = integration.PaymentStatusExpired
	txn := f.seed(domain.StatusPending)

	status, err := f.svc.CheckPaymentStatus(context.Background(), "user-1", txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, status)
	assert.Equal(t, domain.StatusFailed, f.ledger.status(txn.ID))
}

func TestCheckPaymentStatus_NonPendingIsNoOp(t *testing.T) {
	f := newTestService(false)
	f.upi.statusErr = errors.New("should not poll the gateway")

	for _, seeded := range []domain.TransactionStatus{
		domain.StatusFunded,
		domain.StatusConverted,
		domain.StatusFailed,
	} {
		txn := f.seed(seeded)
		status, err := f.svc.CheckPaymentStatus(context.Background(), "user-1", txn.ID)
		require.NoError(t, err, "status %s", seeded)
		assert.Equal(t, seeded, status, "current status comes back unchanged")
	}
}

func TestCheckTransferStatus_CompletesDelivery(t *testing.T) {
	f := newTestService(false)
	f.wise.status = integration.TransferStatusCompleted
	txn := f.seed(domain.StatusTransferred)

	status, err := f.svc.CheckTransferStatus(context.Background(), "user-1", txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	assert.Equal(t, domain.StatusCompleted, f.ledger.status(txn.ID))
}

func TestCheckTransferStatus_NonTransferredIsNoOp(t *testing.T) {
	f := newTestService(false)
	f.wise.statusErr = errors.New("should not poll wise")

	for _, seeded := range []domain.TransactionStatus{
		domain.StatusPending,
		domain.StatusFunded,
		domain.StatusConverted,
		domain.StatusFailed,
	} {
		txn := f.seed(seeded)
		status, err := f.svc.CheckTransferStatus(context.Background(), "user-1", txn.ID)
		require.NoError(t, err, "status %s", seeded)
		assert.Equal(t, seeded, status, "current status comes back unchanged")
	}
}

func TestListRecipients(t *testing.T) {
	f := newTestService(false)

	recipients, err := f.svc.ListRecipients(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "recipient-1", recipients[0].RecipientID)
}

func TestGetQuote(t *testing.T) {
	f := newTestService(false)

	quote, err := f.svc.GetQuote(context.Background(), decimal.NewFromInt(50000))
	require.NoError(t, err)
	assert.True(t, quote.Fee.Equal(decimal.NewFromInt(250)))
	assert.True(t, quote.TotalCharge.Equal(decimal.NewFromInt(50250)))
	assert.True(t, quote.EstimatedCAD.Equal(decimal.NewFromInt(800)))
}
