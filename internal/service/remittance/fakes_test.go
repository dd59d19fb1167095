package remittance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/remit-demo/remit-service/internal/config"
	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/integration"
)

// fakeLedger mirrors the conditional-write semantics of the Postgres
// repository: every transition checks the expected prior status under a
// single lock and reports ErrConflict when the guard fails.
type fakeLedger struct {
	mu   sync.Mutex
	txns map[uuid.UUID]*domain.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{txns: make(map[uuid.UUID]*domain.Transaction)}
}

func (l *fakeLedger) Create(_ context.Context, t *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *t
	l.txns[t.ID] = &cp
	return nil
}

func (l *fakeLedger) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (l *fakeLedger) GetByPaymentReference(_ context.Context, referenceID string) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.txns {
		if t.PaymentDetails != nil && t.PaymentDetails.ReferenceID == referenceID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (l *fakeLedger) GetByTransferID(_ context.Context, transferID string) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.txns {
		if t.TransferDetails != nil && t.TransferDetails.TransferID == transferID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (l *fakeLedger) ListByUser(_ context.Context, userID string, limit int) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Transaction
	for _, t := range l.txns {
		if t.UserID == userID && len(out) < limit {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (l *fakeLedger) guarded(id uuid.UUID, expected domain.TransactionStatus, apply func(*domain.Transaction)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txns[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Status != expected {
		return fmt.Errorf("status is %s: %w", t.Status, domain.ErrConflict)
	}
	apply(t)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (l *fakeLedger) SetPaymentDetails(_ context.Context, id uuid.UUID, details *domain.PaymentDetails) error {
	return l.guarded(id, domain.StatusPending, func(t *domain.Transaction) {
		t.PaymentDetails = details
	})
}

func (l *fakeLedger) MarkFunded(_ context.Context, id uuid.UUID, details *domain.PaymentDetails) error {
	return l.guarded(id, domain.StatusPending, func(t *domain.Transaction) {
		t.Status = domain.StatusFunded
		t.PaymentDetails = details
	})
}

func (l *fakeLedger) MarkConverted(_ context.Context, id uuid.UUID, details *domain.ConversionDetails, rate, destinationAmount decimal.Decimal) error {
	return l.guarded(id, domain.StatusFunded, func(t *domain.Transaction) {
		t.Status = domain.StatusConverted
		t.ConversionDetails = details
		t.ExchangeRate = &rate
		m := domain.NewMoney(destinationAmount, domain.CurrencyCAD)
		t.DestinationAmount = &m
	})
}

func (l *fakeLedger) MarkTransferred(_ context.Context, id uuid.UUID, details *domain.TransferDetails) error {
	return l.guarded(id, domain.StatusConverted, func(t *domain.Transaction) {
		t.Status = domain.StatusTransferred
		t.TransferDetails = details
	})
}

func (l *fakeLedger) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.TransactionStatus) error {
	return l.guarded(id, from, func(t *domain.Transaction) {
		t.Status = to
	})
}

func (l *fakeLedger) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txns[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("status is %s: %w", t.Status, domain.ErrConflict)
	}
	t.Status = domain.StatusFailed
	t.FailureReason = &reason
	return nil
}

func (l *fakeLedger) status(id uuid.UUID) domain.TransactionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txns[id].Status
}

type fakeUPI struct {
	createErr   error
	createCalls int
	status      integration.PaymentStatus
	statusErr   error
}

func (u *fakeUPI) CreatePayment(_ context.Context, amount decimal.Decimal, _ string) (*domain.PaymentDetails, error) {
	u.createCalls++
	if u.createErr != nil {
		return nil, u.createErr
	}
	return &domain.PaymentDetails{
		PaymentID:   "PAY-" + uuid.NewString()[:8],
		PaymentLink: "upi://pay?am=" + amount.String(),
		ReferenceID: uuid.NewString(),
	}, nil
}

func (u *fakeUPI) CheckStatus(_ context.Context, paymentID string) (integration.PaymentStatus, *domain.PaymentDetails, error) {
	if u.statusErr != nil {
		return "", nil, u.statusErr
	}
	now := time.Now().UTC()
	return u.status, &domain.PaymentDetails{PaymentID: paymentID, PaymentTime: &now}, nil
}

type fakeBank struct {
	rate decimal.Decimal
	err  error
}

func (b *fakeBank) Convert(_ context.Context, _, _ domain.Currency, sourceAmount decimal.Decimal) (*integration.ConversionResult, error) {
	if b.err != nil {
		return nil, b.err
	}
	now := time.Now().UTC()
	return &integration.ConversionResult{
		Details: &domain.ConversionDetails{
			ConversionID:   "CONV-" + uuid.NewString()[:8],
			ConversionTime: &now,
			ActualRate:     b.rate,
			ReferenceID:    uuid.NewString(),
		},
		Rate:              b.rate,
		DestinationAmount: sourceAmount.Mul(b.rate),
	}, nil
}

type fakeWise struct {
	createErr error
	status    integration.TransferStatus
	statusErr error
}

func (w *fakeWise) CreateTransfer(_ context.Context, _ decimal.Decimal, _ domain.BankAccountDetails, _ string) (*domain.TransferDetails, error) {
	if w.createErr != nil {
		return nil, w.createErr
	}
	now := time.Now().UTC()
	return &domain.TransferDetails{
		TransferID:   "TR-" + uuid.NewString()[:8],
		TransferTime: &now,
		ReferenceID:  uuid.NewString(),
	}, nil
}

func (w *fakeWise) CheckStatus(_ context.Context, _ string) (integration.TransferStatus, error) {
	return w.status, w.statusErr
}

type fakeUsers struct {
	eligibilityErr error
	recipientErr   error
}

func (u *fakeUsers) VerifyEligibility(_ context.Context, _ string) error {
	return u.eligibilityErr
}

func (u *fakeUsers) GetRecipient(_ context.Context, _, recipientID string) (*integration.RecipientDetails, error) {
	if u.recipientErr != nil {
		return nil, u.recipientErr
	}
	return &integration.RecipientDetails{
		RecipientID:       recipientID,
		Name:              "Priya Sharma",
		AccountHolderName: "Priya Sharma",
		AccountNumber:     "1234567890",
		BankName:          "Royal Bank of Canada",
		IFSCOrSwiftCode:   "ROYCCAT2",
	}, nil
}

func (u *fakeUsers) ListRecipients(ctx context.Context, userID string) ([]integration.RecipientDetails, error) {
	r, err := u.GetRecipient(ctx, userID, "recipient-1")
	if err != nil {
		return nil, err
	}
	return []integration.RecipientDetails{*r}, nil
}

type fakeRates struct {
	rate decimal.Decimal
	err  error
}

func (r *fakeRates) GetRate(_ context.Context, source, destination domain.Currency) (*domain.ExchangeRate, error) {
	if r.err != nil {
		return nil, r.err
	}
	return domain.NewExchangeRate(source, destination, r.rate, "test-provider"), nil
}

type testFixture struct {
	svc    *Service
	ledger *fakeLedger
	upi    *fakeUPI
	bank   *fakeBank
	wise   *fakeWise
	users  *fakeUsers
	rates  *fakeRates
}

func newTestService(autoAdvance bool) *testFixture {
	f := &testFixture{
		ledger: newFakeLedger(),
		upi:    &fakeUPI{status: integration.PaymentStatusCompleted},
		bank:   &fakeBank{rate: decimal.NewFromFloat(0.016)},
		wise:   &fakeWise{status: integration.TransferStatusCompleted},
		users:  &fakeUsers{},
		rates:  &fakeRates{rate: decimal.NewFromFloat(0.016)},
	}
	cfg := &config.Config{
		MinAmountINR:      1000,
		MaxAmountINR:      1000000,
		FeePercentage:     0.5,
		MinFeeINR:         100,
		AutoAdvanceStages: autoAdvance,
	}
	f.svc = NewService(f.ledger, f.upi, f.bank, f.wise, f.users, f.rates, cfg)
	return f
}

// seed puts a transaction directly into the fake ledger at the given status.
func (f *testFixture) seed(status domain.TransactionStatus) *domain.Transaction {
	txn := domain.NewTransaction("user-1", decimal.NewFromInt(50000), decimal.NewFromInt(250), "recipient-1", domain.BankAccountDetails{
		BankName:          "Royal Bank of Canada",
		AccountNumber:     "1234567890",
		AccountHolderName: "Priya Sharma",
		IFSCOrSwiftCode:   "ROYCCAT2",
	}, "")
	txn.Status = status
	txn.PaymentDetails = &domain.PaymentDetails{PaymentID: "PAY-1", ReferenceID: "REF-1"}
	if status == domain.StatusConverted || status == domain.StatusTransferred {
		rate := decimal.NewFromFloat(0.016)
		txn.ExchangeRate = &rate
		m := domain.NewMoney(decimal.NewFromInt(800), domain.CurrencyCAD)
		txn.DestinationAmount = &m
	}
	if status == domain.StatusTransferred {
		txn.TransferDetails = &domain.TransferDetails{TransferID: "TR-1"}
	}
	f.ledger.Create(context.Background(), txn)
	return txn
}
