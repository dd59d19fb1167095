package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/remit-demo/remit-service/internal/domain"
	"github.com/remit-demo/remit-service/internal/repository"
)

var TestRecipientAccount = domain.BankAccountDetails{
	BankName:          "Royal Bank of Canada",
	AccountNumber:     "1234567890",
	AccountHolderName: "Priya Sharma",
	IFSCOrSwiftCode:   "ROYCCAT2",
}

// SeedTransaction inserts a fresh Pending transaction with the standard
// 0.5% / 100 INR minimum fee applied.
func SeedTransaction(t *testing.T, db *sql.DB, userID string, amountINR int64) *domain.Transaction {
	t.Helper()

	amount := decimal.NewFromInt(amountINR)
	fee := decimal.Max(amount.Mul(decimal.NewFromFloat(0.5)).Div(decimal.NewFromInt(100)), decimal.NewFromInt(100))

	txn := domain.NewTransaction(userID, amount, fee, "recipient-1", TestRecipientAccount, "")

	repo := repository.NewTransactionRepository(db)
	if err := repo.Create(context.Background(), txn); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return txn
}

// SeedRate inserts a quote for INR to CAD at the given rate, quoted at the
// given time.
func SeedRate(t *testing.T, db *sql.DB, rate float64, quotedAt time.Time) *domain.ExchangeRate {
	t.Helper()

	quote := domain.NewExchangeRate(domain.CurrencyINR, domain.CurrencyCAD, decimal.NewFromFloat(rate), "ad-bank")
	quote.QuotedAt = quotedAt

	repo := repository.NewExchangeRateRepository(db)
	if err := repo.Insert(context.Background(), quote); err != nil {
		t.Fatalf("seed exchange rate: %v", err)
	}
	return quote
}

func GetTransactionStatus(t *testing.T, db *sql.DB, id string) string {
	t.Helper()

	var status string
	err := db.QueryRow(`SELECT status FROM transactions WHERE transaction_id = $1`, id).Scan(&status)
	if err != nil {
		t.Fatalf("get transaction status %s: %v", id, err)
	}
	return status
}
