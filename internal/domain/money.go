package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyCAD Currency = "CAD"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyINR, CurrencyCAD:
		return true
	}
	return false
}

// Money is a fixed-precision amount in a single currency. All monetary
// arithmetic in the service goes through this type; floats never touch money.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("Add: %s + %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// Convert applies an exchange rate and yields an amount in the target currency.
func (m Money) Convert(rate decimal.Decimal, target Currency) Money {
	return Money{Amount: m.Amount.Mul(rate), Currency: target}
}

func (m Money) String() string {
	return m.Amount.String() + " " + string(m.Currency)
}
