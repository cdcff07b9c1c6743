package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// LedgerEntry is one executed trade. Shares is always positive, Side gives the direction.
type LedgerEntry struct {
	ID          int64
	UserID      int64
	Symbol      string
	CompanyName string
	Side        Side
	Shares      int
	Price       decimal.Decimal
	Total       decimal.Decimal
	CreatedAt   time.Time
}

// CashDelta is the effect of the entry on the account cash balance.
func (e LedgerEntry) CashDelta() decimal.Decimal {
	if e.Side == SideBuy {
		return e.Total.Neg()
	}
	return e.Total
}

// Trade is the result of a buy or sell.
type Trade struct {
	Entry   LedgerEntry
	Cash    decimal.Decimal
	Holding Holding
}

// LedgerTotals aggregates an account's history for reconciliation.
type LedgerTotals struct {
	UserID      int64
	Username    string
	Cash        decimal.Decimal
	InitialCash decimal.Decimal
	Bought      decimal.Decimal
	Sold        decimal.Decimal
}

// Expected is the cash balance the history implies.
func (t LedgerTotals) Expected() decimal.Decimal {
	return t.InitialCash.Sub(t.Bought).Add(t.Sold)
}

func (t LedgerTotals) Reconciled() bool {
	return t.Expected().Equal(t.Cash)
}
