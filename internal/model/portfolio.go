package model

import "github.com/shopspring/decimal"

type Position struct {
	Holding
	Value decimal.Decimal
}

type Portfolio struct {
	Positions []Position
	Cash      decimal.Decimal
	Total     decimal.Decimal
}

// PortfolioReport is everything exported for one account.
type PortfolioReport struct {
	Username  string
	Portfolio Portfolio
	History   []LedgerEntry
}
