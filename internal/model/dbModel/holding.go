package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Holding struct {
	UserID      int64           `db:"user_id"`
	Symbol      string          `db:"symbol"`
	CompanyName string          `db:"company_name"`
	Shares      int             `db:"shares"`
	LastPrice   decimal.Decimal `db:"last_price"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

type LedgerEntry struct {
	HistoryID   int64           `db:"history_id"`
	UserID      int64           `db:"user_id"`
	Symbol      string          `db:"symbol"`
	CompanyName string          `db:"company_name"`
	Side        string          `db:"side"`
	Shares      int             `db:"shares"`
	Price       decimal.Decimal `db:"price"`
	Total       decimal.Decimal `db:"total"`
	CreatedAt   time.Time       `db:"created_at"`
}
