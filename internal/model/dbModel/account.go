package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	UserID       int64           `db:"user_id"`
	Username     string          `db:"username"`
	PasswordHash string          `db:"password_hash"`
	Cash         decimal.Decimal `db:"cash"`
	InitialCash  decimal.Decimal `db:"initial_cash"`
	CreatedAt    time.Time       `db:"created_at"`
}

type LedgerTotals struct {
	UserID      int64           `db:"user_id"`
	Username    string          `db:"username"`
	Cash        decimal.Decimal `db:"cash"`
	InitialCash decimal.Decimal `db:"initial_cash"`
	Bought      decimal.Decimal `db:"bought"`
	Sold        decimal.Decimal `db:"sold"`
}
