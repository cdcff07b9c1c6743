package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	UserID       int64
	Username     string
	PasswordHash string
	Cash         decimal.Decimal
	InitialCash  decimal.Decimal
	CreatedAt    time.Time
}
