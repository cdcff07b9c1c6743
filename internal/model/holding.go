package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Holding struct {
	UserID      int64
	Symbol      string
	CompanyName string
	Shares      int
	LastPrice   decimal.Decimal
	UpdatedAt   time.Time
}

// Value is the holding marked at its last known price.
func (h Holding) Value() decimal.Decimal {
	return h.LastPrice.Mul(decimal.NewFromInt(int64(h.Shares)))
}
