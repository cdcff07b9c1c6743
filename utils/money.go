package utils

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// USD formats an amount as US dollars, e.g. "$1,234.56".
func USD(amount decimal.Decimal) string {
	cents := amount.Mul(hundred).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}
