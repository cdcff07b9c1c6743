package quoteModel

import "github.com/shopspring/decimal"

// RawQuote is the quote payload of the IEX-compatible API.
type RawQuote struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"companyName"`
	LatestPrice decimal.Decimal `json:"latestPrice"`
}
