package telebotConverter

import (
	"testing"
	"time"

	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/model/tg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioResponse(t *testing.T) {
	portfolio := model.Portfolio{
		Positions: []model.Position{{
			Holding: model.Holding{Symbol: "AAPL", CompanyName: "Apple Inc.", Shares: 2, LastPrice: decimal.RequireFromString("150")},
			Value:   decimal.RequireFromString("300"),
		}},
		Cash:  decimal.RequireFromString("9700"),
		Total: decimal.RequireFromString("10000"),
	}

	text, markup := PortfolioResponse(portfolio)

	assert.Contains(t, text, "AAPL (Apple Inc.)")
	assert.Contains(t, text, "Shares: 2")
	assert.Contains(t, text, "Cash: $9,700.00")
	assert.Contains(t, text, "Total: $10,000.00")

	require.Len(t, markup.InlineKeyboard, 2)
	sell := markup.InlineKeyboard[0][0]
	assert.Equal(t, "Sell AAPL", sell.Text)
	assert.Equal(t, tg.SellCallback, sell.Unique)
	assert.Equal(t, "AAPL", sell.Data)
}

func TestPortfolioResponseEmpty(t *testing.T) {
	text, markup := PortfolioResponse(model.Portfolio{Cash: decimal.RequireFromString("10000"), Total: decimal.RequireFromString("10000")})

	assert.Contains(t, text, "No holdings yet")
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, tg.RefreshCallback, markup.InlineKeyboard[0][0].Unique)
}

func TestQuoteResponse(t *testing.T) {
	text, markup := QuoteResponse(model.Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.RequireFromString("150.13")})

	assert.Equal(t, "A share of Apple Inc. (AAPL) costs $150.13.", text)
	assert.Equal(t, tg.BuyCallback, markup.InlineKeyboard[0][0].Unique)
}

func TestTradeResponse(t *testing.T) {
	trade := model.Trade{
		Entry: model.LedgerEntry{
			Symbol: "AAPL",
			Side:   model.SideSell,
			Shares: 2,
			Price:  decimal.RequireFromString("160"),
			Total:  decimal.RequireFromString("320"),
		},
		Cash: decimal.RequireFromString("10020"),
	}

	text := TradeResponse(trade)
	assert.Contains(t, text, "Sold 2 × AAPL at $160.00 for $320.00.")
	assert.Contains(t, text, "Shares left: 0")
	assert.Contains(t, text, "Cash: $10,020.00")
}

func TestHistoryResponse(t *testing.T) {
	assert.Equal(t, "No transactions yet.", HistoryResponse(nil))

	text := HistoryResponse([]model.LedgerEntry{{
		Symbol:    "AAPL",
		Side:      model.SideBuy,
		Shares:    2,
		Price:     decimal.RequireFromString("150"),
		Total:     decimal.RequireFromString("300"),
		CreatedAt: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
	}})
	assert.Contains(t, text, "2024-03-01 10:30 BUY 2 × AAPL at $150.00 = $300.00")
}
