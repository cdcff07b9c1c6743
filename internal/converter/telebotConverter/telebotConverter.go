package telebotConverter

import (
	"fmt"
	"strings"

	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/model/tg"
	"github.com/KotFed0t/finance_simulator/utils"
	tele "gopkg.in/telebot.v4"
)

const historyTimeLayout = "2006-01-02 15:04"

func PortfolioResponse(portfolio model.Portfolio) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString("📊 Portfolio\n\n")

	sellBtns := make([]tele.Btn, 0, len(portfolio.Positions))
	for i, p := range portfolio.Positions {
		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, p.Symbol, p.CompanyName))
		sb.WriteString(fmt.Sprintf("   ▸ Shares: %d\n", p.Shares))
		sb.WriteString(fmt.Sprintf("   ▸ Price: %s\n", utils.USD(p.LastPrice)))
		sb.WriteString(fmt.Sprintf("   ▸ Value: %s\n\n", utils.USD(p.Value)))

		sellBtns = append(sellBtns, markup.Data("Sell "+p.Symbol, tg.SellCallback, p.Symbol))
	}

	if len(portfolio.Positions) == 0 {
		sb.WriteString("No holdings yet, try /quote\n\n")
	}

	sb.WriteString(fmt.Sprintf("💵 Cash: %s\n", utils.USD(portfolio.Cash)))
	sb.WriteString(fmt.Sprintf("💰 Total: %s\n", utils.USD(portfolio.Total)))

	rows := make([]tele.Row, 0, len(sellBtns)/3+2)
	rows = append(rows, markup.Split(3, sellBtns)...)
	rows = append(rows, markup.Row(markup.Data("🔄 Refresh", tg.RefreshCallback)))
	markup.Inline(rows...)

	return sb.String(), markup
}

func QuoteResponse(quote model.Quote) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("Buy "+quote.Symbol, tg.BuyCallback, quote.Symbol)))
	return fmt.Sprintf("A share of %s (%s) costs %s.", quote.Name, quote.Symbol, utils.USD(quote.Price)), markup
}

func TradeResponse(trade model.Trade) string {
	verb := "Bought"
	if trade.Entry.Side == model.SideSell {
		verb = "Sold"
	}
	return fmt.Sprintf(
		"%s %d × %s at %s for %s.\nShares left: %d\nCash: %s",
		verb,
		trade.Entry.Shares,
		trade.Entry.Symbol,
		utils.USD(trade.Entry.Price),
		utils.USD(trade.Entry.Total),
		trade.Holding.Shares,
		utils.USD(trade.Cash),
	)
}

func HistoryResponse(entries []model.LedgerEntry) string {
	if len(entries) == 0 {
		return "No transactions yet."
	}

	var sb strings.Builder
	sb.WriteString("🧾 History\n\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf(
			"%s %s %d × %s at %s = %s\n",
			e.CreatedAt.Format(historyTimeLayout),
			e.Side,
			e.Shares,
			e.Symbol,
			utils.USD(e.Price),
			utils.USD(e.Total),
		))
	}
	return sb.String()
}
