package ledgerService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/finance_simulator/data/repository"
	"github.com/KotFed0t/finance_simulator/internal/externalApi"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/service"
	"github.com/KotFed0t/finance_simulator/utils"
	"github.com/shopspring/decimal"
)

// priceScale matches the NUMERIC(20,4) money columns. Prices are rounded to it before any
// arithmetic so the stored cash always equals initial cash - bought + sold.
const priceScale = 4

type QuoteApi interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
}

type Cache interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	SetQuote(ctx context.Context, quote model.Quote) error
	SetQuotes(ctx context.Context, quotes []model.Quote) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.PortfolioReport) (fileBytes []byte, fileExtension string, err error)
}

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error

	GetUser(ctx context.Context, userID int64) (model.Account, error)
	LockAccount(ctx context.Context, userID int64) (model.Account, error)
	UpdateCash(ctx context.Context, userID int64, cash decimal.Decimal) error
	GetLedgerTotals(ctx context.Context) ([]model.LedgerTotals, error)

	GetHolding(ctx context.Context, userID int64, symbol string) (model.Holding, error)
	GetHoldingForUpdate(ctx context.Context, userID int64, symbol string) (model.Holding, error)
	UpsertHolding(ctx context.Context, userID int64, symbol, companyName string, shares int, price decimal.Decimal) (model.Holding, error)
	UpdateHolding(ctx context.Context, userID int64, symbol string, shares int, price decimal.Decimal) error
	DeleteHolding(ctx context.Context, userID int64, symbol string) error
	GetHoldings(ctx context.Context, userID int64) ([]model.Holding, error)
	GetHeldSymbols(ctx context.Context) ([]string, error)
	UpdateLastPrice(ctx context.Context, symbol string, price decimal.Decimal) error

	InsertLedgerEntry(ctx context.Context, entry model.LedgerEntry) (model.LedgerEntry, error)
	GetLedgerEntries(ctx context.Context, userID int64) ([]model.LedgerEntry, error)
}

// LedgerService is the only writer of cash balances, holdings and history.
type LedgerService struct {
	repo            Repository
	cache           Cache
	quoteApi        QuoteApi
	reportGenerator ReportGenerator
}

func New(repo Repository, cache Cache, quoteApi QuoteApi, reportGenerator ReportGenerator) *LedgerService {
	return &LedgerService{
		repo:            repo,
		cache:           cache,
		quoteApi:        quoteApi,
		reportGenerator: reportGenerator,
	}
}

// ParseQuantity converts user input into a positive share count.
func ParseQuantity(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, service.ErrInvalidQuantity
	}

	// shares columns are INTEGER
	quantity, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || quantity < 1 {
		return 0, service.ErrInvalidQuantity
	}

	return int(quantity), nil
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func finish(rqID, op string, err error) {
	switch {
	case err == nil:
		slog.Debug(op+" completed", slog.String("rqID", rqID), slog.String("op", op))
	case service.IsUserError(err):
		slog.Info(op+" rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("reason", err.Error()))
	default:
		slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}
}

// Quote looks up the current price of symbol. Cached quotes are acceptable here since nothing is traded.
func (s *LedgerService) Quote(ctx context.Context, symbol string) (quote model.Quote, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Quote"

	slog.Debug("Quote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() { finish(rqID, op, err) }()

	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return model.Quote{}, service.ErrMissingSymbol
	}

	quote, err = s.cache.GetQuote(ctx, symbol)
	if err == nil {
		return quote, nil
	}
	slog.Debug("quote not taken from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("reason", err.Error()))

	return s.freshQuote(ctx, symbol)
}

// freshQuote always asks the price source and refreshes the cache on success.
func (s *LedgerService) freshQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	quote, err := s.quoteApi.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			return model.Quote{}, service.ErrUnknownSymbol
		}
		return model.Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	quote.Price = quote.Price.Round(priceScale)

	if err = s.cache.SetQuote(ctx, quote); err != nil {
		slog.Warn("can't cache quote", slog.String("rqID", rqID), slog.String("symbol", symbol), slog.String("err", err.Error()))
	}

	return quote, nil
}

// Buy debits quantity × current price from the user's cash and adds the shares to the holding.
func (s *LedgerService) Buy(ctx context.Context, userID int64, symbol, rawQuantity string) (trade model.Trade, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Buy"

	slog.Debug(
		"Buy start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("symbol", symbol),
		slog.String("quantity", rawQuantity),
	)
	defer func() { finish(rqID, op, err) }()

	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return model.Trade{}, service.ErrMissingSymbol
	}

	quantity, err := ParseQuantity(rawQuantity)
	if err != nil {
		return model.Trade{}, err
	}

	// the price source is asked before the transaction so no row lock is held over network calls
	quote, err := s.freshQuote(ctx, symbol)
	if err != nil {
		return model.Trade{}, err
	}

	total := quote.Price.Mul(decimal.NewFromInt(int64(quantity)))

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		account, err := s.repo.LockAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		if total.GreaterThan(account.Cash) {
			return service.ErrInsufficientFunds
		}

		cash := account.Cash.Sub(total)
		if err = s.repo.UpdateCash(ctx, userID, cash); err != nil {
			if errors.Is(err, repository.ErrCheckViolation) {
				return service.ErrInsufficientFunds
			}
			return fmt.Errorf("update cash: %w", err)
		}

		holding, err := s.repo.UpsertHolding(ctx, userID, quote.Symbol, quote.Name, quantity, quote.Price)
		if err != nil {
			return fmt.Errorf("upsert holding: %w", err)
		}

		entry, err := s.repo.InsertLedgerEntry(ctx, model.LedgerEntry{
			UserID:      userID,
			Symbol:      quote.Symbol,
			CompanyName: quote.Name,
			Side:        model.SideBuy,
			Shares:      quantity,
			Price:       quote.Price,
			Total:       total,
		})
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}

		trade = model.Trade{Entry: entry, Cash: cash, Holding: holding}
		return nil
	})
	if err != nil {
		return model.Trade{}, err
	}

	return trade, nil
}

// Sell removes quantity shares from the holding and credits them at the price quoted now.
// The holding is deleted when no shares are left.
func (s *LedgerService) Sell(ctx context.Context, userID int64, symbol, rawQuantity string) (trade model.Trade, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Sell"

	slog.Debug(
		"Sell start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("symbol", symbol),
		slog.String("quantity", rawQuantity),
	)
	defer func() { finish(rqID, op, err) }()

	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return model.Trade{}, service.ErrMissingSymbol
	}

	quantity, err := ParseQuantity(rawQuantity)
	if err != nil {
		return model.Trade{}, err
	}

	// cheap check without locks, repeated under the lock below
	holding, err := s.repo.GetHolding(ctx, userID, symbol)
	if err = checkShares(holding, quantity, err); err != nil {
		return model.Trade{}, err
	}

	quote, err := s.freshQuote(ctx, symbol)
	if err != nil {
		return model.Trade{}, err
	}

	total := quote.Price.Mul(decimal.NewFromInt(int64(quantity)))

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		account, err := s.repo.LockAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		holding, err := s.repo.GetHoldingForUpdate(ctx, userID, symbol)
		if err = checkShares(holding, quantity, err); err != nil {
			return err
		}

		holding.Shares -= quantity
		holding.LastPrice = quote.Price
		if holding.Shares == 0 {
			err = s.repo.DeleteHolding(ctx, userID, symbol)
		} else {
			err = s.repo.UpdateHolding(ctx, userID, symbol, holding.Shares, quote.Price)
		}
		if err != nil {
			return fmt.Errorf("update holding: %w", err)
		}

		cash := account.Cash.Add(total)
		if err = s.repo.UpdateCash(ctx, userID, cash); err != nil {
			return fmt.Errorf("update cash: %w", err)
		}

		entry, err := s.repo.InsertLedgerEntry(ctx, model.LedgerEntry{
			UserID:      userID,
			Symbol:      symbol,
			CompanyName: holding.CompanyName,
			Side:        model.SideSell,
			Shares:      quantity,
			Price:       quote.Price,
			Total:       total,
		})
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}

		trade = model.Trade{Entry: entry, Cash: cash, Holding: holding}
		return nil
	})
	if err != nil {
		return model.Trade{}, err
	}

	return trade, nil
}

func checkShares(holding model.Holding, quantity int, err error) error {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrInsufficientShares
		}
		return fmt.Errorf("get holding: %w", err)
	}
	if holding.Shares < quantity {
		return service.ErrInsufficientShares
	}
	return nil
}

// Valuate prices every holding at its last known price. It never writes.
func (s *LedgerService) Valuate(ctx context.Context, userID int64) (portfolio model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Valuate"

	slog.Debug("Valuate start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() { finish(rqID, op, err) }()

	account, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("get user: %w", err)
	}

	holdings, err := s.repo.GetHoldings(ctx, userID)
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("get holdings: %w", err)
	}

	portfolio = model.Portfolio{
		Positions: make([]model.Position, 0, len(holdings)),
		Cash:      account.Cash,
		Total:     account.Cash,
	}
	for _, h := range holdings {
		if h.Shares <= 0 {
			continue
		}
		value := h.Value()
		portfolio.Positions = append(portfolio.Positions, model.Position{Holding: h, Value: value})
		portfolio.Total = portfolio.Total.Add(value)
	}

	return portfolio, nil
}

// History returns every trade of the user, oldest first.
func (s *LedgerService) History(ctx context.Context, userID int64) (entries []model.LedgerEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.History"

	slog.Debug("History start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() { finish(rqID, op, err) }()

	entries, err = s.repo.GetLedgerEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get ledger entries: %w", err)
	}

	return entries, nil
}

// ExportReport renders the valuation and the history of the user into a file.
func (s *LedgerService) ExportReport(ctx context.Context, userID int64) (fileBytes []byte, filename string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.ExportReport"

	slog.Debug("ExportReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() { finish(rqID, op, err) }()

	account, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	portfolio, err := s.Valuate(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	history, err := s.History(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	fileBytes, ext, err := s.reportGenerator.Generate(ctx, model.PortfolioReport{
		Username:  account.Username,
		Portfolio: portfolio,
		History:   history,
	})
	if err != nil {
		return nil, "", fmt.Errorf("generate report: %w", err)
	}

	filename = fmt.Sprintf("portfolio_%s_%s%s", account.Username, time.Now().UTC().Format("20060102_150405"), ext)

	return fileBytes, filename, nil
}

// RefreshPrices re-quotes every held symbol and marks holdings at the new price.
func (s *LedgerService) RefreshPrices(ctx context.Context) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.RefreshPrices"

	slog.Debug("RefreshPrices start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() { finish(rqID, op, err) }()

	symbols, err := s.repo.GetHeldSymbols(ctx)
	if err != nil {
		return fmt.Errorf("get held symbols: %w", err)
	}

	quotes := make([]model.Quote, 0, len(symbols))
	failed := 0
	for _, symbol := range symbols {
		quote, err := s.quoteApi.GetQuote(ctx, symbol)
		if err != nil {
			slog.Warn("can't refresh price", slog.String("rqID", rqID), slog.String("symbol", symbol), slog.String("err", err.Error()))
			failed++
			continue
		}
		quote.Price = quote.Price.Round(priceScale)

		if err = s.repo.UpdateLastPrice(ctx, symbol, quote.Price); err != nil {
			failed++
			continue
		}
		quotes = append(quotes, quote)
	}

	if len(quotes) > 0 {
		if err = s.cache.SetQuotes(ctx, quotes); err != nil {
			slog.Warn("can't cache quotes", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
	}

	slog.Info("prices refreshed", slog.String("rqID", rqID), slog.Int("updated", len(quotes)), slog.Int("failed", failed))

	if failed > 0 {
		return fmt.Errorf("refresh failed for %d of %d symbols", failed, len(symbols))
	}

	return nil
}

// Audit checks cash = initial cash − bought + sold for every account and returns the accounts that don't match.
func (s *LedgerService) Audit(ctx context.Context) (discrepancies []model.LedgerTotals, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Audit"

	slog.Debug("Audit start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() { finish(rqID, op, err) }()

	totals, err := s.repo.GetLedgerTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("get ledger totals: %w", err)
	}

	discrepancies = make([]model.LedgerTotals, 0)
	for _, t := range totals {
		if t.Reconciled() {
			continue
		}
		slog.Error(
			"ledger discrepancy",
			slog.String("rqID", rqID),
			slog.Int64("userID", t.UserID),
			slog.String("username", t.Username),
			slog.String("cash", t.Cash.String()),
			slog.String("expected", t.Expected().String()),
		)
		discrepancies = append(discrepancies, t)
	}

	slog.Info("ledger audit done", slog.String("rqID", rqID), slog.Int("accounts", len(totals)), slog.Int("discrepancies", len(discrepancies)))

	return discrepancies, nil
}
