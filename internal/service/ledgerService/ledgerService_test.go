package ledgerService

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/KotFed0t/finance_simulator/internal/externalApi"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var startingCash = decimal.RequireFromString("10000.00")

func usd(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func aapl(price string) model.Quote {
	return model.Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: usd(price)}
}

type env struct {
	repo   *fakeRepo
	cache  *fakeCache
	api    *mockQuoteApi
	report *fakeReportGenerator
	svc    *LedgerService
	userID int64
}

func newEnv(t *testing.T, cash decimal.Decimal) *env {
	t.Helper()
	e := &env{
		repo:   newFakeRepo(),
		cache:  newFakeCache(),
		api:    &mockQuoteApi{},
		report: &fakeReportGenerator{},
	}
	e.svc = New(e.repo, e.cache, e.api, e.report)
	e.userID = e.repo.addUser("alice", cash)
	return e
}

func (e *env) cash(t *testing.T) decimal.Decimal {
	t.Helper()
	a, err := e.repo.GetUser(context.Background(), e.userID)
	require.NoError(t, err)
	return a.Cash
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "1", want: 1},
		{raw: " 42 ", want: 42},
		{raw: "", wantErr: true},
		{raw: "   ", wantErr: true},
		{raw: "0", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "2.5", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "99999999999999999999999", wantErr: true},
		{raw: "2147483647", want: 2147483647},
		{raw: "2147483648", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseQuantity(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, service.ErrInvalidQuantity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuy(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil).Once()

	trade, err := e.svc.Buy(context.Background(), e.userID, "aapl", "2")
	require.NoError(t, err)

	assert.True(t, usd("9700.00").Equal(trade.Cash))
	assert.True(t, usd("9700.00").Equal(e.cash(t)))
	assert.Equal(t, 2, trade.Holding.Shares)
	assert.Equal(t, model.SideBuy, trade.Entry.Side)
	assert.True(t, usd("300.00").Equal(trade.Entry.Total))

	holding, err := e.repo.GetHolding(context.Background(), e.userID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, holding.Shares)
	assert.Equal(t, "Apple Inc.", holding.CompanyName)
	e.api.AssertExpectations(t)
}

func TestBuyAddsToHoldingAndRefreshesPrice(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil).Once()
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("155.00"), nil).Once()

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "2")
	require.NoError(t, err)
	trade, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "3")
	require.NoError(t, err)

	assert.Equal(t, 5, trade.Holding.Shares)
	assert.True(t, usd("155.00").Equal(trade.Holding.LastPrice))
	assert.True(t, usd("9235.00").Equal(e.cash(t)))
}

func TestSellEntireHoldingRemovesIt(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil).Once()
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("160.00"), nil).Once()

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "2")
	require.NoError(t, err)

	trade, err := e.svc.Sell(context.Background(), e.userID, "AAPL", "2")
	require.NoError(t, err)

	assert.True(t, usd("10020.00").Equal(trade.Cash))
	assert.Equal(t, 0, trade.Holding.Shares)
	assert.True(t, usd("320.00").Equal(trade.Entry.Total))
	assert.Equal(t, model.SideSell, trade.Entry.Side)

	holdings, err := e.repo.GetHoldings(context.Background(), e.userID)
	require.NoError(t, err)
	assert.Empty(t, holdings)
	assert.Empty(t, e.repo.holdings, "zero share row must be deleted by the sell")
}

func TestSellPartial(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("100.00"), nil)

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "5")
	require.NoError(t, err)

	trade, err := e.svc.Sell(context.Background(), e.userID, "AAPL", "2")
	require.NoError(t, err)

	assert.Equal(t, 3, trade.Holding.Shares)
	assert.True(t, usd("9700.00").Equal(e.cash(t)))
}

func TestBuyInsufficientFunds(t *testing.T) {
	e := newEnv(t, usd("50.00"))
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil)

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "100")
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)

	assert.True(t, usd("50.00").Equal(e.cash(t)))
	assert.Empty(t, e.repo.holdings)
	assert.Empty(t, e.repo.history)
}

func TestBuyExactlyAllCash(t *testing.T) {
	e := newEnv(t, usd("300.00"))
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil)

	trade, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "2")
	require.NoError(t, err)
	assert.True(t, trade.Cash.IsZero())
}

func TestSellInsufficientShares(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil).Once()

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "2")
	require.NoError(t, err)
	cashBefore := e.cash(t)

	_, err = e.svc.Sell(context.Background(), e.userID, "AAPL", "5")
	assert.ErrorIs(t, err, service.ErrInsufficientShares)

	assert.True(t, cashBefore.Equal(e.cash(t)))
	holding, err := e.repo.GetHolding(context.Background(), e.userID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, holding.Shares)
	assert.Len(t, e.repo.history, 1)
	e.api.AssertNumberOfCalls(t, "GetQuote", 1)
}

func TestSellWithoutHolding(t *testing.T) {
	e := newEnv(t, startingCash)

	_, err := e.svc.Sell(context.Background(), e.userID, "MSFT", "1")
	assert.ErrorIs(t, err, service.ErrInsufficientShares)
	e.api.AssertNotCalled(t, "GetQuote", mock.Anything, mock.Anything)
}

func TestTradeInputValidation(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		quantity string
		wantErr  error
	}{
		{name: "missing symbol", symbol: " ", quantity: "1", wantErr: service.ErrMissingSymbol},
		{name: "empty quantity", symbol: "AAPL", quantity: "", wantErr: service.ErrInvalidQuantity},
		{name: "zero quantity", symbol: "AAPL", quantity: "0", wantErr: service.ErrInvalidQuantity},
		{name: "negative quantity", symbol: "AAPL", quantity: "-1", wantErr: service.ErrInvalidQuantity},
		{name: "not a number", symbol: "AAPL", quantity: "ten", wantErr: service.ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, startingCash)

			_, err := e.svc.Buy(context.Background(), e.userID, tt.symbol, tt.quantity)
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = e.svc.Sell(context.Background(), e.userID, tt.symbol, tt.quantity)
			assert.ErrorIs(t, err, tt.wantErr)

			e.api.AssertNotCalled(t, "GetQuote", mock.Anything, mock.Anything)
			assert.True(t, startingCash.Equal(e.cash(t)))
		})
	}
}

func TestBuyUnknownSymbol(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "ZZZZ").Return(model.Quote{}, externalApi.ErrNotFound)

	_, err := e.svc.Buy(context.Background(), e.userID, "zzzz", "1")
	assert.ErrorIs(t, err, service.ErrUnknownSymbol)
	assert.Empty(t, e.repo.history)
}

func TestBuyOracleFailureIsNotUserError(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(model.Quote{}, errors.New("timeout"))

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "1")
	require.Error(t, err)
	assert.False(t, service.IsUserError(err))
}

func TestTradeRollsBackOnStoreFailure(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil)
	e.repo.failInsertEntry = errors.New("connection reset")

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "2")
	require.Error(t, err)

	assert.True(t, startingCash.Equal(e.cash(t)))
	assert.Empty(t, e.repo.holdings)
	assert.Empty(t, e.repo.history)
}

func TestValuate(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil)
	e.api.On("GetQuote", mock.Anything, "MSFT").Return(model.Quote{Symbol: "MSFT", Name: "Microsoft", Price: usd("300.00")}, nil)

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "2")
	require.NoError(t, err)
	_, err = e.svc.Buy(context.Background(), e.userID, "MSFT", "1")
	require.NoError(t, err)

	first, err := e.svc.Valuate(context.Background(), e.userID)
	require.NoError(t, err)

	require.Len(t, first.Positions, 2)
	assert.Equal(t, "AAPL", first.Positions[0].Symbol)
	assert.True(t, usd("300.00").Equal(first.Positions[0].Value))
	assert.True(t, usd("9400.00").Equal(first.Cash))
	assert.True(t, startingCash.Equal(first.Total))

	second, err := e.svc.Valuate(context.Background(), e.userID)
	require.NoError(t, err)
	assert.True(t, first.Total.Equal(second.Total))
	assert.Equal(t, len(first.Positions), len(second.Positions))
}

func TestValuateEmpty(t *testing.T) {
	e := newEnv(t, startingCash)

	portfolio, err := e.svc.Valuate(context.Background(), e.userID)
	require.NoError(t, err)
	assert.Empty(t, portfolio.Positions)
	assert.True(t, startingCash.Equal(portfolio.Total))
}

func TestHistoryIsOldestFirst(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("10.00"), nil)

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "3")
	require.NoError(t, err)
	_, err = e.svc.Sell(context.Background(), e.userID, "AAPL", "1")
	require.NoError(t, err)

	history, err := e.svc.History(context.Background(), e.userID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.SideBuy, history[0].Side)
	assert.Equal(t, model.SideSell, history[1].Side)
}

func TestQuoteUsesCache(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil).Once()

	first, err := e.svc.Quote(context.Background(), " aapl")
	require.NoError(t, err)
	second, err := e.svc.Quote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	e.api.AssertNumberOfCalls(t, "GetQuote", 1)
}

func TestQuoteErrors(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "NOPE").Return(model.Quote{}, externalApi.ErrNotFound)

	_, err := e.svc.Quote(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrMissingSymbol)

	_, err = e.svc.Quote(context.Background(), "nope")
	assert.ErrorIs(t, err, service.ErrUnknownSymbol)
}

func TestTradesIgnoreCachedPrice(t *testing.T) {
	e := newEnv(t, startingCash)
	require.NoError(t, e.cache.SetQuote(context.Background(), aapl("1.00")))
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil).Once()

	trade, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "1")
	require.NoError(t, err)
	assert.True(t, usd("150.00").Equal(trade.Entry.Price))

	cached, err := e.cache.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, usd("150.00").Equal(cached.Price))
}

func TestAuditReconciles(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil).Once()
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("160.00"), nil).Once()
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("140.00"), nil).Once()

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "4")
	require.NoError(t, err)
	_, err = e.svc.Sell(context.Background(), e.userID, "AAPL", "1")
	require.NoError(t, err)
	_, err = e.svc.Sell(context.Background(), e.userID, "AAPL", "3")
	require.NoError(t, err)

	discrepancies, err := e.svc.Audit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, discrepancies)

	// cash changed outside the ledger
	require.NoError(t, e.repo.UpdateCash(context.Background(), e.userID, usd("1.00")))

	discrepancies, err = e.svc.Audit(context.Background())
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)
	assert.Equal(t, e.userID, discrepancies[0].UserID)
}

func TestTradesRoundPriceToStoredScale(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("12.34565"), nil).Once()
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("13.00005"), nil).Once()

	buy, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "3")
	require.NoError(t, err)
	assert.True(t, usd("12.3457").Equal(buy.Entry.Price), buy.Entry.Price.String())
	assert.True(t, usd("37.0371").Equal(buy.Entry.Total), buy.Entry.Total.String())
	assert.True(t, usd("9962.9629").Equal(buy.Cash), buy.Cash.String())

	sell, err := e.svc.Sell(context.Background(), e.userID, "AAPL", "1")
	require.NoError(t, err)
	assert.True(t, usd("13.0001").Equal(sell.Entry.Total), sell.Entry.Total.String())
	assert.True(t, usd("9975.9630").Equal(e.cash(t)))

	for _, d := range []decimal.Decimal{buy.Entry.Total, sell.Entry.Total, e.cash(t)} {
		assert.True(t, d.Equal(d.Round(priceScale)), d.String())
	}

	discrepancies, err := e.svc.Audit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, discrepancies)
}

func TestRefreshPrices(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil).Once()
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("175.00"), nil).Once()

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "2")
	require.NoError(t, err)

	require.NoError(t, e.svc.RefreshPrices(context.Background()))

	holding, err := e.repo.GetHolding(context.Background(), e.userID, "AAPL")
	require.NoError(t, err)
	assert.True(t, usd("175.00").Equal(holding.LastPrice))

	portfolio, err := e.svc.Valuate(context.Background(), e.userID)
	require.NoError(t, err)
	assert.True(t, usd("10050.00").Equal(portfolio.Total))
}

func TestRefreshPricesReportsFailures(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil).Once()
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(model.Quote{}, errors.New("timeout")).Once()

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "2")
	require.NoError(t, err)

	assert.Error(t, e.svc.RefreshPrices(context.Background()))
}

func TestExportReport(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("150.00"), nil)

	_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "2")
	require.NoError(t, err)

	data, filename, err := e.svc.ExportReport(context.Background(), e.userID)
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), data)
	assert.Regexp(t, `^portfolio_alice_\d{8}_\d{6}\.xlsx$`, filename)
	assert.Len(t, e.report.got.Portfolio.Positions, 1)
	assert.Len(t, e.report.got.History, 1)
}

func TestConcurrentBuysNeverOverdraw(t *testing.T) {
	e := newEnv(t, startingCash)
	e.api.On("GetQuote", mock.Anything, "AAPL").Return(aapl("1000.00"), nil)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Buy(context.Background(), e.userID, "AAPL", "1")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, service.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.True(t, e.cash(t).IsZero())

	holding, err := e.repo.GetHolding(context.Background(), e.userID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 10, holding.Shares)
}
