package ledgerService

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/KotFed0t/finance_simulator/data/cache"
	"github.com/KotFed0t/finance_simulator/data/repository"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type holdingKey struct {
	userID int64
	symbol string
}

// fakeRepo keeps the ledger tables in memory. Transactions are serialized and rolled back on error.
type fakeRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID   int64
	users    map[int64]model.Account
	holdings map[holdingKey]model.Holding
	history  []model.LedgerEntry

	failInsertEntry error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:    make(map[int64]model.Account),
		holdings: make(map[holdingKey]model.Holding),
	}
}

func (r *fakeRepo) addUser(username string, cash decimal.Decimal) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.users[r.nextID] = model.Account{UserID: r.nextID, Username: username, Cash: cash, InitialCash: cash}
	return r.nextID
}

type snapshot struct {
	users    map[int64]model.Account
	holdings map[holdingKey]model.Holding
	history  []model.LedgerEntry
}

func (r *fakeRepo) snapshot() snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := snapshot{
		users:    make(map[int64]model.Account, len(r.users)),
		holdings: make(map[holdingKey]model.Holding, len(r.holdings)),
		history:  append([]model.LedgerEntry(nil), r.history...),
	}
	for k, v := range r.users {
		s.users[k] = v
	}
	for k, v := range r.holdings {
		s.holdings[k] = v
	}
	return s
}

func (r *fakeRepo) restore(s snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = s.users
	r.holdings = s.holdings
	r.history = s.history
}

func (r *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	before := r.snapshot()
	if err := tFunc(ctx); err != nil {
		r.restore(before)
		return err
	}
	return nil
}

func (r *fakeRepo) GetUser(_ context.Context, userID int64) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.users[userID]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) LockAccount(ctx context.Context, userID int64) (model.Account, error) {
	return r.GetUser(ctx, userID)
}

func (r *fakeRepo) UpdateCash(_ context.Context, userID int64, cash decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if cash.IsNegative() {
		return repository.ErrCheckViolation
	}
	a.Cash = cash
	r.users[userID] = a
	return nil
}

func (r *fakeRepo) GetLedgerTotals(_ context.Context) ([]model.LedgerTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := make([]model.LedgerTotals, 0, len(r.users))
	for _, a := range r.users {
		t := model.LedgerTotals{UserID: a.UserID, Username: a.Username, Cash: a.Cash, InitialCash: a.InitialCash}
		for _, e := range r.history {
			if e.UserID != a.UserID {
				continue
			}
			if e.Side == model.SideBuy {
				t.Bought = t.Bought.Add(e.Total)
			} else {
				t.Sold = t.Sold.Add(e.Total)
			}
		}
		totals = append(totals, t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].UserID < totals[j].UserID })
	return totals, nil
}

func (r *fakeRepo) GetHolding(_ context.Context, userID int64, symbol string) (model.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.holdings[holdingKey{userID, symbol}]
	if !ok {
		return model.Holding{}, repository.ErrNotFound
	}
	return h, nil
}

func (r *fakeRepo) GetHoldingForUpdate(ctx context.Context, userID int64, symbol string) (model.Holding, error) {
	return r.GetHolding(ctx, userID, symbol)
}

func (r *fakeRepo) UpsertHolding(_ context.Context, userID int64, symbol, companyName string, shares int, price decimal.Decimal) (model.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := holdingKey{userID, symbol}
	h := r.holdings[key]
	h.UserID = userID
	h.Symbol = symbol
	h.CompanyName = companyName
	h.Shares += shares
	h.LastPrice = price
	h.UpdatedAt = time.Now()
	r.holdings[key] = h
	return h, nil
}

func (r *fakeRepo) UpdateHolding(_ context.Context, userID int64, symbol string, shares int, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := holdingKey{userID, symbol}
	h, ok := r.holdings[key]
	if !ok {
		return repository.ErrNotFound
	}
	if shares < 0 {
		return repository.ErrCheckViolation
	}
	h.Shares = shares
	h.LastPrice = price
	r.holdings[key] = h
	return nil
}

func (r *fakeRepo) DeleteHolding(_ context.Context, userID int64, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := holdingKey{userID, symbol}
	if _, ok := r.holdings[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.holdings, key)
	return nil
}

func (r *fakeRepo) GetHoldings(_ context.Context, userID int64) ([]model.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]model.Holding, 0)
	for k, h := range r.holdings {
		if k.userID == userID && h.Shares > 0 {
			res = append(res, h)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Symbol < res[j].Symbol })
	return res, nil
}

func (r *fakeRepo) GetHeldSymbols(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	for k, h := range r.holdings {
		if h.Shares > 0 {
			seen[k.symbol] = struct{}{}
		}
	}
	res := make([]string, 0, len(seen))
	for s := range seen {
		res = append(res, s)
	}
	sort.Strings(res)
	return res, nil
}

func (r *fakeRepo) UpdateLastPrice(_ context.Context, symbol string, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, h := range r.holdings {
		if k.symbol == symbol {
			h.LastPrice = price
			r.holdings[k] = h
		}
	}
	return nil
}

func (r *fakeRepo) InsertLedgerEntry(_ context.Context, entry model.LedgerEntry) (model.LedgerEntry, error) {
	if r.failInsertEntry != nil {
		return model.LedgerEntry{}, r.failInsertEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = int64(len(r.history) + 1)
	entry.CreatedAt = time.Now()
	r.history = append(r.history, entry)
	return entry, nil
}

func (r *fakeRepo) GetLedgerEntries(_ context.Context, userID int64) ([]model.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]model.LedgerEntry, 0)
	for _, e := range r.history {
		if e.UserID == userID {
			res = append(res, e)
		}
	}
	return res, nil
}

type fakeCache struct {
	mu     sync.Mutex
	quotes map[string]model.Quote
}

func newFakeCache() *fakeCache {
	return &fakeCache{quotes: make(map[string]model.Quote)}
}

func (c *fakeCache) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[symbol]
	if !ok {
		return model.Quote{}, cache.ErrNotFound
	}
	return q, nil
}

func (c *fakeCache) SetQuote(ctx context.Context, quote model.Quote) error {
	return c.SetQuotes(ctx, []model.Quote{quote})
}

func (c *fakeCache) SetQuotes(_ context.Context, quotes []model.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range quotes {
		c.quotes[q.Symbol] = q
	}
	return nil
}

type mockQuoteApi struct {
	mock.Mock
}

func (m *mockQuoteApi) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(model.Quote), args.Error(1)
}

type fakeReportGenerator struct {
	got model.PortfolioReport
}

func (g *fakeReportGenerator) Generate(_ context.Context, report model.PortfolioReport) ([]byte, string, error) {
	if report.Username == "" {
		return nil, "", errors.New("empty report")
	}
	g.got = report
	return []byte("xlsx"), ".xlsx", nil
}
