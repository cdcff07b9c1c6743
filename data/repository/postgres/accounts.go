package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/finance_simulator/internal/converter/dbConverter"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/model/dbModel"
	"github.com/KotFed0t/finance_simulator/utils"
	"github.com/shopspring/decimal"
)

const accountColumns = `user_id, username, password_hash, cash, initial_cash, created_at`

func (r *Postgres) InsertUser(ctx context.Context, username, passwordHash string, startingCash decimal.Decimal) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO users(username, password_hash, cash, initial_cash) VALUES($1, $2, $3, $3) RETURNING user_id`

	slog.Debug("InsertUser start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertUser failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertUser completed", slog.String("rqID", rqID), slog.Int64("userID", userID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, username, passwordHash, startingCash).Scan(&userID)
	if err != nil {
		return 0, mapError(err)
	}

	return userID, nil
}

func (r *Postgres) GetUserByUsername(ctx context.Context, username string) (account model.Account, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT ` + accountColumns + ` FROM users WHERE username = $1`

	slog.Debug("GetUserByUsername start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetUserByUsername failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetUserByUsername completed", slog.String("rqID", rqID))
		}
	}()

	dbAccount := dbModel.Account{}
	err = r.txOrDb(ctx).GetContext(ctx, &dbAccount, query, username)
	if err != nil {
		return model.Account{}, mapError(err)
	}

	return dbConverter.ConvertAccount(dbAccount), nil
}

func (r *Postgres) GetUser(ctx context.Context, userID int64) (account model.Account, err error) {
	return r.getAccount(ctx, "GetUser", `SELECT `+accountColumns+` FROM users WHERE user_id = $1`, userID)
}

// LockAccount reads the account row and holds a row lock on it until the surrounding transaction ends.
// Every trade of one user goes through this lock first.
func (r *Postgres) LockAccount(ctx context.Context, userID int64) (account model.Account, err error) {
	return r.getAccount(ctx, "LockAccount", `SELECT `+accountColumns+` FROM users WHERE user_id = $1 FOR UPDATE`, userID)
}

func (r *Postgres) getAccount(ctx context.Context, op, query string, userID int64) (account model.Account, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug(op+" start", slog.String("rqID", rqID), slog.String("query", query), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug(op+" completed", slog.String("rqID", rqID))
		}
	}()

	dbAccount := dbModel.Account{}
	err = r.txOrDb(ctx).GetContext(ctx, &dbAccount, query, userID)
	if err != nil {
		return model.Account{}, mapError(err)
	}

	return dbConverter.ConvertAccount(dbAccount), nil
}

func (r *Postgres) UpdateCash(ctx context.Context, userID int64, cash decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `UPDATE users SET cash = $1 WHERE user_id = $2`

	slog.Debug("UpdateCash start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateCash failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateCash completed", slog.String("rqID", rqID))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, cash, userID)
	if err != nil {
		return mapError(err)
	}

	return expectAffected(res)
}

// GetLedgerTotals returns the cash, starting cash and summed buy/sell totals of every account.
func (r *Postgres) GetLedgerTotals(ctx context.Context) (totals []model.LedgerTotals, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT u.user_id, u.username, u.cash, u.initial_cash,
			COALESCE(SUM(h.total) FILTER (WHERE h.side = 'BUY'), 0) AS bought,
			COALESCE(SUM(h.total) FILTER (WHERE h.side = 'SELL'), 0) AS sold
		FROM users u
		LEFT JOIN history h ON h.user_id = u.user_id
		GROUP BY u.user_id
		ORDER BY u.user_id
		`

	slog.Debug("GetLedgerTotals start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetLedgerTotals failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetLedgerTotals completed", slog.String("rqID", rqID), slog.Int("accounts", len(totals)))
		}
	}()

	dbTotals := make([]dbModel.LedgerTotals, 0)
	err = r.txOrDb(ctx).SelectContext(ctx, &dbTotals, query)
	if err != nil {
		return nil, err
	}

	totals = make([]model.LedgerTotals, 0, len(dbTotals))
	for _, t := range dbTotals {
		totals = append(totals, dbConverter.ConvertLedgerTotals(t))
	}

	return totals, nil
}
