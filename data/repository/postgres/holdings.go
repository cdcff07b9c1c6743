package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/KotFed0t/finance_simulator/data/repository"
	"github.com/KotFed0t/finance_simulator/internal/converter/dbConverter"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/model/dbModel"
	"github.com/KotFed0t/finance_simulator/utils"
	"github.com/shopspring/decimal"
)

const holdingColumns = `user_id, symbol, company_name, shares, last_price, updated_at`

func (r *Postgres) GetHolding(ctx context.Context, userID int64, symbol string) (model.Holding, error) {
	return r.getHolding(ctx, "GetHolding",
		`SELECT `+holdingColumns+` FROM holdings WHERE user_id = $1 AND symbol = $2`, userID, symbol)
}

// GetHoldingForUpdate must be called inside a transaction after LockAccount.
func (r *Postgres) GetHoldingForUpdate(ctx context.Context, userID int64, symbol string) (model.Holding, error) {
	return r.getHolding(ctx, "GetHoldingForUpdate",
		`SELECT `+holdingColumns+` FROM holdings WHERE user_id = $1 AND symbol = $2 FOR UPDATE`, userID, symbol)
}

func (r *Postgres) getHolding(ctx context.Context, op, query string, userID int64, symbol string) (holding model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug(op+" start", slog.String("rqID", rqID), slog.String("query", query), slog.String("symbol", symbol))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug(op+" completed", slog.String("rqID", rqID))
		}
	}()

	dbHolding := dbModel.Holding{}
	err = r.txOrDb(ctx).GetContext(ctx, &dbHolding, query, userID, symbol)
	if err != nil {
		return model.Holding{}, mapError(err)
	}

	return dbConverter.ConvertHolding(dbHolding), nil
}

// UpsertHolding adds shares to the holding, creating it when absent, and refreshes its price and name.
func (r *Postgres) UpsertHolding(ctx context.Context, userID int64, symbol, companyName string, shares int, price decimal.Decimal) (holding model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO holdings(user_id, symbol, company_name, shares, last_price)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, symbol) DO UPDATE
		SET shares = holdings.shares + EXCLUDED.shares,
			company_name = EXCLUDED.company_name,
			last_price = EXCLUDED.last_price,
			updated_at = now()
		RETURNING ` + holdingColumns

	slog.Debug("UpsertHolding start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpsertHolding failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertHolding completed", slog.String("rqID", rqID), slog.Int("shares", holding.Shares))
		}
	}()

	dbHolding := dbModel.Holding{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, symbol, companyName, shares, price).StructScan(&dbHolding)
	if err != nil {
		return model.Holding{}, mapError(err)
	}

	return dbConverter.ConvertHolding(dbHolding), nil
}

// UpdateHolding overwrites share count and price of an existing holding.
func (r *Postgres) UpdateHolding(ctx context.Context, userID int64, symbol string, shares int, price decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `UPDATE holdings SET shares = $1, last_price = $2, updated_at = now() WHERE user_id = $3 AND symbol = $4`

	slog.Debug("UpdateHolding start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateHolding failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateHolding completed", slog.String("rqID", rqID))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, shares, price, userID, symbol)
	if err != nil {
		return mapError(err)
	}

	return expectAffected(res)
}

func (r *Postgres) DeleteHolding(ctx context.Context, userID int64, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `DELETE FROM holdings WHERE user_id = $1 AND symbol = $2`

	slog.Debug("DeleteHolding start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeleteHolding failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteHolding completed", slog.String("rqID", rqID))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, userID, symbol)
	if err != nil {
		return err
	}

	return expectAffected(res)
}

// GetHoldings returns the user's holdings with a positive share count ordered by symbol.
func (r *Postgres) GetHoldings(ctx context.Context, userID int64) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT ` + holdingColumns + ` FROM holdings WHERE user_id = $1 AND shares > 0 ORDER BY symbol`

	slog.Debug("GetHoldings start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetHoldings failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHoldings completed", slog.String("rqID", rqID), slog.Int("count", len(holdings)))
		}
	}()

	dbHoldings := make([]dbModel.Holding, 0)
	err = r.txOrDb(ctx).SelectContext(ctx, &dbHoldings, query, userID)
	if err != nil {
		return nil, err
	}

	holdings = make([]model.Holding, 0, len(dbHoldings))
	for _, h := range dbHoldings {
		holdings = append(holdings, dbConverter.ConvertHolding(h))
	}

	return holdings, nil
}

func (r *Postgres) GetHeldSymbols(ctx context.Context) (symbols []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT DISTINCT symbol FROM holdings WHERE shares > 0 ORDER BY symbol`

	slog.Debug("GetHeldSymbols start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetHeldSymbols failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHeldSymbols completed", slog.String("rqID", rqID), slog.Int("count", len(symbols)))
		}
	}()

	symbols = make([]string, 0)
	err = r.txOrDb(ctx).SelectContext(ctx, &symbols, query)
	if err != nil {
		return nil, err
	}

	return symbols, nil
}

// UpdateLastPrice marks every holding of symbol at price.
func (r *Postgres) UpdateLastPrice(ctx context.Context, symbol string, price decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `UPDATE holdings SET last_price = $1, updated_at = now() WHERE symbol = $2`

	slog.Debug("UpdateLastPrice start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateLastPrice failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateLastPrice completed", slog.String("rqID", rqID))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, price, symbol)
	return err
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
