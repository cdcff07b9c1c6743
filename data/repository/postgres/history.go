package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/finance_simulator/internal/converter/dbConverter"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/model/dbModel"
	"github.com/KotFed0t/finance_simulator/utils"
)

const historyColumns = `history_id, user_id, symbol, company_name, side, shares, price, total, created_at`

func (r *Postgres) InsertLedgerEntry(ctx context.Context, entry model.LedgerEntry) (saved model.LedgerEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO history(user_id, symbol, company_name, side, shares, price, total)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + historyColumns

	slog.Debug("InsertLedgerEntry start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertLedgerEntry failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertLedgerEntry completed", slog.String("rqID", rqID), slog.Int64("historyID", saved.ID))
		}
	}()

	dbEntry := dbModel.LedgerEntry{}
	err = r.txOrDb(ctx).QueryRowxContext(
		ctx,
		query,
		entry.UserID,
		entry.Symbol,
		entry.CompanyName,
		string(entry.Side),
		entry.Shares,
		entry.Price,
		entry.Total,
	).StructScan(&dbEntry)
	if err != nil {
		return model.LedgerEntry{}, mapError(err)
	}

	return dbConverter.ConvertLedgerEntry(dbEntry), nil
}

// GetLedgerEntries returns the user's history oldest first.
func (r *Postgres) GetLedgerEntries(ctx context.Context, userID int64) (entries []model.LedgerEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT ` + historyColumns + ` FROM history WHERE user_id = $1 ORDER BY created_at, history_id`

	slog.Debug("GetLedgerEntries start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetLedgerEntries failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetLedgerEntries completed", slog.String("rqID", rqID), slog.Int("count", len(entries)))
		}
	}()

	dbEntries := make([]dbModel.LedgerEntry, 0)
	err = r.txOrDb(ctx).SelectContext(ctx, &dbEntries, query, userID)
	if err != nil {
		return nil, err
	}

	entries = make([]model.LedgerEntry, 0, len(dbEntries))
	for _, e := range dbEntries {
		entries = append(entries, dbConverter.ConvertLedgerEntry(e))
	}

	return entries, nil
}
