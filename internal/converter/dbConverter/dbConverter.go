package dbConverter

import (
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/model/dbModel"
)

func ConvertAccount(dbAccount dbModel.Account) model.Account {
	return model.Account{
		UserID:       dbAccount.UserID,
		Username:     dbAccount.Username,
		PasswordHash: dbAccount.PasswordHash,
		Cash:         dbAccount.Cash,
		InitialCash:  dbAccount.InitialCash,
		CreatedAt:    dbAccount.CreatedAt,
	}
}

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		UserID:      dbHolding.UserID,
		Symbol:      dbHolding.Symbol,
		CompanyName: dbHolding.CompanyName,
		Shares:      dbHolding.Shares,
		LastPrice:   dbHolding.LastPrice,
		UpdatedAt:   dbHolding.UpdatedAt,
	}
}

func ConvertLedgerEntry(dbEntry dbModel.LedgerEntry) model.LedgerEntry {
	return model.LedgerEntry{
		ID:          dbEntry.HistoryID,
		UserID:      dbEntry.UserID,
		Symbol:      dbEntry.Symbol,
		CompanyName: dbEntry.CompanyName,
		Side:        model.Side(dbEntry.Side),
		Shares:      dbEntry.Shares,
		Price:       dbEntry.Price,
		Total:       dbEntry.Total,
		CreatedAt:   dbEntry.CreatedAt,
	}
}

func ConvertLedgerTotals(dbTotals dbModel.LedgerTotals) model.LedgerTotals {
	return model.LedgerTotals{
		UserID:      dbTotals.UserID,
		Username:    dbTotals.Username,
		Cash:        dbTotals.Cash,
		InitialCash: dbTotals.InitialCash,
		Bought:      dbTotals.Bought,
		Sold:        dbTotals.Sold,
	}
}
