package quoteApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/KotFed0t/finance_simulator/config"
	"github.com/KotFed0t/finance_simulator/internal/externalApi"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/internal/model/quoteModel"
	"github.com/KotFed0t/finance_simulator/utils"
	"github.com/go-resty/resty/v2"
)

type QuoteApi struct {
	client *resty.Client
	token  string
}

func New(cfg *config.Config) *QuoteApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.QuoteApi.Url)
	return &QuoteApi{client: client, token: cfg.API.QuoteApi.Token}
}

// GetQuote returns the latest price of symbol.
// An unknown symbol, an empty payload or a non-positive price result in externalApi.ErrNotFound.
func (a *QuoteApi) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqId := utils.GetRequestIDFromCtx(ctx)
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return model.Quote{}, externalApi.ErrNotFound
	}

	slog.Debug("start QuoteApi.GetQuote request", slog.String("rqID", rqId), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetPathParam("symbol", symbol).
		SetQueryParam("token", a.token).
		Get("/stable/stock/{symbol}/quote")

	if err != nil {
		slog.Error("error while dialing QuoteApi", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return model.Quote{}, err
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		slog.Debug("QuoteApi symbol not found", slog.String("rqID", rqId), slog.String("symbol", symbol))
		return model.Quote{}, externalApi.ErrNotFound
	case resp.IsError():
		slog.Error("QuoteApi unexpected status", slog.Int("status", resp.StatusCode()), slog.String("rqID", rqId))
		return model.Quote{}, fmt.Errorf("quote api status %d", resp.StatusCode())
	}

	rawQuote := quoteModel.RawQuote{}
	err = json.Unmarshal(resp.Body(), &rawQuote)
	if err != nil {
		slog.Error("can't unmarshall response into quoteModel.RawQuote", slog.String("err", err.Error()), slog.String("rqID", rqId))
		return model.Quote{}, err
	}

	if rawQuote.Symbol == "" || !rawQuote.LatestPrice.IsPositive() {
		return model.Quote{}, externalApi.ErrNotFound
	}

	slog.Debug("QuoteApi.GetQuote request complete", slog.String("rqID", rqId))

	return model.Quote{
		Symbol: strings.ToUpper(rawQuote.Symbol),
		Name:   rawQuote.CompanyName,
		Price:  rawQuote.LatestPrice,
	}, nil
}
