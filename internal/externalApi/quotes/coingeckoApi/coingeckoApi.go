package coingeckoApi

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/vportnov/assetbook/config"
	"github.com/vportnov/assetbook/internal/externalApi"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/utils"
)

// coinIDs maps ticker symbols to CoinGecko coin ids for the commonly
// tracked coins. Unknown symbols are reported as not found rather than
// guessed.
var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"ADA":  "cardano",
	"DOT":  "polkadot",
	"LTC":  "litecoin",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"SOL":  "solana",
}

// CoingeckoApi fetches crypto quotes, priced directly in the home currency.
type CoingeckoApi struct {
	client       *resty.Client
	homeCurrency string
}

func New(cfg *config.Config) *CoingeckoApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.CoingeckoApi.Url)
	return &CoingeckoApi{client: client, homeCurrency: cfg.HomeCurrency}
}

func (a *CoingeckoApi) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CoingeckoApi.GetQuote"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	coinID, ok := coinIDs[symbol]
	if !ok {
		return model.Quote{}, externalApi.ErrNotFound
	}

	vsCurrency := strings.ToLower(a.homeCurrency)
	params := map[string]string{
		"ids":                     coinID,
		"vs_currencies":           vsCurrency,
		"include_last_updated_at": "true",
	}

	slog.Debug("GetQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get("/api/v3/simple/price")
	if err != nil {
		slog.Error("error while dialing CoingeckoApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, err
	}

	raw := map[string]map[string]float64{}
	err = json.Unmarshal(resp.Body(), &raw)
	if err != nil {
		slog.Error("can't unmarshal CoingeckoApi response", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, err
	}

	coin, ok := raw[coinID]
	if !ok {
		return model.Quote{}, externalApi.ErrNotFound
	}

	price, ok := coin[vsCurrency]
	if !ok || price <= 0 {
		return model.Quote{}, externalApi.ErrNotFound
	}

	asOf := time.Now()
	if lastUpdated, ok := coin["last_updated_at"]; ok && lastUpdated > 0 {
		asOf = time.Unix(int64(lastUpdated), 0)
	}

	slog.Debug("GetQuote completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	return model.Quote{
		Symbol:   symbol,
		Price:    decimal.NewFromFloat(price),
		Currency: strings.ToUpper(a.homeCurrency),
		AsOf:     asOf,
	}, nil
}
