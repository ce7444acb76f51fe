package yahooApi

import (
	"context"
	"encoding/json"
	"fmt"
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

// YahooApi fetches quotes from the Yahoo Finance v8 chart endpoint. Covers
// stocks, ETFs, bonds and commodity tickers.
type YahooApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *YahooApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.YahooApi.Url).
		SetHeader("User-Agent", "assetbook/1.0")
	return &YahooApi{client: client}
}

type rawChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

func (a *YahooApi) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "YahooApi.GetQuote"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	url := fmt.Sprintf("/v8/finance/chart/%s", symbol)
	params := map[string]string{
		"interval": "1m",
		"range":    "1d",
	}

	slog.Debug("GetQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)
	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, err
	}

	if resp.StatusCode() == 404 {
		return model.Quote{}, externalApi.ErrNotFound
	}

	if resp.IsError() {
		return model.Quote{}, fmt.Errorf("yahoo api status %d", resp.StatusCode())
	}

	raw := rawChart{}
	err = json.Unmarshal(resp.Body(), &raw)
	if err != nil {
		slog.Error("can't unmarshal YahooApi response", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, err
	}

	quote, err := a.parseRawChart(raw, symbol)
	if err != nil {
		slog.Error("can't parse raw chart", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, err
	}

	slog.Debug("GetQuote completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	return quote, nil
}

func (a *YahooApi) parseRawChart(raw rawChart, symbol string) (model.Quote, error) {
	if len(raw.Chart.Result) == 0 {
		return model.Quote{}, externalApi.ErrNotFound
	}

	result := raw.Chart.Result[0]
	price := result.Meta.RegularMarketPrice
	asOf := time.Unix(result.Meta.RegularMarketTime, 0)

	// fall back to the last non-zero close when meta is empty
	if (price <= 0 || result.Meta.RegularMarketTime == 0) &&
		len(result.Timestamp) > 0 &&
		len(result.Indicators.Quote) > 0 &&
		len(result.Indicators.Quote[0].Close) == len(result.Timestamp) {
		for i := len(result.Timestamp) - 1; i >= 0; i-- {
			closePrice := result.Indicators.Quote[0].Close[i]
			if closePrice > 0 {
				price = closePrice
				asOf = time.Unix(result.Timestamp[i], 0)
				break
			}
		}
	}

	if price <= 0 {
		return model.Quote{}, externalApi.ErrNotFound
	}

	if result.Meta.Currency == "" {
		return model.Quote{}, fmt.Errorf("empty currency for symbol %s", symbol)
	}

	return model.Quote{
		Symbol:   symbol,
		Price:    decimal.NewFromFloat(price),
		Currency: strings.ToUpper(result.Meta.Currency),
		AsOf:     asOf,
	}, nil
}
