package fxApi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/vportnov/assetbook/config"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/utils"
)

// FxApi fetches daily reference rates (Frankfurter-compatible endpoint).
type FxApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *FxApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.FxApi.Url)
	return &FxApi{client: client}
}

type rawRates struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// GetRates returns base->quote rates for every currency the provider
// publishes against the given base.
func (a *FxApi) GetRates(ctx context.Context, base string) ([]model.FxRate, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FxApi.GetRates"

	base = strings.ToUpper(base)

	slog.Debug("GetRates start", slog.String("rqID", rqID), slog.String("op", op), slog.String("base", base))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("base", base).
		Get("/v1/latest")
	if err != nil {
		slog.Error("error while dialing FxApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	raw := rawRates{}
	err = json.Unmarshal(resp.Body(), &raw)
	if err != nil {
		slog.Error("can't unmarshal FxApi response", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	if len(raw.Rates) == 0 {
		return nil, errors.New("empty rates in FxApi response")
	}

	now := time.Now()
	rates := make([]model.FxRate, 0, len(raw.Rates))
	for quote, rate := range raw.Rates {
		if rate <= 0 {
			continue
		}
		rates = append(rates, model.FxRate{
			Base:     base,
			Quote:    strings.ToUpper(quote),
			Rate:     decimal.NewFromFloat(rate),
			DtUpdate: now,
		})
	}

	slog.Debug("GetRates completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("rates", len(rates)))

	return rates, nil
}
