package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/vportnov/assetbook/config"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/utils"
)

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func quoteKey(class model.AssetClass, symbol string) string {
	return fmt.Sprintf("quote:%s:%s", class, symbol)
}

func summaryKey(bookID int64) string {
	return fmt.Sprintf("summary:%d", bookID)
}

func (r *RedisCache) SetQuote(ctx context.Context, class model.AssetClass, quote model.Quote) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.SetQuote"

	quoteJson, err := json.Marshal(quote)
	if err != nil {
		slog.Error(
			"can't marshal quote in SetQuote",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("err", err.Error()),
			slog.Any("quote", quote),
		)
		return errors.New("can't marshal quote")
	}

	_, err = r.redis.Set(ctx, quoteKey(class, quote.Symbol), quoteJson, r.cfg.Cache.QuotesExpiration).Result()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (r *RedisCache) GetQuote(ctx context.Context, class model.AssetClass, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.GetQuote"

	res, err := r.redis.Get(ctx, quoteKey(class, symbol)).Result()
	if err != nil {
		slog.Debug("quote cache miss", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
		return model.Quote{}, err
	}

	quote := model.Quote{}
	err = json.Unmarshal([]byte(res), &quote)
	if err != nil {
		slog.Error(
			"can't unmarshal quote in GetQuote",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.Quote{}, errors.New("can't unmarshal quote")
	}

	return quote, nil
}

func (r *RedisCache) SetPortfolioSummary(ctx context.Context, bookID int64, summary model.PortfolioSummary) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.SetPortfolioSummary"

	summaryJson, err := json.Marshal(summary)
	if err != nil {
		slog.Error(
			"can't marshal summary in SetPortfolioSummary",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return errors.New("can't marshal summary")
	}

	_, err = r.redis.Set(ctx, summaryKey(bookID), summaryJson, r.cfg.Cache.SummaryExpiration).Result()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (r *RedisCache) GetPortfolioSummary(ctx context.Context, bookID int64) (model.PortfolioSummary, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.GetPortfolioSummary"

	res, err := r.redis.Get(ctx, summaryKey(bookID)).Result()
	if err != nil {
		slog.Debug("summary cache miss", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("bookID", bookID))
		return model.PortfolioSummary{}, err
	}

	summary := model.PortfolioSummary{}
	err = json.Unmarshal([]byte(res), &summary)
	if err != nil {
		slog.Error(
			"can't unmarshal summary in GetPortfolioSummary",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.PortfolioSummary{}, errors.New("can't unmarshal summary")
	}

	return summary, nil
}

// FlushBookCache drops derived valuation state for a book. Called
// synchronously on every ledger or price mutation so readers never see a
// summary computed from the pre-mutation transaction set.
func (r *RedisCache) FlushBookCache(ctx context.Context, bookID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.FlushBookCache"

	_, err := r.redis.Del(ctx, summaryKey(bookID)).Result()
	if err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}
