package session

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/vportnov/assetbook/config"
	"github.com/vportnov/assetbook/utils"
)

// activeBookKey is a single fixed key: one running instance serves one user,
// so the "current database" is process-global session state. The swap is one
// redis SET, atomic from the consumer's perspective; operations already in
// flight finish against the book id they resolved before the swap.
const activeBookKey = "session:active_book"

type RedisSession struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisSession(redisClient *redis.Client, cfg *config.Config) *RedisSession {
	return &RedisSession{redis: redisClient, cfg: cfg}
}

func (s *RedisSession) SetActiveBook(ctx context.Context, bookID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisSession.SetActiveBook"

	// the TTL is refreshed on every switch; an idle instance falls back to
	// "no active book" instead of silently operating on a stale choice
	_, err := s.redis.Set(ctx, activeBookKey, bookID, s.cfg.SessionExpiration).Result()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *RedisSession) GetActiveBook(ctx context.Context) (bookID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisSession.GetActiveBook"

	res, err := s.redis.Get(ctx, activeBookKey).Result()
	if err != nil {
		slog.Debug("no active book in session", slog.String("rqID", rqID), slog.String("op", op))
		return 0, err
	}

	bookID, err = strconv.ParseInt(res, 10, 64)
	if err != nil {
		slog.Error("can't parse active book id", slog.String("rqID", rqID), slog.String("op", op), slog.String("value", res))
		return 0, err
	}

	return bookID, nil
}
