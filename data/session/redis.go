package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/finance_simulator/config"
	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/utils"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

// Key prefixes keep web tokens and telegram chat ids apart.
const (
	WebPrefix      = "web:"
	TelegramPrefix = "tg:"
)

type RedisSession struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSession(redisClient *redis.Client, cfg *config.Config) *RedisSession {
	return &RedisSession{redis: redisClient, ttl: cfg.SessionExpiration}
}

func (r *RedisSession) GetSession(ctx context.Context, key string) (model.Session, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetSession start", slog.String("rqID", rqID))

	res, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, fmt.Errorf("redis get session: %w", err)
	}

	s := model.Session{}
	if err = json.Unmarshal([]byte(res), &s); err != nil {
		return model.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}

	slog.Debug("GetSession completed", slog.String("rqID", rqID), slog.Int64("userID", s.UserID))

	return s, nil
}

// SetSession stores s under key and restarts its expiration.
func (r *RedisSession) SetSession(ctx context.Context, key string, s model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetSession start", slog.String("rqID", rqID), slog.Int64("userID", s.UserID))

	sessionJson, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err = r.redis.Set(ctx, key, sessionJson, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}

	slog.Debug("SetSession completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisSession) DeleteSession(ctx context.Context, key string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("DeleteSession start", slog.String("rqID", rqID))

	if err := r.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}

	slog.Debug("DeleteSession completed", slog.String("rqID", rqID))

	return nil
}
