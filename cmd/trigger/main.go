package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"newswatcher-worker/internal/domain"
	"newswatcher-worker/internal/infra/config"
	applog "newswatcher-worker/internal/infra/log"
	"newswatcher-worker/internal/infra/queue"
)

// Утилита для ручной публикации сигнала REFRESH_STORIES: тот же путь,
// которым веб-слой запрашивает внеочередное обновление пользователя.
func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	if len(os.Args) < 2 {
		logger.Fatal().Msg("trigger: укажите идентификатор пользователя")
	}
	userID := os.Args[1]

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("trigger: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	refreshQueue := queue.NewRedisRefreshQueue(redisClient, cfg.Queues.Refresh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job := domain.RefreshJob{
		ID:          uuid.NewString(),
		Type:        domain.RefreshJobType,
		UserID:      userID,
		RequestedAt: time.Now().UTC(),
	}
	if err := refreshQueue.Enqueue(ctx, job); err != nil {
		logger.Fatal().Err(err).Msg("trigger: не удалось опубликовать сигнал")
	}
	logger.Info().Str("user", userID).Str("job_id", job.ID).Msg("trigger: сигнал опубликован")
}
