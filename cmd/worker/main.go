package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"newswatcher-worker/internal/adapters/nytimes"
	"newswatcher-worker/internal/adapters/repo"
	"newswatcher-worker/internal/domain"
	"newswatcher-worker/internal/infra/config"
	"newswatcher-worker/internal/infra/db"
	httpinfra "newswatcher-worker/internal/infra/http"
	applog "newswatcher-worker/internal/infra/log"
	"newswatcher-worker/internal/infra/metrics"
	"newswatcher-worker/internal/infra/queue"
	"newswatcher-worker/internal/usecase/ingest"
	"newswatcher-worker/internal/usecase/reaper"
	"newswatcher-worker/internal/usecase/refresh"
)

// Пауза перед первым циклом опроса после старта процесса.
const startupDelay = 15 * time.Second

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	go func() {
		if err := srv.Start(cfg.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("worker: служебный HTTP сервер остановлен")
		}
	}()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool, cfg.Ingest.GlobalDocID)

	var refreshQueue domain.RefreshQueue
	if cfg.RabbitURL != "" {
		refreshQueue, err = queue.NewRabbitRefreshQueue(cfg.RabbitURL, cfg.RabbitManagementURL, cfg.Queues.Refresh)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: не удалось инициализировать очередь RabbitMQ")
		}
	} else {
		if cfg.RedisAddr == "" {
			logger.Fatal().Msg("worker: не указан адрес Redis (REDIS_ADDR)")
		}
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		refreshQueue = queue.NewRedisRefreshQueue(redisClient, cfg.Queues.Refresh)
	}

	if cfg.NYT.APIKey == "" {
		logger.Fatal().Msg("worker: не указан ключ провайдера (NYT_API_KEY)")
	}
	provider := nytimes.NewClient(cfg.NYT.BaseURL, cfg.NYT.APIKey, cfg.NYT.Timeout)

	refreshSvc := refresh.NewService(repoAdapter, repoAdapter, cfg.Limits.FilterStories, logger.With().Str("component", "refresh").Logger())
	ingestSvc := ingest.NewService(provider, repoAdapter, refreshSvc, cfg.Ingest.Categories, cfg.Ingest.FetchSpacing, cfg.Ingest.MaxPoolStories, logger.With().Str("component", "ingest").Logger())
	reaperSvc := reaper.NewService(repoAdapter, cfg.Reaper.StaleAfter, logger.With().Str("component", "reaper").Logger())

	go consumeRefreshJobs(ctx, logger.With().Str("component", "trigger").Logger(), refreshQueue, repoAdapter, refreshSvc)

	go func() {
		ticker := time.NewTicker(cfg.Reaper.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := reaperSvc.ReapOnce(ctx); err != nil {
					logger.Error().Err(err).Msg("worker: очистка расшаренных новостей завершилась ошибкой")
				}
			}
		}
	}()

	logger.Info().
		Strs("categories", cfg.Ingest.Categories).
		Dur("poll_interval", cfg.Ingest.PollInterval).
		Msg("worker: запущен")

	pollTicker := time.NewTicker(cfg.Ingest.PollInterval)
	defer pollTicker.Stop()
	initial := time.After(startupDelay)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = srv.Shutdown(shutdownCtx)
			cancel()
			logger.Info().Msg("worker: остановлен")
			return
		case <-initial:
			initial = nil
		case <-pollTicker.C:
		}

		if err := ingestSvc.RunCycle(ctx); err != nil {
			if errors.Is(err, ingest.ErrProviderExhausted) {
				// Таймеры останавливаются, процесс завершается,
				// рестарт — на супервизоре.
				logger.Fatal().Err(err).Msg("worker: провайдер исчерпан, завершаем процесс")
			}
			logger.Error().Err(err).Msg("worker: цикл опроса завершился ошибкой")
		}
	}
}

// consumeRefreshJobs обрабатывает сигналы REFRESH_STORIES от веб-слоя.
// Канал fire-and-forget: битое сообщение пропускается, воркер не падает.
func consumeRefreshJobs(ctx context.Context, logger zerolog.Logger, q domain.RefreshQueue, users domain.UserRepo, refreshSvc *refresh.Service) {
	for {
		job, err := q.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error().Err(err).Msg("trigger: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		metrics.RefreshJobsReceived.Inc()
		if job.Type != domain.RefreshJobType {
			logger.Warn().Str("type", job.Type).Msg("trigger: неизвестный тип сообщения, пропускаем")
			continue
		}

		user := job.User
		if user == nil {
			if job.UserID == "" {
				logger.Warn().Str("job_id", job.ID).Msg("trigger: сообщение без пользователя, пропускаем")
				continue
			}
			loaded, err := users.GetUserByID(ctx, job.UserID)
			if err != nil {
				logger.Error().Err(err).Str("user", job.UserID).Msg("trigger: пользователь не найден")
				continue
			}
			user = &loaded
		}

		if err := refreshSvc.RefreshUser(ctx, *user); err != nil {
			logger.Error().Err(err).Str("user", user.ID).Msg("trigger: не удалось обновить фильтры пользователя")
			continue
		}
		logger.Info().Str("user", user.ID).Str("job_id", job.ID).Msg("trigger: фильтры пользователя обновлены")
	}
}
