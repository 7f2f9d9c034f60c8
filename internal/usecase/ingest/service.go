package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"newswatcher-worker/internal/domain"
	"newswatcher-worker/internal/infra/metrics"
	"newswatcher-worker/internal/usecase/refresh"
)

// ErrProviderExhausted означает три подряд ошибки построения запроса к
// провайдеру. Воркер останавливает таймеры и завершает процесс, рестарт —
// ответственность супервизора.
var ErrProviderExhausted = errors.New("провайдер недоступен: слишком много ошибок построения запроса")

const maxConsecutiveRequestErrors = 3

// Service выполняет цикл опроса провайдера: пересобирает канонический пул
// новостей и запускает пересчёт фильтров всех пользователей.
type Service struct {
	provider   domain.StoryProvider
	global     domain.GlobalStoryRepo
	refresh    *refresh.Service
	categories []string
	spacing    time.Duration
	maxPool    int
	log        zerolog.Logger

	// runMu гарантирует, что новый тик не стартует, пока не закончился
	// предыдущий: опоздавший цикл пропускается, а не выполняется рядом.
	runMu sync.Mutex

	requestErrors int
}

// NewService создаёт сервис опроса. Первая категория списка считается
// домашней: её истории дополнительно попадают в homeNewsStories.
func NewService(provider domain.StoryProvider, global domain.GlobalStoryRepo, refreshSvc *refresh.Service, categories []string, spacing time.Duration, maxPool int, logger zerolog.Logger) *Service {
	return &Service{
		provider:   provider,
		global:     global,
		refresh:    refreshSvc,
		categories: categories,
		spacing:    spacing,
		maxPool:    maxPool,
		log:        logger,
	}
}

// RunCycle выполняет один цикл опроса. Запросы к категориям идут строго
// последовательно с паузой не меньше spacing между стартами — провайдер
// ограничивает частоту обращений, параллелить их нельзя.
func (s *Service) RunCycle(ctx context.Context) error {
	if !s.runMu.TryLock() {
		s.log.Warn().Msg("ingest: предыдущий цикл ещё выполняется, тик пропущен")
		metrics.PollCycles.WithLabelValues("skipped").Inc()
		return nil
	}
	defer s.runMu.Unlock()

	start := time.Now()
	err := s.runCycle(ctx)
	metrics.PollCycleSeconds.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.PollCycles.WithLabelValues("success").Inc()
	case errors.Is(err, ErrProviderExhausted):
		metrics.PollCycles.WithLabelValues("fatal").Inc()
	default:
		metrics.PollCycles.WithLabelValues("error").Inc()
	}
	return err
}

func (s *Service) runCycle(ctx context.Context) error {
	results, err := s.fetchAll(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		// Все категории отвалились по транзиту: последний удачный пул
		// остаётся авторитетным до следующего тика.
		s.log.Warn().Msg("ingest: ни одна категория не выгружена, цикл отброшен")
		return errors.New("ни одна категория не выгружена")
	}

	newsStories, homeNewsStories := domain.BuildSnapshot(results, s.categories[0], s.maxPool)
	doc := domain.GlobalStoryDoc{NewsStories: newsStories, HomeNewsStories: homeNewsStories}
	if err := s.global.ReplaceGlobalStories(ctx, doc); err != nil {
		// Результат цикла отбрасывается, повтор — на следующем тике.
		return fmt.Errorf("замена глобального документа: %w", err)
	}
	metrics.PoolStories.Set(float64(len(newsStories)))
	s.log.Info().Int("pool", len(newsStories)).Int("home", len(homeNewsStories)).Msg("ingest: глобальный пул пересобран")

	s.refresh.SetSnapshot(newsStories)
	if err := s.refresh.RefreshAll(ctx); err != nil {
		s.log.Error().Err(err).Msg("ingest: проход по пользователям прерван")
	}
	return nil
}

// fetchAll последовательно выгружает все категории. Каждый завершающий
// исход запроса возвращает управление циклу темпа, поэтому неудачная
// категория не задерживает следующие.
func (s *Service) fetchAll(ctx context.Context) ([]domain.CategoryStories, error) {
	results := make([]domain.CategoryStories, 0, len(s.categories))
	ticker := time.NewTicker(s.spacing)
	defer ticker.Stop()

	for _, category := range s.categories {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		stories, err := s.provider.TopStories(ctx, category)
		if err != nil {
			var reqErr *domain.ProviderRequestError
			var parseErr *domain.ProviderParseError
			switch {
			case errors.As(err, &reqErr):
				s.requestErrors++
				metrics.FetchErrors.WithLabelValues("request").Inc()
				s.log.Error().Err(err).Str("category", category).Int("consecutive", s.requestErrors).Msg("ingest: ошибка построения запроса")
				if s.requestErrors >= maxConsecutiveRequestErrors {
					return nil, ErrProviderExhausted
				}
			case errors.As(err, &parseErr):
				metrics.FetchErrors.WithLabelValues("parse").Inc()
				// Некорректный ответ провайдера: цикл прерывается целиком,
				// частичные результаты не фиксируются.
				return nil, fmt.Errorf("разбор категории %q: %w", category, err)
			default:
				s.requestErrors = 0
				metrics.FetchErrors.WithLabelValues("transient").Inc()
				s.log.Error().Err(err).Str("category", category).Msg("ingest: категория пропущена в этом цикле")
			}
			continue
		}

		s.requestErrors = 0
		results = append(results, domain.CategoryStories{Category: category, Stories: stories})
	}
	return results, nil
}
