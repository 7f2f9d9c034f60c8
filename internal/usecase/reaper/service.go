package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"newswatcher-worker/internal/domain"
	"newswatcher-worker/internal/infra/metrics"
)

// Service удаляет расшаренные новости старше порога хранения.
type Service struct {
	shared     domain.SharedStoryRepo
	staleAfter time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewService создаёт сервис очистки.
func NewService(shared domain.SharedStoryRepo, staleAfter time.Duration, logger zerolog.Logger) *Service {
	return &Service{shared: shared, staleAfter: staleAfter, log: logger, now: time.Now}
}

// ReapOnce один раз проходит по всем расшаренным новостям и удаляет
// устаревшие. Возраст считается в целых часах от времени первого
// комментария. Ошибка удаления одной записи логируется и не мешает
// обработке остальных.
func (s *Service) ReapOnce(ctx context.Context) error {
	stories, err := s.shared.ListSharedStories(ctx)
	if err != nil {
		return fmt.Errorf("чтение расшаренных новостей: %w", err)
	}

	thresholdHours := int(s.staleAfter.Hours())
	now := s.now().UTC()
	var deleted int
	for _, story := range stories {
		sharedAt, ok := story.SharedAt()
		if !ok {
			s.log.Warn().Str("story", story.ID).Msg("reaper: расшаренная новость без комментариев, пропускаем")
			continue
		}
		ageHours := int(now.Sub(sharedAt).Hours())
		if ageHours <= thresholdHours {
			continue
		}
		if err := s.shared.DeleteSharedStory(ctx, story.ID); err != nil {
			s.log.Error().Err(err).Str("story", story.ID).Msg("reaper: не удалось удалить устаревшую новость")
			continue
		}
		deleted++
		metrics.SharedStoriesReaped.Inc()
	}
	s.log.Info().Int("scanned", len(stories)).Int("deleted", deleted).Msg("reaper: очистка завершена")
	return nil
}
