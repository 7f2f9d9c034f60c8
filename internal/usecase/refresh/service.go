package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"newswatcher-worker/internal/domain"
	"newswatcher-worker/internal/infra/metrics"
)

// Service пересчитывает подборки новостей по фильтрам пользователей.
// Снимок глобального пула кэшируется в памяти между циклами: воркер
// мутирует собственную копию и не перечитывает документ из хранилища.
// Записи внешних писателей в этот документ становятся видны только после
// рестарта процесса — это принятое ограничение свежести.
type Service struct {
	users      domain.UserRepo
	global     domain.GlobalStoryRepo
	maxStories int
	log        zerolog.Logger

	mu       sync.RWMutex
	snapshot []domain.Story
	loaded   bool
}

// NewService создаёт сервис обновления фильтров.
func NewService(users domain.UserRepo, global domain.GlobalStoryRepo, maxStories int, logger zerolog.Logger) *Service {
	return &Service{users: users, global: global, maxStories: maxStories, log: logger}
}

// SetSnapshot подменяет кэшированный снимок пула после успешного цикла
// опроса. Снимок дальше читается только на чтение.
func (s *Service) SetSnapshot(stories []domain.Story) {
	s.mu.Lock()
	s.snapshot = stories
	s.loaded = true
	s.mu.Unlock()
}

func (s *Service) currentSnapshot(ctx context.Context) ([]domain.Story, error) {
	s.mu.RLock()
	if s.loaded {
		snap := s.snapshot
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	doc, err := s.global.GetGlobalStories(ctx)
	if err != nil {
		return nil, fmt.Errorf("чтение глобального документа: %w", err)
	}
	s.SetSnapshot(doc.NewsStories)
	return doc.NewsStories, nil
}

// RefreshUser пересчитывает newsStories каждого фильтра пользователя по
// текущему снимку и сохраняет результат точечным обновлением документа.
func (s *Service) RefreshUser(ctx context.Context, user domain.User) error {
	snapshot, err := s.currentSnapshot(ctx)
	if err != nil {
		metrics.UsersRefreshed.WithLabelValues("error").Inc()
		return err
	}

	now := time.Now().UTC()
	filters := make([]domain.Filter, len(user.NewsFilters))
	copy(filters, user.NewsFilters)
	for i := range filters {
		filters[i].NewsStories = domain.MatchFilter(snapshot, filters[i], s.maxStories)
		filters[i].TimeOfLastScan = now
	}

	if err := s.users.UpdateNewsFilters(ctx, user.ID, filters); err != nil {
		metrics.UsersRefreshed.WithLabelValues("error").Inc()
		return fmt.Errorf("сохранение newsFilters пользователя %s: %w", user.ID, err)
	}
	metrics.UsersRefreshed.WithLabelValues("success").Inc()
	return nil
}

// RefreshAll последовательно обходит всех пользователей и пересчитывает их
// фильтры. Проход best-effort: ошибка по одному пользователю логируется и
// не прерывает обход остальных.
func (s *Service) RefreshAll(ctx context.Context) error {
	var refreshed, failed int
	err := s.users.ForEachUser(ctx, func(user domain.User) error {
		if err := s.RefreshUser(ctx, user); err != nil {
			failed++
			s.log.Error().Err(err).Str("user", user.ID).Msg("refresh: не удалось обновить фильтры пользователя")
			return nil
		}
		refreshed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("обход пользователей: %w", err)
	}
	s.log.Info().Int("refreshed", refreshed).Int("failed", failed).Msg("refresh: проход по пользователям завершён")
	return nil
}
