package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"newswatcher-worker/internal/domain"
)

type stubSharedRepo struct {
	stories []domain.SharedStory
	deleted []string
	failFor string
}

func (s *stubSharedRepo) ListSharedStories(context.Context) ([]domain.SharedStory, error) {
	return s.stories, nil
}

func (s *stubSharedRepo) DeleteSharedStory(_ context.Context, id string) error {
	if id == s.failFor {
		return errors.New("хранилище недоступно")
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func sharedAge(id string, age time.Duration, now time.Time) domain.SharedStory {
	return domain.SharedStory{
		ID:       id,
		Comments: []domain.Comment{{DisplayName: "system", DateTime: now.Add(-age)}},
	}
}

func TestReapBoundary(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	repo := &stubSharedRepo{stories: []domain.SharedStory{
		sharedAge("old", 73*time.Hour, now),
		sharedAge("fresh", 71*time.Hour, now),
	}}
	service := NewService(repo, 72*time.Hour, zerolog.Nop())
	service.now = func() time.Time { return now }

	if err := service.ReapOnce(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "old" {
		t.Fatalf("ожидали удаление только 73-часовой записи, получили %v", repo.deleted)
	}
}

func TestReapContinuesAfterDeleteFailure(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	repo := &stubSharedRepo{
		stories: []domain.SharedStory{
			sharedAge("first", 80*time.Hour, now),
			sharedAge("second", 80*time.Hour, now),
		},
		failFor: "first",
	}
	service := NewService(repo, 72*time.Hour, zerolog.Nop())
	service.now = func() time.Time { return now }

	if err := service.ReapOnce(context.Background()); err != nil {
		t.Fatalf("сбой удаления одной записи не должен прерывать очистку: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "second" {
		t.Fatalf("ожидали удаление second несмотря на сбой first, получили %v", repo.deleted)
	}
}

func TestReapSkipsStoryWithoutComments(t *testing.T) {
	repo := &stubSharedRepo{stories: []domain.SharedStory{{ID: "broken"}}}
	service := NewService(repo, 72*time.Hour, zerolog.Nop())

	if err := service.ReapOnce(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.deleted) != 0 {
		t.Fatalf("запись без комментариев не должна удаляться")
	}
}
