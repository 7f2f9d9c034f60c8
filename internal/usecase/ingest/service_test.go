package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"newswatcher-worker/internal/domain"
	"newswatcher-worker/internal/usecase/refresh"
)

type fakeResponse struct {
	stories []domain.RawStory
	err     error
}

type fakeProvider struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []string
	startedAt []time.Time
	block     chan struct{}
}

func (f *fakeProvider) TopStories(_ context.Context, category string) ([]domain.RawStory, error) {
	f.mu.Lock()
	f.calls = append(f.calls, category)
	f.startedAt = append(f.startedAt, time.Now())
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	resp := f.responses[category]
	return resp.stories, resp.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeGlobalRepo struct {
	doc          domain.GlobalStoryDoc
	replaceCalls int
	replaceErr   error
}

func (f *fakeGlobalRepo) GetGlobalStories(context.Context) (domain.GlobalStoryDoc, error) {
	return f.doc, nil
}

func (f *fakeGlobalRepo) ReplaceGlobalStories(_ context.Context, doc domain.GlobalStoryDoc) error {
	f.replaceCalls++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.doc = doc
	return nil
}

type fakeUserRepo struct {
	users   []domain.User
	updated map[string][]domain.Filter
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (domain.User, error) {
	return domain.User{}, errors.New("нет такого пользователя")
}

func (f *fakeUserRepo) ForEachUser(_ context.Context, fn func(domain.User) error) error {
	for _, u := range f.users {
		if err := fn(u); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeUserRepo) UpdateNewsFilters(_ context.Context, userID string, filters []domain.Filter) error {
	if f.updated == nil {
		f.updated = make(map[string][]domain.Filter)
	}
	f.updated[userID] = filters
	return nil
}

func rawStory(url, title string) domain.RawStory {
	return domain.RawStory{
		URL:        url,
		Title:      title,
		Abstract:   "abstract",
		Section:    "world",
		Multimedia: []domain.RawMultimedia{{URL: "https://img/" + title}},
	}
}

func newTestService(provider domain.StoryProvider, global domain.GlobalStoryRepo, users *fakeUserRepo, categories []string, spacing time.Duration) *Service {
	refreshSvc := refresh.NewService(users, global, 15, zerolog.Nop())
	return NewService(provider, global, refreshSvc, categories, spacing, 0, zerolog.Nop())
}

func TestRunCycleBuildsPoolAndRefreshesUsers(t *testing.T) {
	provider := &fakeProvider{responses: map[string]fakeResponse{
		"home":  {stories: []domain.RawStory{rawStory("https://nyt.com/a", "Apple event")}},
		"world": {stories: []domain.RawStory{rawStory("https://nyt.com/b", "World news")}},
	}}
	global := &fakeGlobalRepo{}
	users := &fakeUserRepo{users: []domain.User{
		{ID: "u1", NewsFilters: []domain.Filter{{Keywords: []string{"apple"}}}},
	}}
	service := newTestService(provider, global, users, []string{"home", "world"}, time.Millisecond)

	if err := service.RunCycle(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if global.replaceCalls != 1 {
		t.Fatalf("ожидали одну замену глобального документа, получили %d", global.replaceCalls)
	}
	if len(global.doc.NewsStories) != 2 {
		t.Fatalf("ожидали 2 истории в пуле, получили %d", len(global.doc.NewsStories))
	}
	if len(global.doc.HomeNewsStories) != 1 {
		t.Fatalf("ожидали 1 домашнюю историю, получили %d", len(global.doc.HomeNewsStories))
	}
	filters, ok := users.updated["u1"]
	if !ok {
		t.Fatalf("ожидали пересчёт фильтров пользователя после цикла")
	}
	if len(filters[0].NewsStories) != 1 || filters[0].NewsStories[0].Title != "Apple event" {
		t.Fatalf("ожидали совпадение по apple, получили %+v", filters[0].NewsStories)
	}
}

func TestRunCyclePacing(t *testing.T) {
	const spacing = 25 * time.Millisecond
	provider := &fakeProvider{responses: map[string]fakeResponse{
		"home":     {stories: []domain.RawStory{rawStory("https://nyt.com/a", "A")}},
		"world":    {stories: []domain.RawStory{rawStory("https://nyt.com/b", "B")}},
		"business": {stories: []domain.RawStory{rawStory("https://nyt.com/c", "C")}},
	}}
	global := &fakeGlobalRepo{}
	service := newTestService(provider, global, &fakeUserRepo{}, []string{"home", "world", "business"}, spacing)

	if err := service.RunCycle(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(provider.startedAt) != 3 {
		t.Fatalf("ожидали 3 запроса, получили %d", len(provider.startedAt))
	}
	for i := 1; i < len(provider.startedAt); i++ {
		gap := provider.startedAt[i].Sub(provider.startedAt[i-1])
		if gap < spacing {
			t.Fatalf("пауза между запросами %d и %d меньше %v: %v", i-1, i, spacing, gap)
		}
	}
}

func TestRunCycleTransientFailureContinues(t *testing.T) {
	provider := &fakeProvider{responses: map[string]fakeResponse{
		"home":     {stories: []domain.RawStory{rawStory("https://nyt.com/a", "A")}},
		"world":    {err: &domain.ProviderFetchError{Category: "world", StatusCode: 503}},
		"business": {stories: []domain.RawStory{rawStory("https://nyt.com/c", "C")}},
	}}
	global := &fakeGlobalRepo{}
	service := newTestService(provider, global, &fakeUserRepo{}, []string{"home", "world", "business"}, time.Millisecond)

	if err := service.RunCycle(context.Background()); err != nil {
		t.Fatalf("транзитный сбой одной категории не должен ронять цикл: %v", err)
	}
	if provider.callCount() != 3 {
		t.Fatalf("сбой категории не должен останавливать следующие, получили %d запросов", provider.callCount())
	}
	if len(global.doc.NewsStories) != 2 {
		t.Fatalf("ожидали истории двух категорий, получили %d", len(global.doc.NewsStories))
	}
}

func TestRunCycleParseErrorAbortsWithoutCommit(t *testing.T) {
	provider := &fakeProvider{responses: map[string]fakeResponse{
		"home":     {stories: []domain.RawStory{rawStory("https://nyt.com/a", "A")}},
		"business": {err: &domain.ProviderParseError{Category: "business", Err: errors.New("invalid json")}},
	}}
	before := domain.GlobalStoryDoc{NewsStories: []domain.Story{{ID: "keep", Title: "Last good"}}}
	global := &fakeGlobalRepo{doc: before}
	service := newTestService(provider, global, &fakeUserRepo{}, []string{"home", "business"}, time.Millisecond)

	if err := service.RunCycle(context.Background()); err == nil {
		t.Fatalf("ожидали ошибку цикла при некорректном ответе")
	}
	if global.replaceCalls != 0 {
		t.Fatalf("при ошибке разбора цикл не должен ничего фиксировать")
	}
	if len(global.doc.NewsStories) != 1 || global.doc.NewsStories[0].ID != "keep" {
		t.Fatalf("последний удачный документ должен остаться авторитетным")
	}
}

func TestRunCycleFatalAfterThreeRequestErrors(t *testing.T) {
	provider := &fakeProvider{responses: map[string]fakeResponse{}}
	for _, cat := range []string{"home", "world", "national", "business", "technology"} {
		provider.responses[cat] = fakeResponse{err: &domain.ProviderRequestError{Category: cat, Err: errors.New("bad request")}}
	}
	global := &fakeGlobalRepo{}
	service := newTestService(provider, global, &fakeUserRepo{}, []string{"home", "world", "national", "business", "technology"}, time.Millisecond)

	err := service.RunCycle(context.Background())
	if !errors.Is(err, ErrProviderExhausted) {
		t.Fatalf("ожидали ErrProviderExhausted, получили %v", err)
	}
	if provider.callCount() != 3 {
		t.Fatalf("после третьей ошибки построения запросов быть не должно, получили %d", provider.callCount())
	}
	if global.replaceCalls != 0 {
		t.Fatalf("фатальный цикл не должен ничего фиксировать")
	}
}

func TestRunCycleRequestErrorsResetOnSuccess(t *testing.T) {
	provider := &fakeProvider{responses: map[string]fakeResponse{
		"home":     {err: &domain.ProviderRequestError{Category: "home", Err: errors.New("bad")}},
		"world":    {stories: []domain.RawStory{rawStory("https://nyt.com/b", "B")}},
		"national": {err: &domain.ProviderRequestError{Category: "national", Err: errors.New("bad")}},
		"business": {err: &domain.ProviderRequestError{Category: "business", Err: errors.New("bad")}},
	}}
	global := &fakeGlobalRepo{}
	service := newTestService(provider, global, &fakeUserRepo{}, []string{"home", "world", "national", "business"}, time.Millisecond)

	if err := service.RunCycle(context.Background()); err != nil {
		t.Fatalf("несмежные ошибки построения не должны быть фатальными: %v", err)
	}
	if provider.callCount() != 4 {
		t.Fatalf("ожидали запросы ко всем категориям, получили %d", provider.callCount())
	}
}

func TestRunCycleSkipsWhenBusy(t *testing.T) {
	provider := &fakeProvider{
		responses: map[string]fakeResponse{
			"home": {stories: []domain.RawStory{rawStory("https://nyt.com/a", "A")}},
		},
		block: make(chan struct{}),
	}
	global := &fakeGlobalRepo{}
	service := newTestService(provider, global, &fakeUserRepo{}, []string{"home"}, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- service.RunCycle(context.Background()) }()

	// Дожидаемся, пока первый цикл начнёт выгрузку и повиснет на провайдере.
	for provider.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := service.RunCycle(context.Background()); err != nil {
		t.Fatalf("опоздавший тик должен пропускаться без ошибки: %v", err)
	}
	if provider.callCount() != 1 {
		t.Fatalf("пропущенный тик не должен выполнять запросы, получили %d", provider.callCount())
	}

	close(provider.block)
	if err := <-done; err != nil {
		t.Fatalf("первый цикл должен завершиться успешно: %v", err)
	}
}
