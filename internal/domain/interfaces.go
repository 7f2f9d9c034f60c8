package domain

import "context"

// RawStory — сырая запись провайдера новостей до нормализации.
type RawStory struct {
	URL         string
	Title       string
	Abstract    string
	Section     string
	UpdatedDate string
	Multimedia  []RawMultimedia
}

// RawMultimedia описывает вложение сырой записи.
type RawMultimedia struct {
	URL string
}

// StoryProvider выгружает сырые новости одной категории.
type StoryProvider interface {
	TopStories(ctx context.Context, category string) ([]RawStory, error)
}

// GlobalStoryRepo управляет единственным каноническим документом новостей.
type GlobalStoryRepo interface {
	GetGlobalStories(ctx context.Context) (GlobalStoryDoc, error)
	// ReplaceGlobalStories заменяет оба поля историй целиком, без слияния.
	ReplaceGlobalStories(ctx context.Context, doc GlobalStoryDoc) error
}

// UserRepo управляет пользовательскими документами.
type UserRepo interface {
	GetUserByID(ctx context.Context, id string) (User, error)
	// ForEachUser последовательно обходит всех пользователей через
	// однонаправленный курсор. Ошибка fn прерывает обход.
	ForEachUser(ctx context.Context, fn func(User) error) error
	UpdateNewsFilters(ctx context.Context, userID string, filters []Filter) error
}

// SharedStoryRepo управляет расшаренными новостями.
type SharedStoryRepo interface {
	ListSharedStories(ctx context.Context) ([]SharedStory, error)
	DeleteSharedStory(ctx context.Context, id string) error
}
