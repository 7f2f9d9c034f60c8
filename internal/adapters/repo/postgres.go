package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"newswatcher-worker/internal/domain"
	"newswatcher-worker/internal/infra/metrics"
)

// Документное хранилище живёт в одной таблице с дискриминантом типа,
// как и исходная коллекция веб-приложения:
//
//	CREATE TABLE documents (
//	    id       TEXT PRIMARY KEY,
//	    doc_type TEXT NOT NULL,
//	    doc      JSONB NOT NULL
//	);
//	CREATE INDEX documents_doc_type_idx ON documents (doc_type);

const (
	docTypeUser        = "USER_TYPE"
	docTypeGlobalStory = "GLOBALSTORY_TYPE"
	docTypeSharedStory = "SHAREDSTORY_TYPE"
)

// ErrDocumentNotFound возвращается, когда документ не найден.
var ErrDocumentNotFound = errors.New("документ не найден")

// Postgres реализует репозитории документов на основе pgxpool.
type Postgres struct {
	pool        *pgxpool.Pool
	globalDocID string
}

var (
	_ domain.GlobalStoryRepo = (*Postgres)(nil)
	_ domain.UserRepo        = (*Postgres)(nil)
	_ domain.SharedStoryRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД. globalDocID — фиксированный идентификатор
// единственного канонического документа новостей.
func NewPostgres(pool *pgxpool.Pool, globalDocID string) *Postgres {
	return &Postgres{pool: pool, globalDocID: globalDocID}
}

func (p *Postgres) connCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if _, ok := parent.Deadline(); ok {
		return parent, func() {}
	}
	return context.WithTimeout(parent, 5*time.Second)
}

// GetGlobalStories читает канонический документ новостей.
func (p *Postgres) GetGlobalStories(ctx context.Context) (domain.GlobalStoryDoc, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var raw []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT doc FROM documents WHERE id = $1 AND doc_type = $2
`, p.globalDocID, docTypeGlobalStory).Scan(&raw)
	metrics.ObserveNetworkRequest("postgres", "global_stories_get", "documents", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GlobalStoryDoc{}, ErrDocumentNotFound
		}
		return domain.GlobalStoryDoc{}, err
	}

	doc := domain.GlobalStoryDoc{ID: p.globalDocID}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.GlobalStoryDoc{}, fmt.Errorf("декодирование глобального документа: %w", err)
	}
	doc.ID = p.globalDocID
	return doc, nil
}

// ReplaceGlobalStories заменяет оба поля историй канонического документа
// целиком. Частичных слияний нет: цикл опроса всегда пересобирает пул.
func (p *Postgres) ReplaceGlobalStories(ctx context.Context, doc domain.GlobalStoryDoc) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	news, err := json.Marshal(doc.NewsStories)
	if err != nil {
		return fmt.Errorf("кодирование newsStories: %w", err)
	}
	home, err := json.Marshal(doc.HomeNewsStories)
	if err != nil {
		return fmt.Errorf("кодирование homeNewsStories: %w", err)
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE documents
SET doc = jsonb_set(jsonb_set(doc, '{newsStories}', $2::jsonb), '{homeNewsStories}', $3::jsonb)
WHERE id = $1 AND doc_type = $4
`, p.globalDocID, news, home, docTypeGlobalStory)
	metrics.ObserveNetworkRequest("postgres", "global_stories_replace", "documents", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// GetUserByID читает документ пользователя.
func (p *Postgres) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var raw []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT doc FROM documents WHERE id = $1 AND doc_type = $2
`, id, docTypeUser).Scan(&raw)
	metrics.ObserveNetworkRequest("postgres", "user_get", "documents", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrDocumentNotFound
		}
		return domain.User{}, err
	}
	return decodeUser(id, raw)
}

// ForEachUser последовательно обходит всех пользователей через курсор.
// Документы читаются по одному, вся популяция в память не поднимается.
func (p *Postgres) ForEachUser(ctx context.Context, fn func(domain.User) error) error {
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, doc FROM documents WHERE doc_type = $1 ORDER BY id
`, docTypeUser)
	metrics.ObserveNetworkRequest("postgres", "users_cursor", "documents", start, err)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return err
		}
		user, err := decodeUser(id, raw)
		if err != nil {
			return err
		}
		if err := fn(user); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UpdateNewsFilters заменяет поле newsFilters документа пользователя
// точечным обновлением, не трогая остальные поля.
func (p *Postgres) UpdateNewsFilters(ctx context.Context, userID string, filters []domain.Filter) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	payload, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("кодирование newsFilters: %w", err)
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE documents
SET doc = jsonb_set(doc, '{newsFilters}', $2::jsonb)
WHERE id = $1 AND doc_type = $3
`, userID, payload, docTypeUser)
	metrics.ObserveNetworkRequest("postgres", "news_filters_update", "documents", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// ListSharedStories возвращает все расшаренные новости.
func (p *Postgres) ListSharedStories(ctx context.Context) ([]domain.SharedStory, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, doc FROM documents WHERE doc_type = $1 ORDER BY id
`, docTypeSharedStory)
	metrics.ObserveNetworkRequest("postgres", "shared_stories_list", "documents", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []domain.SharedStory
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var story domain.SharedStory
		if err := json.Unmarshal(raw, &story); err != nil {
			return nil, fmt.Errorf("декодирование расшаренной новости %s: %w", id, err)
		}
		story.ID = id
		stories = append(stories, story)
	}
	return stories, rows.Err()
}

// DeleteSharedStory удаляет расшаренную новость по идентификатору.
func (p *Postgres) DeleteSharedStory(ctx context.Context, id string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
DELETE FROM documents WHERE id = $1 AND doc_type = $2
`, id, docTypeSharedStory)
	metrics.ObserveNetworkRequest("postgres", "shared_story_delete", "documents", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func decodeUser(id string, raw []byte) (domain.User, error) {
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return domain.User{}, fmt.Errorf("декодирование пользователя %s: %w", id, err)
	}
	user.ID = id
	return user, nil
}
