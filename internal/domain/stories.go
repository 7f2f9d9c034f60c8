package domain

import (
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// StoryID возвращает детерминированный дайджест ссылки: URL-безопасный
// base64 без набивки от SHA-256. Две записи с одинаковой ссылкой всегда
// получают одинаковый идентификатор.
func StoryID(link string) string {
	sum := sha256.Sum256([]byte(link))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// CategoryStories — сырые записи одной категории в порядке выгрузки.
type CategoryStories struct {
	Category string
	Stories  []RawStory
}

// BuildSnapshot нормализует сырые записи всех категорий в общий пул и пул
// домашней категории. Записи без изображения отбрасываются: такие новости
// не показываются в продукте. Запись пропускается, если в собираемом пуле
// уже есть история с тем же ID или с точно таким же заголовком — одна и та
// же новость обычно встречается в нескольких разделах. Порядок обработки
// сохраняется, поэтому одинаковый вход даёт одинаковый результат. Общий пул
// ограничен maxPool записей, первые пришедшие выигрывают.
func BuildSnapshot(results []CategoryStories, homeCategory string, maxPool int) (newsStories, homeNewsStories []Story) {
	seenIDs := make(map[string]struct{})
	seenTitles := make(map[string]struct{})
	newsStories = make([]Story, 0)
	homeNewsStories = make([]Story, 0)

	for _, cat := range results {
		for _, raw := range cat.Stories {
			if len(raw.Multimedia) == 0 {
				continue
			}
			story := Story{
				ID:             StoryID(raw.URL),
				Title:          raw.Title,
				Link:           raw.URL,
				ContentSnippet: raw.Abstract,
				Source:         raw.Section,
				PublishedAt:    parseProviderDate(raw.UpdatedDate),
				ImageURL:       raw.Multimedia[0].URL,
			}
			if cat.Category == homeCategory {
				homeNewsStories = append(homeNewsStories, story)
			}
			if _, ok := seenIDs[story.ID]; ok {
				continue
			}
			if _, ok := seenTitles[story.Title]; ok {
				continue
			}
			if maxPool > 0 && len(newsStories) >= maxPool {
				continue
			}
			seenIDs[story.ID] = struct{}{}
			seenTitles[story.Title] = struct{}{}
			newsStories = append(newsStories, story)
		}
	}
	return newsStories, homeNewsStories
}

func parseProviderDate(raw string) time.Time {
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}
