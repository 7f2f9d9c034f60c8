package domain

import "strings"

// MatchFilter отбирает из пула истории, в заголовке или аннотации которых
// встречается хотя бы одно ключевое слово фильтра (без учёта регистра).
// Совпадения накапливаются по всем ключевым словам, каждая история попадает
// в результат не более одного раза. Перебор останавливается, как только
// набрано max историй, в том числе посреди очередного ключевого слова.
// Функция чистая: пул не изменяется, состояние совпадений живёт только
// внутри вычисления, поэтому один снимок безопасно переиспользуется для
// всех пользователей подряд.
func MatchFilter(pool []Story, filter Filter, max int) []Story {
	matched := make([]Story, 0)
	if len(filter.Keywords) == 0 || filter.Keywords[0] == "" {
		return matched
	}

	taken := make(map[string]struct{})
	for _, keyword := range filter.Keywords {
		kw := strings.ToLower(keyword)
		if kw == "" {
			continue
		}
		for _, story := range pool {
			if max > 0 && len(matched) >= max {
				return matched
			}
			if _, ok := taken[story.ID]; ok {
				continue
			}
			title := strings.ToLower(story.Title)
			snippet := strings.ToLower(story.ContentSnippet)
			if strings.Contains(title, kw) || strings.Contains(snippet, kw) {
				taken[story.ID] = struct{}{}
				matched = append(matched, story)
			}
		}
	}
	return matched
}
