package domain

import "time"

// Story описывает нормализованную новость с детерминированным идентификатором.
type Story struct {
	ID             string    `json:"storyID"`
	Title          string    `json:"title"`
	Link           string    `json:"link"`
	ContentSnippet string    `json:"contentSnippet"`
	Source         string    `json:"source"`
	PublishedAt    time.Time `json:"date"`
	ImageURL       string    `json:"imageUrl"`
}

// GlobalStoryDoc — единственный канонический документ со всеми новостями.
// Поля историй заменяются целиком каждый цикл опроса, никогда не патчатся.
type GlobalStoryDoc struct {
	ID              string  `json:"_id"`
	NewsStories     []Story `json:"newsStories"`
	HomeNewsStories []Story `json:"homeNewsStories"`
}

// Filter — пользовательское правило отбора новостей по ключевым словам.
// NewsStories — производное поле, пересчитывается при каждом обновлении
// целиком и никогда не сливается с прошлым результатом.
type Filter struct {
	Name             string    `json:"name"`
	Keywords         []string  `json:"keyWords"`
	EnableAlerts     bool      `json:"enableAlerts"`
	AlertFrequency   int       `json:"alertFrequency"`
	EnableAutoDelete bool      `json:"enableAutoDelete"`
	DeleteTime       time.Time `json:"deleteTime"`
	TimeOfLastScan   time.Time `json:"timeOfLastScan"`
	NewsStories      []Story   `json:"newsStories"`
}

// User описывает пользователя с его фильтрами и сохранёнными новостями.
type User struct {
	ID           string   `json:"_id"`
	DisplayName  string   `json:"displayName"`
	Email        string   `json:"email"`
	NewsFilters  []Filter `json:"newsFilters"`
	SavedStories []Story  `json:"savedStories"`
}

// Comment — комментарий к расшаренной новости.
type Comment struct {
	DisplayName string    `json:"displayName"`
	UserID      string    `json:"userId"`
	DateTime    time.Time `json:"dateTime"`
	Comment     string    `json:"comment"`
}

// SharedStory — новость, расшаренная пользователем. Момент шаринга
// определяется по времени первого комментария: операция шаринга всегда
// добавляет начальный системный комментарий.
type SharedStory struct {
	ID       string    `json:"_id"`
	Story    Story     `json:"story"`
	Comments []Comment `json:"comments"`
}

// SharedAt возвращает время шаринга и false, если комментариев нет.
func (s SharedStory) SharedAt() (time.Time, bool) {
	if len(s.Comments) == 0 {
		return time.Time{}, false
	}
	return s.Comments[0].DateTime, true
}
