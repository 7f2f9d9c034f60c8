package domain

import (
	"context"
	"time"
)

// RefreshJobType — тип сообщения в канале обновлений.
const RefreshJobType = "REFRESH_STORIES"

// RefreshJob — запрос веб-слоя на внеочередное обновление фильтров
// пользователя. Доставка at-most-once: если воркер не запущен,
// сообщение теряется, подтверждений нет.
type RefreshJob struct {
	ID          string    `json:"job_id,omitempty"`
	Type        string    `json:"type"`
	UserID      string    `json:"user_id"`
	User        *User     `json:"user,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// RefreshQueue — однонаправленный канал сигналов от веб-слоя к воркеру.
type RefreshQueue interface {
	Enqueue(ctx context.Context, job RefreshJob) error
	// Receive блокирующе читает следующее сообщение.
	Receive(ctx context.Context) (RefreshJob, error)
}
