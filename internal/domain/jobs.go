package domain

import (
	"context"
	"time"
)

// DraftJob — задача на генерацию черновика для сохранённой новости.
type DraftJob struct {
	ID         string    `json:"job_id"`
	NewsItemID int64     `json:"news_item_id"`
	Attempts   int       `json:"attempts,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DraftAckFunc подтверждает успешную обработку или запрашивает повторную
// доставку задачи.
type DraftAckFunc func(success bool) error

// DraftQueue описывает очередь задач на генерацию черновиков.
type DraftQueue interface {
	Enqueue(ctx context.Context, job DraftJob) error
	Receive(ctx context.Context) (DraftJob, DraftAckFunc, error)
}

// DraftJobStatusRepo отвечает за идемпотентность обработки задач.
type DraftJobStatusRepo interface {
	// EnsureDraftJob регистрирует попытку обработки и возвращает признак
	// уже завершённой обработки и номер текущей попытки.
	EnsureDraftJob(jobID string) (processed bool, attempt int, err error)
	// MarkDraftJobProcessed помечает задачу как окончательно обработанную.
	MarkDraftJobProcessed(jobID string) error
}
