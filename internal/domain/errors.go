package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNewsItemExists возвращается при вставке новости с уже сохранённым
// external_id. Для сбора это штатный исход гонки, а не ошибка.
var ErrNewsItemExists = errors.New("новость уже сохранена")

// ErrNewsItemNotFound возвращается, если новость не найдена по id.
var ErrNewsItemNotFound = errors.New("новость не найдена")

// ErrDraftNotFound возвращается, если черновик не найден по id.
var ErrDraftNotFound = errors.New("черновик не найден")

// ErrDraftNotPending возвращается при попытке одобрить или отклонить
// черновик, который уже покинул состояние pending.
var ErrDraftNotPending = errors.New("черновик уже обработан")

// RateLimitError сигнализирует, что внешний провайдер ограничил запросы.
// RetryAfter — рекомендованная пауза перед следующей попыткой.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("превышен лимит запросов, повтор через %s", e.RetryAfter)
}

// UpstreamError — неожиданный статус или повреждённое тело ответа
// внешнего API.
type UpstreamError struct {
	Provider string
	Status   int
	Detail   string
}

func (e *UpstreamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: статус %d: %s", e.Provider, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: статус %d", e.Provider, e.Status)
}
