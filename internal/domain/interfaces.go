package domain

import (
	"context"
	"time"
)

// Fetcher получает кандидатов из внешней ленты трендовых новостей.
type Fetcher interface {
	FetchHot(ctx context.Context) ([]Candidate, error)
}

// NewsRepo управляет сохранёнными новостями.
type NewsRepo interface {
	// ExistingExternalIDs возвращает подмножество переданных идентификаторов,
	// которые уже сохранены. Один батчевый запрос на весь список.
	ExistingExternalIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	// InsertNewsItem вставляет новость. При нарушении уникальности
	// external_id возвращает ErrNewsItemExists.
	InsertNewsItem(ctx context.Context, item NewsItem) (NewsItem, error)
	GetNewsItem(ctx context.Context, id int64) (NewsItem, error)
}

// DraftRepo управляет черновиками и их жизненным циклом.
type DraftRepo interface {
	CreateDraft(ctx context.Context, draft Draft) (Draft, error)
	GetDraft(ctx context.Context, id int64) (Draft, error)
	// ApproveDraft переводит ожидающий черновик в одобренные. Для уже
	// обработанного черновика возвращает ErrDraftNotPending.
	ApproveDraft(ctx context.Context, id int64, finalText string, at time.Time) (Draft, error)
	// DeletePendingDraft удаляет ожидающий черновик без следа.
	DeletePendingDraft(ctx context.Context, id int64) error
	ListDrafts(ctx context.Context, view DraftView, limit int) ([]Draft, error)
	// TopApproved возвращает одобренные черновики по убыванию engagement_score.
	TopApproved(ctx context.Context, limit int) ([]Draft, error)
}

// DraftGenerator вызывает генеративную модель со строгим контрактом вывода.
type DraftGenerator interface {
	GenerateDraft(ctx context.Context, prompt Prompt) (GeneratedDraft, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}

// ReviewNotifier уведомляет ревьюеров о черновиках, ожидающих проверки.
type ReviewNotifier interface {
	DraftPending(ctx context.Context, item NewsItem, draft Draft) error
}
