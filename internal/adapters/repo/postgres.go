package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-draft-bot/internal/domain"
	"crypto-draft-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.NewsRepo           = (*Postgres)(nil)
	_ domain.DraftRepo          = (*Postgres)(nil)
	_ domain.DraftJobStatusRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ExistingExternalIDs возвращает подмножество идентификаторов, уже
// сохранённых в news_items, одним запросом.
func (p *Postgres) ExistingExternalIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
		SELECT external_id FROM news_items WHERE external_id = ANY($1)
	`, ids)
	metrics.ObserveNetworkRequest("postgres", "news_items_existing_ids", "news_items", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка существующих external_id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

// InsertNewsItem вставляет новость. Конфликт по external_id транслируется
// в ErrNewsItemExists без дополнительного запроса.
func (p *Postgres) InsertNewsItem(ctx context.Context, item domain.NewsItem) (domain.NewsItem, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
		INSERT INTO news_items (external_id, title, url, source_name, upvote_count, sentiment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, item.ExternalID, item.Title, item.URL, item.SourceName, item.UpvoteCount, item.Sentiment).
		Scan(&item.ID, &item.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "news_items_insert", "news_items", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.NewsItem{}, domain.ErrNewsItemExists
		}
		return domain.NewsItem{}, fmt.Errorf("вставка новости: %w", err)
	}
	return item, nil
}

func (p *Postgres) GetNewsItem(ctx context.Context, id int64) (domain.NewsItem, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var item domain.NewsItem
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
		SELECT id, external_id, title, url, source_name, upvote_count, sentiment, created_at
		FROM news_items WHERE id = $1
	`, id).Scan(&item.ID, &item.ExternalID, &item.Title, &item.URL,
		&item.SourceName, &item.UpvoteCount, &item.Sentiment, &item.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "news_items_get", "news_items", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewsItem{}, domain.ErrNewsItemNotFound
	}
	if err != nil {
		return domain.NewsItem{}, fmt.Errorf("чтение новости: %w", err)
	}
	return item, nil
}

func (p *Postgres) CreateDraft(ctx context.Context, draft domain.Draft) (domain.Draft, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
		INSERT INTO drafts (news_item_id, insight_text, draft_text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, draft.NewsItemID, draft.InsightText, draft.DraftText).
		Scan(&draft.ID, &draft.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "drafts_insert", "drafts", start, err)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("вставка черновика: %w", err)
	}
	return draft, nil
}

const draftColumns = `id, news_item_id, insight_text, draft_text, final_approved_text,
	is_reviewed, approved_at, engagement_score, created_at`

func scanDraft(row pgx.Row) (domain.Draft, error) {
	var (
		draft      domain.Draft
		finalText  sql.NullString
		approvedAt sql.NullTime
		score      sql.NullFloat64
	)
	err := row.Scan(&draft.ID, &draft.NewsItemID, &draft.InsightText, &draft.DraftText,
		&finalText, &draft.IsReviewed, &approvedAt, &score, &draft.CreatedAt)
	if err != nil {
		return domain.Draft{}, err
	}
	if finalText.Valid {
		draft.FinalApprovedText = &finalText.String
	}
	if approvedAt.Valid {
		at := approvedAt.Time
		draft.ApprovedAt = &at
	}
	if score.Valid {
		s := score.Float64
		draft.EngagementScore = &s
	}
	return draft, nil
}

func (p *Postgres) GetDraft(ctx context.Context, id int64) (domain.Draft, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	draft, err := scanDraft(p.pool.QueryRow(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id))
	metrics.ObserveNetworkRequest("postgres", "drafts_get", "drafts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Draft{}, domain.ErrDraftNotFound
	}
	if err != nil {
		return domain.Draft{}, fmt.Errorf("чтение черновика: %w", err)
	}
	return draft, nil
}

// ApproveDraft одобряет черновик одним условным UPDATE: условие
// is_reviewed = FALSE исключает повторное одобрение при гонке.
func (p *Postgres) ApproveDraft(ctx context.Context, id int64, finalText string, at time.Time) (domain.Draft, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	draft, err := scanDraft(p.pool.QueryRow(ctx, `
		UPDATE drafts
		SET final_approved_text = $2, is_reviewed = TRUE, approved_at = $3
		WHERE id = $1 AND is_reviewed = FALSE
		RETURNING `+draftColumns, id, finalText, at))
	metrics.ObserveNetworkRequest("postgres", "drafts_approve", "drafts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Draft{}, p.classifyMissingPending(ctx, id)
	}
	if err != nil {
		return domain.Draft{}, fmt.Errorf("одобрение черновика: %w", err)
	}
	return draft, nil
}

// DeletePendingDraft удаляет черновик, только пока он ожидает ревью.
func (p *Postgres) DeletePendingDraft(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM drafts WHERE id = $1 AND is_reviewed = FALSE
	`, id)
	metrics.ObserveNetworkRequest("postgres", "drafts_delete_pending", "drafts", start, err)
	if err != nil {
		return fmt.Errorf("удаление черновика: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return p.classifyMissingPending(ctx, id)
	}
	return nil
}

// classifyMissingPending различает «черновика нет» и «черновик уже
// обработан» после неудавшейся условной операции.
func (p *Postgres) classifyMissingPending(ctx context.Context, id int64) error {
	draft, err := p.GetDraft(ctx, id)
	if err != nil {
		return err
	}
	if draft.IsReviewed {
		return domain.ErrDraftNotPending
	}
	return domain.ErrDraftNotFound
}

func (p *Postgres) ListDrafts(ctx context.Context, view domain.DraftView, limit int) ([]domain.Draft, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		query string
		op    string
	)
	switch view {
	case domain.DraftViewPending:
		query = `SELECT ` + draftColumns + ` FROM drafts
			WHERE is_reviewed = FALSE ORDER BY created_at DESC LIMIT $1`
		op = "drafts_list_pending"
	case domain.DraftViewApproved:
		query = `SELECT ` + draftColumns + ` FROM drafts
			WHERE is_reviewed = TRUE ORDER BY approved_at DESC LIMIT $1`
		op = "drafts_list_approved"
	default:
		return nil, fmt.Errorf("неизвестная выборка черновиков: %q", view)
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, limit)
	metrics.ObserveNetworkRequest("postgres", op, "drafts", start, err)
	if err != nil {
		return nil, fmt.Errorf("список черновиков: %w", err)
	}
	defer rows.Close()

	return collectDrafts(rows)
}

// TopApproved возвращает лучшие одобренные черновики для обучающего
// контекста. Черновики без engagement_score идут в конец выборки.
func (p *Postgres) TopApproved(ctx context.Context, limit int) ([]domain.Draft, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
		SELECT `+draftColumns+` FROM drafts
		WHERE is_reviewed = TRUE AND final_approved_text IS NOT NULL
		ORDER BY engagement_score DESC NULLS LAST, approved_at DESC
		LIMIT $1
	`, limit)
	metrics.ObserveNetworkRequest("postgres", "drafts_top_approved", "drafts", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка лучших черновиков: %w", err)
	}
	defer rows.Close()

	return collectDrafts(rows)
}

func collectDrafts(rows pgx.Rows) ([]domain.Draft, error) {
	var drafts []domain.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, rows.Err()
}

// EnsureDraftJob регистрирует попытку обработки задачи. Возвращает
// признак завершённой обработки и номер текущей попытки.
func (p *Postgres) EnsureDraftJob(jobID string) (bool, int, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		processedAt sql.NullTime
		attempts    int
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
		INSERT INTO draft_job_statuses (job_id, attempts)
		VALUES ($1, 1)
		ON CONFLICT (job_id) DO UPDATE SET attempts = draft_job_statuses.attempts + 1
		RETURNING processed_at, attempts
	`, jobID).Scan(&processedAt, &attempts)
	metrics.ObserveNetworkRequest("postgres", "draft_job_ensure", "draft_job_statuses", start, err)
	if err != nil {
		return false, 0, fmt.Errorf("регистрация задачи: %w", err)
	}
	return processedAt.Valid, attempts, nil
}

// MarkDraftJobProcessed фиксирует завершение обработки. Повторный вызов
// не сдвигает отметку времени.
func (p *Postgres) MarkDraftJobProcessed(jobID string) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
		UPDATE draft_job_statuses
		SET processed_at = COALESCE(processed_at, NOW())
		WHERE job_id = $1
	`, jobID)
	metrics.ObserveNetworkRequest("postgres", "draft_job_mark_processed", "draft_job_statuses", start, err)
	if err != nil {
		return fmt.Errorf("фиксация обработки задачи: %w", err)
	}
	return nil
}
