package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crypto-draft-bot/internal/domain"
	"crypto-draft-bot/internal/infra/metrics"
)

// ErrEmptyTitle возвращается при попытке сгенерировать черновик для
// новости без содержательного заголовка.
var ErrEmptyTitle = errors.New("у новости пустой заголовок")

// ContextSource отдаёт обучающий контекст для генерации.
type ContextSource interface {
	LearningContext(ctx context.Context) (string, error)
}

// Service генерирует черновик поста для одной новости и сохраняет его
// в состоянии pending.
type Service struct {
	drafts    domain.DraftRepo
	generator domain.DraftGenerator
	learning  ContextSource
	template  PromptTemplate
	log       zerolog.Logger
}

// NewService создаёт сервис генерации черновиков.
func NewService(drafts domain.DraftRepo, generator domain.DraftGenerator, learning ContextSource, template PromptTemplate, logger zerolog.Logger) *Service {
	return &Service{
		drafts:    drafts,
		generator: generator,
		learning:  learning,
		template:  template,
		log:       logger,
	}
}

// Generate выполняет полный цикл: контекст, запрос к модели, сохранение.
// Ошибка лимита модели пробрасывается без обёртки для повторной попытки.
func (s *Service) Generate(ctx context.Context, item domain.NewsItem) (domain.Draft, error) {
	if strings.TrimSpace(item.Title) == "" {
		return domain.Draft{}, ErrEmptyTitle
	}

	learningContext, err := s.learning.LearningContext(ctx)
	if err != nil {
		// Недоступная история не повод пропустить новость.
		s.log.Warn().Err(err).Msg("обучающий контекст недоступен, используем заглушку")
		learningContext = FallbackLearningContext
	}

	prompt := s.template.Build(learningContext, item)

	start := time.Now()
	generated, err := s.generator.GenerateDraft(ctx, prompt)
	metrics.DraftGenerationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		var rl *domain.RateLimitError
		if errors.As(err, &rl) {
			return domain.Draft{}, err
		}
		return domain.Draft{}, fmt.Errorf("генерация черновика для новости %d: %w", item.ID, err)
	}

	draft, err := s.drafts.CreateDraft(ctx, domain.Draft{
		NewsItemID:  item.ID,
		InsightText: generated.Insight,
		DraftText:   generated.DraftText,
	})
	if err != nil {
		// Ответ модели уже оплачен, сохраняем его хотя бы в логах.
		s.log.Error().Err(err).
			Int64("news_item_id", item.ID).
			Str("insight", generated.Insight).
			Str("draft", generated.DraftText).
			Msg("не удалось сохранить черновик")
		return domain.Draft{}, fmt.Errorf("сохранение черновика: %w", err)
	}
	return draft, nil
}
