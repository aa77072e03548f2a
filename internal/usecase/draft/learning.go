package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crypto-draft-bot/internal/domain"
)

// DefaultSampleSize — сколько лучших одобренных постов попадает в
// обучающий контекст.
const DefaultSampleSize = 10

const learningCacheKey = "learning_context"

// Selector готовит обучающий контекст из лучших одобренных постов
// и кэширует его между генерациями.
type Selector struct {
	drafts     domain.DraftRepo
	cache      domain.Cache
	sampleSize int
	ttl        time.Duration
	log        zerolog.Logger
}

// NewSelector создаёт селектор обучающего контекста. Нулевой cache
// отключает кэширование.
func NewSelector(drafts domain.DraftRepo, cache domain.Cache, sampleSize int, ttl time.Duration, logger zerolog.Logger) *Selector {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Selector{
		drafts:     drafts,
		cache:      cache,
		sampleSize: sampleSize,
		ttl:        ttl,
		log:        logger,
	}
}

// LearningContext возвращает отформатированный контекст лучших постов.
func (s *Selector) LearningContext(ctx context.Context) (string, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(learningCacheKey); err == nil && len(cached) > 0 {
			return string(cached), nil
		}
	}

	top, err := s.drafts.TopApproved(ctx, s.sampleSize)
	if err != nil {
		return "", fmt.Errorf("выборка лучших постов: %w", err)
	}
	formatted := FormatLearningContext(top)

	if s.cache != nil {
		if err := s.cache.Set(learningCacheKey, []byte(formatted), s.ttl); err != nil {
			s.log.Warn().Err(err).Msg("не удалось закэшировать обучающий контекст")
		}
	}
	return formatted, nil
}

// FormatLearningContext превращает список одобренных черновиков в
// нумерованный текст для запроса. Пустой список даёт текст-заглушку.
func FormatLearningContext(drafts []domain.Draft) string {
	if len(drafts) == 0 {
		return FallbackLearningContext
	}
	var b strings.Builder
	for i, d := range drafts {
		score := 0.0
		if d.EngagementScore != nil {
			score = *d.EngagementScore
		}
		fmt.Fprintf(&b, "%d. (score %.1f) %s\n", i+1, score, d.DisplayText())
	}
	return b.String()
}
