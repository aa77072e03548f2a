package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crypto-draft-bot/internal/domain"
	"crypto-draft-bot/internal/infra/metrics"
)

// DefaultVoteThreshold — минимальная сумма голосов для допуска новости.
const DefaultVoteThreshold = 20

// Service выполняет прогон сбора: забирает кандидатов из ленты,
// отсеивает уже сохранённые и слабые, сохраняет остальных и ставит
// задачи на генерацию черновиков.
type Service struct {
	fetcher   domain.Fetcher
	news      domain.NewsRepo
	queue     domain.DraftQueue
	threshold int
	log       zerolog.Logger
}

// NewService создаёт сервис сбора.
func NewService(fetcher domain.Fetcher, news domain.NewsRepo, queue domain.DraftQueue, threshold int, logger zerolog.Logger) *Service {
	if threshold <= 0 {
		threshold = DefaultVoteThreshold
	}
	return &Service{
		fetcher:   fetcher,
		news:      news,
		queue:     queue,
		threshold: threshold,
		log:       logger,
	}
}

// Run выполняет один прогон сбора целиком. Частичные сбои отдельных
// вставок не прерывают прогон; ошибка ленты или батчевой проверки — прерывают.
func (s *Service) Run(ctx context.Context) (domain.IngestReport, error) {
	report := domain.IngestReport{Threshold: s.threshold}

	candidates, err := s.fetcher.FetchHot(ctx)
	if err != nil {
		metrics.IncIngestRun("fetch_error")
		return report, fmt.Errorf("получение кандидатов: %w", err)
	}
	report.Fetched = len(candidates)
	if len(candidates) == 0 {
		report.Status = domain.IngestStatusNoCandidates
		metrics.IncIngestRun(string(report.Status))
		return report, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if id := strings.TrimSpace(c.ExternalID); id != "" {
			ids = append(ids, id)
		}
	}
	existing, err := s.news.ExistingExternalIDs(ctx, ids)
	if err != nil {
		metrics.IncIngestRun("lookup_error")
		return report, fmt.Errorf("проверка существующих новостей: %w", err)
	}

	// Повторы одного external_id внутри батча схлопываются, выигрывает
	// последнее вхождение. Порядок вставки сохраняется по первому вхождению.
	admitted := make(map[string]domain.Candidate)
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		id := strings.TrimSpace(c.ExternalID)
		if id == "" {
			continue
		}
		if _, ok := existing[id]; ok {
			report.AlreadyExisting++
			continue
		}
		// Кандидат без блока голосов допускается: отсутствие данных о
		// вовлечённости не повод терять новость.
		if c.Votes != nil && c.Votes.Total() < s.threshold {
			report.BelowThreshold++
			continue
		}
		if _, seen := admitted[id]; !seen {
			order = append(order, id)
		}
		c.ExternalID = id
		admitted[id] = c
	}

	if len(admitted) == 0 {
		report.Status = domain.IngestStatusNothingAdmissible
		metrics.IncIngestRun(string(report.Status))
		return report, nil
	}

	for _, id := range order {
		item, err := s.news.InsertNewsItem(ctx, admitted[id].ToNewsItem())
		if errors.Is(err, domain.ErrNewsItemExists) {
			report.DuplicatesSkipped++
			continue
		}
		if err != nil {
			report.InsertFailures++
			s.log.Error().Err(err).Str("external_id", id).Msg("не удалось сохранить новость")
			continue
		}
		report.Inserted++

		job := domain.DraftJob{
			ID:         uuid.NewString(),
			NewsItemID: item.ID,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			report.DraftTriggerFailures++
			s.log.Error().Err(err).Int64("news_item_id", item.ID).Msg("не удалось поставить задачу на черновик")
		}
	}

	report.Status = domain.IngestStatusOK
	metrics.IncIngestRun(string(report.Status))
	metrics.AddIngestItems("inserted", report.Inserted)
	metrics.AddIngestItems("already_existed", report.AlreadyExisting)
	metrics.AddIngestItems("below_threshold", report.BelowThreshold)
	metrics.AddIngestItems("skipped_duplicates", report.DuplicatesSkipped)
	return report, nil
}
