package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"crypto-draft-bot/internal/domain"
)

type stubFetcher struct {
	candidates []domain.Candidate
	err        error
}

func (s *stubFetcher) FetchHot(context.Context) ([]domain.Candidate, error) {
	return s.candidates, s.err
}

type stubNewsRepo struct {
	existing   map[string]struct{}
	inserted   []domain.NewsItem
	insertErr  map[string]error
	nextID     int64
	lookupErr  error
	lookupArgs []string
}

func (s *stubNewsRepo) ExistingExternalIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	s.lookupArgs = ids
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if s.existing == nil {
		return map[string]struct{}{}, nil
	}
	return s.existing, nil
}

func (s *stubNewsRepo) InsertNewsItem(_ context.Context, item domain.NewsItem) (domain.NewsItem, error) {
	if err, ok := s.insertErr[item.ExternalID]; ok {
		return domain.NewsItem{}, err
	}
	s.nextID++
	item.ID = s.nextID
	s.inserted = append(s.inserted, item)
	return item, nil
}

func (s *stubNewsRepo) GetNewsItem(context.Context, int64) (domain.NewsItem, error) {
	return domain.NewsItem{}, domain.ErrNewsItemNotFound
}

type stubQueue struct {
	jobs []domain.DraftJob
	err  error
}

func (s *stubQueue) Enqueue(_ context.Context, job domain.DraftJob) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *stubQueue) Receive(context.Context) (domain.DraftJob, domain.DraftAckFunc, error) {
	return domain.DraftJob{}, nil, errors.New("not implemented")
}

func votes(total int) *domain.VoteSet {
	return &domain.VoteSet{Positive: total}
}

func newService(f *stubFetcher, r *stubNewsRepo, q *stubQueue, threshold int) *Service {
	return NewService(f, r, q, threshold, zerolog.Nop())
}

func TestRun_ThresholdFiltersWeakCandidates(t *testing.T) {
	fetcher := &stubFetcher{candidates: []domain.Candidate{
		{ExternalID: "1", Title: "weak", Votes: votes(3)},
		{ExternalID: "2", Title: "strong", Votes: votes(25)},
	}}
	repo := &stubNewsRepo{}
	queue := &stubQueue{}

	report, err := newService(fetcher, repo, queue, 20).Run(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if report.Status != domain.IngestStatusOK {
		t.Fatalf("статус = %s", report.Status)
	}
	if report.Inserted != 1 || report.BelowThreshold != 1 {
		t.Fatalf("inserted=%d below=%d", report.Inserted, report.BelowThreshold)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].ExternalID != "2" {
		t.Fatalf("сохранено не то: %+v", repo.inserted)
	}
	if len(queue.jobs) != 1 || queue.jobs[0].NewsItemID != repo.inserted[0].ID {
		t.Fatalf("задача не поставлена: %+v", queue.jobs)
	}
	if queue.jobs[0].ID == "" {
		t.Fatalf("задача без идентификатора")
	}
}

func TestRun_ExactThresholdAdmitted(t *testing.T) {
	fetcher := &stubFetcher{candidates: []domain.Candidate{
		{ExternalID: "1", Title: "edge", Votes: votes(20)},
	}}
	repo := &stubNewsRepo{}
	queue := &stubQueue{}

	report, err := newService(fetcher, repo, queue, 20).Run(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if report.Inserted != 1 {
		t.Fatalf("кандидат с суммой, равной порогу, должен пройти: %+v", report)
	}
}

func TestRun_MissingVotesAdmitted(t *testing.T) {
	fetcher := &stubFetcher{candidates: []domain.Candidate{
		{ExternalID: "1", Title: "no votes"},
	}}
	repo := &stubNewsRepo{}
	queue := &stubQueue{}

	report, err := newService(fetcher, repo, queue, 20).Run(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if report.Inserted != 1 {
		t.Fatalf("кандидат без голосов должен пройти: %+v", report)
	}
	if repo.inserted[0].UpvoteCount != 0 {
		t.Fatalf("сумма голосов должна быть нулевой: %d", repo.inserted[0].UpvoteCount)
	}
}

func TestRun_ExistingIDsSkipped(t *testing.T) {
	fetcher := &stubFetcher{candidates: []domain.Candidate{
		{ExternalID: "42", Title: "seen", Votes: votes(30)},
	}}
	repo := &stubNewsRepo{existing: map[string]struct{}{"42": {}}}
	queue := &stubQueue{}

	report, err := newService(fetcher, repo, queue, 20).Run(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if report.Status != domain.IngestStatusNothingAdmissible {
		t.Fatalf("статус = %s", report.Status)
	}
	if report.AlreadyExisting != 1 || report.Inserted != 0 {
		t.Fatalf("отчёт: %+v", report)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("задач быть не должно")
	}
}

func TestRun_InBatchDuplicateLastWins(t *testing.T) {
	fetcher := &stubFetcher{candidates: []domain.Candidate{
		{ExternalID: "7", Title: "first", Votes: votes(21)},
		{ExternalID: "7", Title: "second", Votes: votes(22)},
	}}
	repo := &stubNewsRepo{}
	queue := &stubQueue{}

	report, err := newService(fetcher, repo, queue, 20).Run(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if report.Inserted != 1 {
		t.Fatalf("повтор в батче должен схлопнуться: %+v", report)
	}
	if repo.inserted[0].Title != "second" {
		t.Fatalf("должно выжить последнее вхождение, сохранено %q", repo.inserted[0].Title)
	}
}

func TestRun_InsertRaceIsBenign(t *testing.T) {
	fetcher := &stubFetcher{candidates: []domain.Candidate{
		{ExternalID: "9", Title: "raced", Votes: votes(30)},
	}}
	repo := &stubNewsRepo{insertErr: map[string]error{"9": domain.ErrNewsItemExists}}
	queue := &stubQueue{}

	report, err := newService(fetcher, repo, queue, 20).Run(context.Background())
	if err != nil {
		t.Fatalf("гонка вставки не должна ломать прогон: %v", err)
	}
	if report.DuplicatesSkipped != 1 || report.Inserted != 0 {
		t.Fatalf("отчёт: %+v", report)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("для дубликата задача не ставится")
	}
}

func TestRun_QueueFailureDoesNotFailRun(t *testing.T) {
	fetcher := &stubFetcher{candidates: []domain.Candidate{
		{ExternalID: "5", Title: "ok", Votes: votes(30)},
	}}
	repo := &stubNewsRepo{}
	queue := &stubQueue{err: errors.New("queue down")}

	report, err := newService(fetcher, repo, queue, 20).Run(context.Background())
	if err != nil {
		t.Fatalf("сбой очереди не должен ломать прогон: %v", err)
	}
	if report.Inserted != 1 || report.DraftTriggerFailures != 1 {
		t.Fatalf("отчёт: %+v", report)
	}
}

func TestRun_EmptyFeed(t *testing.T) {
	fetcher := &stubFetcher{}
	repo := &stubNewsRepo{}
	queue := &stubQueue{}

	report, err := newService(fetcher, repo, queue, 20).Run(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if report.Status != domain.IngestStatusNoCandidates {
		t.Fatalf("статус = %s", report.Status)
	}
}

func TestRun_FetchErrorPropagates(t *testing.T) {
	wantErr := errors.New("feed down")
	fetcher := &stubFetcher{err: wantErr}

	_, err := newService(fetcher, &stubNewsRepo{}, &stubQueue{}, 20).Run(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("ожидали ошибку ленты, получили %v", err)
	}
}

func TestRun_DefaultsApplied(t *testing.T) {
	fetcher := &stubFetcher{candidates: []domain.Candidate{
		{ExternalID: "3", Votes: votes(25)},
	}}
	repo := &stubNewsRepo{}

	_, err := newService(fetcher, repo, &stubQueue{}, 20).Run(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	got := repo.inserted[0]
	if got.Title != domain.DefaultTitle || got.SourceName != domain.DefaultSource || got.Sentiment != domain.DefaultSentiment {
		t.Fatalf("значения по умолчанию не подставлены: %+v", got)
	}
}
