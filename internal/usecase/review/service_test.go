package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-draft-bot/internal/domain"
)

// memRepo — репозиторий черновиков в памяти с той же семантикой
// переходов состояний, что и у БД.
type memRepo struct {
	drafts map[int64]domain.Draft
}

func newMemRepo(drafts ...domain.Draft) *memRepo {
	m := &memRepo{drafts: map[int64]domain.Draft{}}
	for _, d := range drafts {
		m.drafts[d.ID] = d
	}
	return m
}

func (m *memRepo) CreateDraft(_ context.Context, draft domain.Draft) (domain.Draft, error) {
	draft.ID = int64(len(m.drafts) + 1)
	m.drafts[draft.ID] = draft
	return draft, nil
}

func (m *memRepo) GetDraft(_ context.Context, id int64) (domain.Draft, error) {
	draft, ok := m.drafts[id]
	if !ok {
		return domain.Draft{}, domain.ErrDraftNotFound
	}
	return draft, nil
}

func (m *memRepo) ApproveDraft(_ context.Context, id int64, finalText string, at time.Time) (domain.Draft, error) {
	draft, ok := m.drafts[id]
	if !ok {
		return domain.Draft{}, domain.ErrDraftNotFound
	}
	if draft.IsReviewed {
		return domain.Draft{}, domain.ErrDraftNotPending
	}
	draft.FinalApprovedText = &finalText
	draft.IsReviewed = true
	draft.ApprovedAt = &at
	m.drafts[id] = draft
	return draft, nil
}

func (m *memRepo) DeletePendingDraft(_ context.Context, id int64) error {
	draft, ok := m.drafts[id]
	if !ok {
		return domain.ErrDraftNotFound
	}
	if draft.IsReviewed {
		return domain.ErrDraftNotPending
	}
	delete(m.drafts, id)
	return nil
}

func (m *memRepo) ListDrafts(_ context.Context, view domain.DraftView, limit int) ([]domain.Draft, error) {
	var out []domain.Draft
	for _, d := range m.drafts {
		if view == domain.DraftViewPending && !d.IsReviewed {
			out = append(out, d)
		}
		if view == domain.DraftViewApproved && d.IsReviewed {
			out = append(out, d)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memRepo) TopApproved(context.Context, int) ([]domain.Draft, error) {
	return nil, errors.New("not implemented")
}

func pending(id int64, text string) domain.Draft {
	return domain.Draft{ID: id, NewsItemID: id * 10, InsightText: "insight", DraftText: text}
}

func TestApprove_WithEditedText(t *testing.T) {
	repo := newMemRepo(pending(1, "original"))
	svc := NewService(repo, 50, zerolog.Nop())

	got, err := svc.Approve(context.Background(), 1, "  edited text  ")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !got.IsReviewed || got.FinalApprovedText == nil || *got.FinalApprovedText != "edited text" {
		t.Fatalf("одобрение применено неверно: %+v", got)
	}
	if got.ApprovedAt == nil {
		t.Fatalf("approved_at не выставлен")
	}
}

func TestApprove_EmptyTextUsesDraft(t *testing.T) {
	repo := newMemRepo(pending(1, "original"))
	svc := NewService(repo, 50, zerolog.Nop())

	got, err := svc.Approve(context.Background(), 1, "   ")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if got.FinalApprovedText == nil || *got.FinalApprovedText != "original" {
		t.Fatalf("при пустой правке должен одобряться исходный текст: %+v", got)
	}
}

func TestApprove_TwiceReturnsNotPending(t *testing.T) {
	repo := newMemRepo(pending(1, "original"))
	svc := NewService(repo, 50, zerolog.Nop())

	if _, err := svc.Approve(context.Background(), 1, "final"); err != nil {
		t.Fatalf("первое одобрение: %v", err)
	}
	_, err := svc.Approve(context.Background(), 1, "again")
	if !errors.Is(err, domain.ErrDraftNotPending) {
		t.Fatalf("ожидали ErrDraftNotPending, получили %v", err)
	}
}

func TestReject_RemovesDraft(t *testing.T) {
	repo := newMemRepo(pending(1, "bad draft"))
	svc := NewService(repo, 50, zerolog.Nop())

	if err := svc.Reject(context.Background(), 1); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if _, err := svc.Copy(context.Background(), 1); !errors.Is(err, domain.ErrDraftNotFound) {
		t.Fatalf("после отклонения черновик должен исчезнуть, получили %v", err)
	}
}

func TestReject_ApprovedDraftRefused(t *testing.T) {
	repo := newMemRepo(pending(1, "draft"))
	svc := NewService(repo, 50, zerolog.Nop())

	if _, err := svc.Approve(context.Background(), 1, "final"); err != nil {
		t.Fatalf("одобрение: %v", err)
	}
	err := svc.Reject(context.Background(), 1)
	if !errors.Is(err, domain.ErrDraftNotPending) {
		t.Fatalf("одобренный черновик нельзя отклонить, получили %v", err)
	}
}

func TestCopy_PendingAndApproved(t *testing.T) {
	repo := newMemRepo(pending(1, "raw tweet"))
	svc := NewService(repo, 50, zerolog.Nop())

	text, err := svc.Copy(context.Background(), 1)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if text != "raw tweet" {
		t.Fatalf("до одобрения копируется черновик: %q", text)
	}

	if _, err := svc.Approve(context.Background(), 1, "polished tweet"); err != nil {
		t.Fatalf("одобрение: %v", err)
	}
	text, err = svc.Copy(context.Background(), 1)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if text != "polished tweet" {
		t.Fatalf("после одобрения копируется финальный текст: %q", text)
	}
}

func TestList_ViewsAreExclusive(t *testing.T) {
	repo := newMemRepo(pending(1, "a"), pending(2, "b"))
	svc := NewService(repo, 50, zerolog.Nop())

	if _, err := svc.Approve(context.Background(), 2, "done"); err != nil {
		t.Fatalf("одобрение: %v", err)
	}

	pendingList, err := svc.List(context.Background(), domain.DraftViewPending)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	approvedList, err := svc.List(context.Background(), domain.DraftViewApproved)
	if err != nil {
		t.Fatalf("approved: %v", err)
	}
	if len(pendingList) != 1 || pendingList[0].ID != 1 {
		t.Fatalf("pending: %+v", pendingList)
	}
	if len(approvedList) != 1 || approvedList[0].ID != 2 {
		t.Fatalf("approved: %+v", approvedList)
	}
}

func TestList_UnknownView(t *testing.T) {
	svc := NewService(newMemRepo(), 50, zerolog.Nop())

	_, err := svc.List(context.Background(), domain.DraftView("archived"))
	if !errors.Is(err, ErrUnknownView) {
		t.Fatalf("ожидали ErrUnknownView, получили %v", err)
	}
}
