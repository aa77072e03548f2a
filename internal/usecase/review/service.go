package review

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

// DefaultPageSize — размер выборки дашборда.
const DefaultPageSize = 50

// ErrUnknownView возвращается для неподдерживаемой выборки дашборда.
var ErrUnknownView = errors.New("неизвестная выборка черновиков")

// Service реализует действия ревьюера над черновиками.
type Service struct {
	drafts   domain.DraftRepo
	pageSize int
	log      zerolog.Logger
}

// NewService создаёт сервис ревью.
func NewService(drafts domain.DraftRepo, pageSize int, logger zerolog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{drafts: drafts, pageSize: pageSize, log: logger}
}

// List возвращает черновики выбранной выборки.
func (s *Service) List(ctx context.Context, view domain.DraftView) ([]domain.Draft, error) {
	if view != domain.DraftViewPending && view != domain.DraftViewApproved {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	return s.drafts.ListDrafts(ctx, view, s.pageSize)
}

// Approve одобряет ожидающий черновик. Пустой отредактированный текст
// означает одобрение исходного текста без правок.
func (s *Service) Approve(ctx context.Context, id int64, editedText string) (domain.Draft, error) {
	finalText := strings.TrimSpace(editedText)
	if finalText == "" {
		draft, err := s.drafts.GetDraft(ctx, id)
		if err != nil {
			return domain.Draft{}, err
		}
		finalText = draft.DraftText
	}

	approved, err := s.drafts.ApproveDraft(ctx, id, finalText, time.Now().UTC())
	if err != nil {
		return domain.Draft{}, err
	}
	metrics.IncReviewAction("approve")
	s.log.Info().Int64("draft_id", id).Msg("черновик одобрен")
	return approved, nil
}

// Reject удаляет ожидающий черновик без следа.
func (s *Service) Reject(ctx context.Context, id int64) error {
	if err := s.drafts.DeletePendingDraft(ctx, id); err != nil {
		return err
	}
	metrics.IncReviewAction("reject")
	s.log.Info().Int64("draft_id", id).Msg("черновик отклонён и удалён")
	return nil
}

// Copy возвращает текст черновика для публикации: исходный для
// ожидающих, финальный для одобренных.
func (s *Service) Copy(ctx context.Context, id int64) (string, error) {
	draft, err := s.drafts.GetDraft(ctx, id)
	if err != nil {
		return "", err
	}
	metrics.IncReviewAction("copy")
	return draft.DisplayText(), nil
}
