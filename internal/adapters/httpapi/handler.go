package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"crypto-draft-bot/internal/domain"
	httpinfra "crypto-draft-bot/internal/infra/http"
	"crypto-draft-bot/internal/usecase/draft"
	"crypto-draft-bot/internal/usecase/ingest"
	"crypto-draft-bot/internal/usecase/review"
)

// Handler связывает HTTP маршруты с usecase-сервисами.
type Handler struct {
	ingest *ingest.Service
	drafts *draft.Service
	review *review.Service
	secret string
	log    zerolog.Logger
}

// NewHandler создаёт обработчик API.
func NewHandler(ingestSvc *ingest.Service, draftSvc *draft.Service, reviewSvc *review.Service, triggerSecret string, logger zerolog.Logger) *Handler {
	return &Handler{
		ingest: ingestSvc,
		drafts: draftSvc,
		review: reviewSvc,
		secret: triggerSecret,
		log:    logger,
	}
}

// Register навешивает маршруты. Дашборд закрывается переданным гейтом.
func (h *Handler) Register(r chi.Router, dashboardGate func(http.Handler) http.Handler) {
	r.Get("/ingest", h.handleIngest)
	r.Post("/drafts/generate", h.handleGenerate)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(dashboardGate)
		r.Get("/drafts", h.handleList)
		r.Post("/drafts/{id}/approve", h.handleApprove)
		r.Delete("/drafts/{id}", h.handleReject)
		r.Get("/drafts/{id}/copy", h.handleCopy)
	})
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	report, err := h.ingest.Run(r.Context())
	if err != nil {
		var rl *domain.RateLimitError
		if errors.As(err, &rl) {
			writeRateLimited(w, rl)
			return
		}
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Msg("прогон сбора завершился ошибкой")
		httpinfra.WriteError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	httpinfra.WriteJSON(w, report)
}

type generateRequest struct {
	Record *generateRecord `json:"record"`
}

type generateRecord struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	SourceName  string `json:"source_name"`
	UpvoteCount int    `json:"upvote_count"`
	Sentiment   string `json:"sentiment"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	token, ok := httpinfra.BearerToken(r)
	if !ok || h.secret == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		httpinfra.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Record == nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	item := domain.NewsItem{
		ID:          req.Record.ID,
		Title:       req.Record.Title,
		URL:         req.Record.URL,
		SourceName:  req.Record.SourceName,
		UpvoteCount: req.Record.UpvoteCount,
		Sentiment:   req.Record.Sentiment,
	}

	created, err := h.drafts.Generate(r.Context(), item)
	if err != nil {
		var rl *domain.RateLimitError
		switch {
		case errors.Is(err, draft.ErrEmptyTitle):
			httpinfra.WriteError(w, http.StatusBadRequest, "record title is empty")
		case errors.As(err, &rl):
			writeRateLimited(w, rl)
		default:
			h.log.Error().Err(err).Int64("news_item_id", item.ID).Msg("генерация черновика завершилась ошибкой")
			httpinfra.WriteError(w, http.StatusInternalServerError, "draft generation failed")
		}
		return
	}

	httpinfra.WriteJSON(w, map[string]string{"insight": created.InsightText})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	view := domain.DraftView(r.URL.Query().Get("view"))
	if view == "" {
		view = domain.DraftViewPending
	}

	drafts, err := h.review.List(r.Context(), view)
	if err != nil {
		if errors.Is(err, review.ErrUnknownView) {
			httpinfra.WriteError(w, http.StatusBadRequest, "unknown view")
			return
		}
		h.log.Error().Err(err).Msg("не удалось получить список черновиков")
		httpinfra.WriteError(w, http.StatusInternalServerError, "list failed")
		return
	}

	out := make([]draftResponse, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, toDraftResponse(d))
	}
	httpinfra.WriteJSON(w, map[string]any{"drafts": out})
}

type approveRequest struct {
	FinalText string `json:"final_text"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(w, r)
	if !ok {
		return
	}

	var req approveRequest
	if r.Body != nil {
		// Тело необязательно: одобрение без правок идёт без тела.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	approved, err := h.review.Approve(r.Context(), id, req.FinalText)
	if err != nil {
		writeDraftError(w, err, h.log)
		return
	}
	httpinfra.WriteJSON(w, toDraftResponse(approved))
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(w, r)
	if !ok {
		return
	}
	if err := h.review.Reject(r.Context(), id); err != nil {
		writeDraftError(w, err, h.log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	id, ok := draftID(w, r)
	if !ok {
		return
	}
	text, err := h.review.Copy(r.Context(), id)
	if err != nil {
		writeDraftError(w, err, h.log)
		return
	}
	httpinfra.WriteJSON(w, map[string]string{"text": text})
}

func draftID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid draft id")
		return 0, false
	}
	return id, true
}

func writeDraftError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	switch {
	case errors.Is(err, domain.ErrDraftNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, "draft not found")
	case errors.Is(err, domain.ErrDraftNotPending):
		httpinfra.WriteError(w, http.StatusConflict, "draft already reviewed")
	default:
		logger.Error().Err(err).Msg("операция над черновиком завершилась ошибкой")
		httpinfra.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeRateLimited(w http.ResponseWriter, rl *domain.RateLimitError) {
	httpinfra.WriteJSONStatus(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limited",
		"retry_after": int(rl.RetryAfter / time.Second),
	})
}

type draftResponse struct {
	ID                int64      `json:"id"`
	NewsItemID        int64      `json:"news_item_id"`
	InsightText       string     `json:"insight_text"`
	DraftText         string     `json:"draft_text"`
	FinalApprovedText *string    `json:"final_approved_text,omitempty"`
	IsReviewed        bool       `json:"is_reviewed"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	EngagementScore   *float64   `json:"engagement_score,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toDraftResponse(d domain.Draft) draftResponse {
	return draftResponse{
		ID:                d.ID,
		NewsItemID:        d.NewsItemID,
		InsightText:       d.InsightText,
		DraftText:         d.DraftText,
		FinalApprovedText: d.FinalApprovedText,
		IsReviewed:        d.IsReviewed,
		ApprovedAt:        d.ApprovedAt,
		EngagementScore:   d.EngagementScore,
		CreatedAt:         d.CreatedAt,
	}
}
