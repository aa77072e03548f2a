package domain

import "time"

// Значения по умолчанию для необязательных полей кандидата.
const (
	DefaultTitle     = "Untitled"
	DefaultSource    = "Unknown"
	DefaultSentiment = "neutral"
)

// VoteSet агрегирует реакции на новость во внешней ленте.
type VoteSet struct {
	Positive  int
	Negative  int
	Important int
	Saved     int
	LOL       int
}

// Total возвращает суммарный вес всех реакций. Отсутствующий набор
// голосов считается нулевым.
func (v *VoteSet) Total() int {
	if v == nil {
		return 0
	}
	return v.Positive + v.Negative + v.Important + v.Saved + v.LOL
}

// Candidate — сырая запись из внешней ленты до фильтрации.
// ExternalID всегда нормализован к строке независимо от того,
// числом или строкой его отдаёт провайдер.
type Candidate struct {
	ExternalID string
	Title      string
	URL        string
	SourceName string
	Votes      *VoteSet
	Sentiment  string
}

// ToNewsItem превращает кандидата в новость, подставляя значения
// по умолчанию вместо пустых полей.
func (c Candidate) ToNewsItem() NewsItem {
	item := NewsItem{
		ExternalID:  c.ExternalID,
		Title:       c.Title,
		URL:         c.URL,
		SourceName:  c.SourceName,
		UpvoteCount: c.Votes.Total(),
		Sentiment:   c.Sentiment,
	}
	if item.Title == "" {
		item.Title = DefaultTitle
	}
	if item.SourceName == "" {
		item.SourceName = DefaultSource
	}
	if item.Sentiment == "" {
		item.Sentiment = DefaultSentiment
	}
	return item
}

// NewsItem — допущенная и сохранённая новость. После вставки не изменяется.
type NewsItem struct {
	ID          int64
	ExternalID  string
	Title       string
	URL         string
	SourceName  string
	UpvoteCount int
	Sentiment   string
	CreatedAt   time.Time
}

// Draft — сгенерированный черновик поста для одной новости.
// Инвариант: IsReviewed == true тогда и только тогда, когда заполнены
// ApprovedAt и FinalApprovedText.
type Draft struct {
	ID                int64
	NewsItemID        int64
	InsightText       string
	DraftText         string
	FinalApprovedText *string
	IsReviewed        bool
	ApprovedAt        *time.Time
	EngagementScore   *float64
	CreatedAt         time.Time
}

// DisplayText возвращает текст, который видит ревьюер: черновик до
// одобрения, финальный текст после.
func (d Draft) DisplayText() string {
	if d.IsReviewed && d.FinalApprovedText != nil {
		return *d.FinalApprovedText
	}
	return d.DraftText
}

// DraftView определяет выборку дашборда.
type DraftView string

const (
	// DraftViewPending — черновики, ожидающие ревью.
	DraftViewPending DraftView = "pending"
	// DraftViewApproved — одобренные черновики.
	DraftViewApproved DraftView = "approved"
)

// IngestStatus описывает исход прогона сбора новостей.
type IngestStatus string

const (
	// IngestStatusOK — хотя бы один кандидат дошёл до вставки.
	IngestStatusOK IngestStatus = "ok"
	// IngestStatusNoCandidates — лента вернула пустой список.
	IngestStatusNoCandidates IngestStatus = "no_candidates"
	// IngestStatusNothingAdmissible — все кандидаты отсеяны фильтрами.
	IngestStatusNothingAdmissible IngestStatus = "nothing_admissible"
)

// IngestReport агрегирует счётчики одного прогона сбора.
type IngestReport struct {
	Status               IngestStatus `json:"status"`
	Fetched              int          `json:"fetched"`
	AlreadyExisting      int          `json:"already_existed"`
	BelowThreshold       int          `json:"below_threshold"`
	Inserted             int          `json:"inserted"`
	DuplicatesSkipped    int          `json:"skipped_duplicates"`
	InsertFailures       int          `json:"insert_failures"`
	DraftTriggerFailures int          `json:"draft_trigger_failures"`
	Threshold            int          `json:"threshold"`
}

// Prompt — собранный запрос к генеративной модели.
type Prompt struct {
	System string
	User   string
}

// GeneratedDraft — разобранный ответ модели по контракту вывода.
type GeneratedDraft struct {
	Insight   string
	DraftText string
}
