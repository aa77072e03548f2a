package domain

import (
	"testing"
	"time"
)

func TestVoteSetTotal_NilSafe(t *testing.T) {
	var votes *VoteSet
	if votes.Total() != 0 {
		t.Fatalf("nil набор голосов должен давать 0")
	}
	votes = &VoteSet{Positive: 3, Negative: 1, Important: 5, Saved: 2, LOL: 4}
	if votes.Total() != 15 {
		t.Fatalf("сумма голосов = %d", votes.Total())
	}
}

func TestToNewsItem_Defaults(t *testing.T) {
	item := Candidate{ExternalID: "1"}.ToNewsItem()
	if item.Title != DefaultTitle {
		t.Fatalf("заголовок = %q", item.Title)
	}
	if item.SourceName != DefaultSource {
		t.Fatalf("источник = %q", item.SourceName)
	}
	if item.Sentiment != DefaultSentiment {
		t.Fatalf("сентимент = %q", item.Sentiment)
	}
	if item.UpvoteCount != 0 {
		t.Fatalf("голоса = %d", item.UpvoteCount)
	}
}

func TestToNewsItem_KeepsValues(t *testing.T) {
	c := Candidate{
		ExternalID: "7",
		Title:      "BTC",
		URL:        "https://e/1",
		SourceName: "CoinDesk",
		Votes:      &VoteSet{Positive: 21},
		Sentiment:  "bullish",
	}
	item := c.ToNewsItem()
	if item.Title != "BTC" || item.SourceName != "CoinDesk" || item.Sentiment != "bullish" {
		t.Fatalf("поля потеряны: %+v", item)
	}
	if item.UpvoteCount != 21 {
		t.Fatalf("голоса = %d", item.UpvoteCount)
	}
}

func TestDraftDisplayText(t *testing.T) {
	d := Draft{DraftText: "raw"}
	if d.DisplayText() != "raw" {
		t.Fatalf("до одобрения показывается черновик")
	}
	final := "polished"
	at := time.Now()
	d.FinalApprovedText = &final
	d.IsReviewed = true
	d.ApprovedAt = &at
	if d.DisplayText() != "polished" {
		t.Fatalf("после одобрения показывается финальный текст")
	}
}
