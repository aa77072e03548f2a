package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crypto-draft-bot/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "token", "test-agent", 5*time.Second)
}

func TestFetchHot_NormalizesIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("auth_token"); got != "token" {
			t.Errorf("auth_token = %q", got)
		}
		w.Write([]byte(`{"results":[
			{"id":12345,"title":"BTC news","url":"https://e/1","source":{"title":"CoinDesk"},"votes":{"positive":10,"important":5},"sentiment":"bullish"},
			{"id":"67890","title":"ETH news","url":"https://e/2"}
		]}`))
	})

	got, err := client.FetchHot(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ожидали 2 кандидата, получили %d", len(got))
	}
	if got[0].ExternalID != "12345" || got[1].ExternalID != "67890" {
		t.Fatalf("идентификаторы не нормализованы: %q, %q", got[0].ExternalID, got[1].ExternalID)
	}
	if got[0].Votes == nil || got[0].Votes.Total() != 15 {
		t.Fatalf("голоса первого кандидата: %+v", got[0].Votes)
	}
	if got[1].Votes != nil {
		t.Fatalf("отсутствующие голоса должны остаться nil")
	}
	if got[0].SourceName != "CoinDesk" {
		t.Fatalf("источник: %q", got[0].SourceName)
	}
}

func TestFetchHot_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchHot(context.Background())
	var rl *domain.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("ожидали RateLimitError, получили %v", err)
	}
	if rl.RetryAfter != 7*time.Second {
		t.Fatalf("RetryAfter = %v", rl.RetryAfter)
	}
}

func TestFetchHot_UpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchHot(context.Background())
	var up *domain.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("ожидали UpstreamError, получили %v", err)
	}
	if up.Status != http.StatusInternalServerError {
		t.Fatalf("статус = %d", up.Status)
	}
}

func TestFetchHot_ResultsNotArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"unexpected":"object"}}`))
	})

	_, err := client.FetchHot(context.Background())
	var up *domain.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("ожидали UpstreamError, получили %v", err)
	}
}

func TestFetchHot_EmptyResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})

	got, err := client.FetchHot(context.Background())
	if err != nil {
		t.Fatalf("пустая выдача не должна быть ошибкой: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ожидали пустой список, получили %d", len(got))
	}
}
