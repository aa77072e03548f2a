package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crypto-draft-bot/internal/domain"
	"crypto-draft-bot/internal/infra/metrics"
)

const defaultRetryAfter = 5 * time.Minute

// Client запрашивает трендовые новости из CryptoPanic-совместимого API.
type Client struct {
	http      *http.Client
	baseURL   string
	authToken string
	userAgent string
}

// NewClient создаёт клиента ленты.
func NewClient(baseURL, authToken, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		userAgent: userAgent,
	}
}

// flexID принимает идентификатор и числом, и строкой: разные версии
// провайдера отдают его по-разному, а сравнение при дедупликации
// обязано идти по единой строковой форме.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	return fmt.Errorf("идентификатор не строка и не число: %s", string(data))
}

type wireVotes struct {
	Positive  int `json:"positive"`
	Negative  int `json:"negative"`
	Important int `json:"important"`
	Saved     int `json:"saved"`
	LOL       int `json:"lol"`
}

type wireSource struct {
	Title string `json:"title"`
}

type wirePost struct {
	ID        flexID      `json:"id"`
	Title     string      `json:"title"`
	URL       string      `json:"url"`
	Source    *wireSource `json:"source"`
	Votes     *wireVotes  `json:"votes"`
	Sentiment string      `json:"sentiment"`
}

type wireResponse struct {
	Results json.RawMessage `json:"results"`
}

// FetchHot возвращает кандидатов из горячей выборки ленты.
// Пустой список — успех без кандидатов, не ошибка.
func (c *Client) FetchHot(ctx context.Context) ([]domain.Candidate, error) {
	endpoint := fmt.Sprintf("%s/api/v1/posts/?auth_token=%s&kind=news&filter=hot&public=true",
		c.baseURL, url.QueryEscape(c.authToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("запрос ленты: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("feed", "posts_hot", "cryptopanic", start, err)
		return nil, fmt.Errorf("запрос ленты: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.ObserveNetworkRequest("feed", "posts_hot", "cryptopanic", start, err)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа ленты: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &domain.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.UpstreamError{Provider: "feed", Status: resp.StatusCode}
	}

	var parsed wireResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.UpstreamError{Provider: "feed", Status: resp.StatusCode, Detail: "повреждённое тело ответа"}
	}
	if len(parsed.Results) == 0 || string(parsed.Results) == "null" {
		return nil, nil
	}
	var posts []wirePost
	if err := json.Unmarshal(parsed.Results, &posts); err != nil {
		return nil, &domain.UpstreamError{Provider: "feed", Status: resp.StatusCode, Detail: "results не является массивом"}
	}

	candidates := make([]domain.Candidate, 0, len(posts))
	for _, post := range posts {
		candidate := domain.Candidate{
			ExternalID: strings.TrimSpace(string(post.ID)),
			Title:      strings.TrimSpace(post.Title),
			URL:        post.URL,
			Sentiment:  strings.TrimSpace(post.Sentiment),
		}
		if post.Source != nil {
			candidate.SourceName = strings.TrimSpace(post.Source.Title)
		}
		if post.Votes != nil {
			candidate.Votes = &domain.VoteSet{
				Positive:  post.Votes.Positive,
				Negative:  post.Votes.Negative,
				Important: post.Votes.Important,
				Saved:     post.Votes.Saved,
				LOL:       post.Votes.LOL,
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultRetryAfter
}

var _ domain.Fetcher = (*Client)(nil)
