package drafter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"crypto-draft-bot/internal/domain"
	"crypto-draft-bot/internal/infra/openai"
)

// ErrContract означает, что модель вернула ответ, не соответствующий
// требуемому формату: пустой выбор, битый JSON или пустые поля.
var ErrContract = errors.New("модель вернула ответ вне контракта")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI генерирует черновики постов через Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenAI создаёт генератор черновиков.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

type draftPayload struct {
	Insight    string `json:"insight"`
	DraftTweet string `json:"draft_tweet"`
}

// GenerateDraft выполняет один запрос к модели и разбирает структурированный ответ.
// Ошибка лимита пробрасывается как есть, чтобы вызывающий мог выдержать паузу.
func (o *OpenAI) GenerateDraft(ctx context.Context, prompt domain.Prompt) (domain.GeneratedDraft, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: prompt.System},
			{Role: openai.RoleUser, Content: prompt.User},
		},
		Temperature:    0.7,
		MaxTokens:      400,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var rl *domain.RateLimitError
		if errors.As(err, &rl) {
			return domain.GeneratedDraft{}, err
		}
		return domain.GeneratedDraft{}, fmt.Errorf("генерация черновика: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.GeneratedDraft{}, fmt.Errorf("%w: нет вариантов ответа", ErrContract)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var payload draftPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return domain.GeneratedDraft{}, fmt.Errorf("%w: %v", ErrContract, err)
	}
	insight := strings.TrimSpace(payload.Insight)
	draft := strings.TrimSpace(payload.DraftTweet)
	if insight == "" || draft == "" {
		return domain.GeneratedDraft{}, fmt.Errorf("%w: пустые поля insight/draft_tweet", ErrContract)
	}

	return domain.GeneratedDraft{Insight: insight, DraftText: draft}, nil
}

var _ domain.DraftGenerator = (*OpenAI)(nil)
