package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"crypto-draft-bot/internal/domain"
	"crypto-draft-bot/internal/infra/metrics"
)

// Telegram отправляет уведомления о новых черновиках в чат ревьюеров.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegram создаёт уведомитель поверх Bot API.
func NewTelegram(token string, chatID int64, logger zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("инициализация telegram: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, log: logger}, nil
}

// DraftPending сообщает ревьюерам о черновике, ожидающем проверки.
func (t *Telegram) DraftPending(_ context.Context, item domain.NewsItem, draft domain.Draft) error {
	text := fmt.Sprintf(
		"Новый черновик #%d\n\nНовость: %s\nИсточник: %s (%d голосов)\n\nИнсайт:\n%s\n\nЧерновик:\n%s",
		draft.ID, item.Title, item.SourceName, item.UpvoteCount, draft.InsightText, draft.DraftText,
	)
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true

	start := time.Now()
	_, err := t.api.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "send_message", "review_chat", start, err)
	if err != nil {
		t.log.Error().Err(err).Int64("draft_id", draft.ID).Msg("не удалось уведомить ревьюеров")
		return fmt.Errorf("уведомление о черновике: %w", err)
	}
	return nil
}

var _ domain.ReviewNotifier = (*Telegram)(nil)
