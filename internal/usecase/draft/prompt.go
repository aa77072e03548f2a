package draft

import (
	"fmt"
	"strings"

	"crypto-draft-bot/internal/domain"
)

// FallbackLearningContext подставляется, когда одобренных постов ещё нет
// или история недоступна.
const FallbackLearningContext = "No approved post history is available yet. Use a measured, analytical tone."

// PromptTemplate собирает запрос к модели из персоны, контракта вывода
// и обучающего контекста.
type PromptTemplate struct {
	Persona        string
	OutputContract string
}

// DefaultPromptTemplate возвращает шаблон по умолчанию.
func DefaultPromptTemplate() PromptTemplate {
	return PromptTemplate{
		Persona: "You are a seasoned crypto market analyst writing for a professional audience. " +
			"You are direct and factual. No emojis, no hashtags, no hype words, no financial advice.",
		OutputContract: "Respond with a single JSON object and nothing else: " +
			`{"insight": "...", "draft_tweet": "..."}. ` +
			"The insight is your sharpest take on the news in at most 40 words. " +
			"The draft_tweet is a standalone post of 180 to 280 characters based on that insight.",
	}
}

// Build собирает итоговый запрос для одной новости.
func (t PromptTemplate) Build(learningContext string, item domain.NewsItem) domain.Prompt {
	var user strings.Builder
	user.WriteString("These are the top approved posts so far, ranked by engagement. Match their tone and style:\n")
	user.WriteString(learningContext)
	user.WriteString("\n\nNews to cover:\n")
	fmt.Fprintf(&user, "Title: %s\n", item.Title)
	fmt.Fprintf(&user, "Source: %s\n", item.SourceName)
	fmt.Fprintf(&user, "Engagement: %d votes\n", item.UpvoteCount)
	fmt.Fprintf(&user, "Sentiment: %s\n", item.Sentiment)
	if item.URL != "" {
		fmt.Fprintf(&user, "URL: %s\n", item.URL)
	}

	return domain.Prompt{
		System: t.Persona + "\n\n" + t.OutputContract,
		User:   user.String(),
	}
}
