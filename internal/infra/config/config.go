package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	AMQPURL   string `envconfig:"AMQP_URL"`

	Feed struct {
		BaseURL   string        `envconfig:"FEED_BASE_URL" default:"https://cryptopanic.com"`
		AuthToken string        `envconfig:"FEED_AUTH_TOKEN"`
		Timeout   time.Duration `envconfig:"FEED_TIMEOUT" default:"10s"`
		UserAgent string        `envconfig:"FEED_USER_AGENT" default:"crypto-draft-bot/1.0"`
	} `envconfig:""`

	Ingest struct {
		VoteThreshold int           `envconfig:"VOTE_THRESHOLD" default:"20"`
		Interval      time.Duration `envconfig:"INGEST_INTERVAL" default:"10m"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Draft struct {
		TriggerSecret string `envconfig:"DRAFT_TRIGGER_SECRET"`
		QueueKey      string `envconfig:"DRAFT_QUEUE_KEY" default:"draft_jobs"`
		MaxAttempts   int    `envconfig:"DRAFT_MAX_ATTEMPTS" default:"5"`
	} `envconfig:""`

	Learning struct {
		SampleSize int           `envconfig:"LEARNING_SAMPLE_SIZE" default:"10"`
		CacheTTL   time.Duration `envconfig:"LEARNING_CACHE_TTL" default:"5m"`
	} `envconfig:""`

	Review struct {
		PageSize int    `envconfig:"REVIEW_PAGE_SIZE" default:"50"`
		User     string `envconfig:"DASHBOARD_USER"`
		Password string `envconfig:"DASHBOARD_PASSWORD"`
	} `envconfig:""`

	Telegram struct {
		Token        string `envconfig:"TG_BOT_TOKEN"`
		ReviewChatID int64  `envconfig:"TG_REVIEW_CHAT_ID"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
