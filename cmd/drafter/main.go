package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crypto-draft-bot/internal/adapters/drafter"
	"crypto-draft-bot/internal/adapters/notify"
	"crypto-draft-bot/internal/adapters/repo"
	"crypto-draft-bot/internal/domain"
	"crypto-draft-bot/internal/infra/cache"
	"crypto-draft-bot/internal/infra/config"
	"crypto-draft-bot/internal/infra/db"
	applog "crypto-draft-bot/internal/infra/log"
	"crypto-draft-bot/internal/infra/metrics"
	"crypto-draft-bot/internal/infra/openai"
	"crypto-draft-bot/internal/infra/queue"
	"crypto-draft-bot/internal/usecase/draft"
)

const generateTimeout = 90 * time.Second

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "drafter")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("drafter: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	var draftQueue domain.DraftQueue
	switch {
	case cfg.AMQPURL != "":
		rabbit, err := queue.NewRabbitDraftQueue(cfg.AMQPURL, cfg.Draft.QueueKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("drafter: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		draftQueue = rabbit
	case redisClient != nil:
		draftQueue = queue.NewRedisDraftQueue(redisClient, cfg.Draft.QueueKey)
	default:
		logger.Fatal().Msg("drafter: не настроена очередь задач, требуется AMQP_URL или REDIS_ADDR")
	}

	var learningCache domain.Cache
	if redisClient != nil {
		learningCache = cache.NewRedis(redisClient)
	}
	selector := draft.NewSelector(repoAdapter, learningCache, cfg.Learning.SampleSize, cfg.Learning.CacheTTL,
		logger.With().Str("component", "learning").Logger())

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	generator := drafter.NewOpenAI(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	draftSvc := draft.NewService(repoAdapter, generator, selector, draft.DefaultPromptTemplate(),
		logger.With().Str("component", "draft").Logger())

	go metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	var notifier domain.ReviewNotifier
	if cfg.Telegram.Token != "" && cfg.Telegram.ReviewChatID != 0 {
		notifier, err = notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ReviewChatID,
			logger.With().Str("component", "notify").Logger())
		if err != nil {
			logger.Fatal().Err(err).Msg("drafter: не удалось инициализировать telegram")
		}
	}

	worker := &worker{
		queue:       draftQueue,
		statuses:    repoAdapter,
		news:        repoAdapter,
		drafts:      draftSvc,
		notifier:    notifier,
		maxAttempts: cfg.Draft.MaxAttempts,
		log:         logger,
	}
	worker.run(ctx)
	logger.Info().Msg("drafter: остановлен")
}

type worker struct {
	queue       domain.DraftQueue
	statuses    domain.DraftJobStatusRepo
	news        domain.NewsRepo
	drafts      *draft.Service
	notifier    domain.ReviewNotifier
	maxAttempts int
	log         zerolog.Logger
}

func (w *worker) run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("drafter: ошибка получения задачи")
			continue
		}
		w.handle(ctx, job, ack)
	}
}

func (w *worker) handle(ctx context.Context, job domain.DraftJob, ack domain.DraftAckFunc) {
	logger := w.log.With().Str("job_id", job.ID).Int64("news_item_id", job.NewsItemID).Logger()

	processed, attempt, err := w.statuses.EnsureDraftJob(job.ID)
	if err != nil {
		logger.Error().Err(err).Msg("drafter: не удалось зарегистрировать задачу")
		w.nack(ack, logger)
		return
	}
	if processed {
		logger.Debug().Msg("drafter: задача уже обработана")
		w.done(ack, logger)
		return
	}
	if attempt > w.maxAttempts {
		logger.Warn().Int("attempt", attempt).Msg("drafter: лимит попыток исчерпан, задача отбрасывается")
		w.done(ack, logger)
		return
	}

	item, err := w.news.GetNewsItem(ctx, job.NewsItemID)
	if errors.Is(err, domain.ErrNewsItemNotFound) {
		logger.Warn().Msg("drafter: новость исчезла, задача отбрасывается")
		w.done(ack, logger)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("drafter: не удалось прочитать новость")
		w.nack(ack, logger)
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	created, err := w.drafts.Generate(genCtx, item)
	cancel()
	if err != nil {
		var rl *domain.RateLimitError
		if errors.As(err, &rl) {
			logger.Warn().Dur("retry_after", rl.RetryAfter).Msg("drafter: лимит модели, пауза")
			w.nack(ack, logger)
			w.pause(ctx, rl.RetryAfter)
			return
		}
		// Битый ответ модели не станет лучше от повторов.
		logger.Error().Err(err).Msg("drafter: генерация не удалась, задача отбрасывается")
		w.done(ack, logger)
		return
	}

	if err := w.statuses.MarkDraftJobProcessed(job.ID); err != nil {
		logger.Error().Err(err).Msg("drafter: не удалось зафиксировать обработку")
	}
	w.done(ack, logger)
	logger.Info().Int64("draft_id", created.ID).Msg("drafter: черновик готов")

	if w.notifier != nil {
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := w.notifier.DraftPending(nctx, item, created); err != nil {
				logger.Warn().Err(err).Msg("drafter: уведомление не доставлено")
			}
		}()
	}
}

func (w *worker) done(ack domain.DraftAckFunc, logger zerolog.Logger) {
	if err := ack(true); err != nil {
		logger.Error().Err(err).Msg("drafter: не удалось подтвердить задачу")
	}
}

func (w *worker) nack(ack domain.DraftAckFunc, logger zerolog.Logger) {
	if err := ack(false); err != nil {
		logger.Error().Err(err).Msg("drafter: не удалось вернуть задачу в очередь")
	}
}

func (w *worker) pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
