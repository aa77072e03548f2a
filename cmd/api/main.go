package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"crypto-draft-bot/internal/adapters/drafter"
	"crypto-draft-bot/internal/adapters/feed"
	"crypto-draft-bot/internal/adapters/httpapi"
	"crypto-draft-bot/internal/adapters/repo"
	"crypto-draft-bot/internal/domain"
	"crypto-draft-bot/internal/infra/cache"
	"crypto-draft-bot/internal/infra/config"
	"crypto-draft-bot/internal/infra/db"
	httpinfra "crypto-draft-bot/internal/infra/http"
	applog "crypto-draft-bot/internal/infra/log"
	"crypto-draft-bot/internal/infra/metrics"
	"crypto-draft-bot/internal/infra/openai"
	"crypto-draft-bot/internal/infra/queue"
	"crypto-draft-bot/internal/usecase/draft"
	"crypto-draft-bot/internal/usecase/ingest"
	"crypto-draft-bot/internal/usecase/review"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "api")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
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
			logger.Fatal().Err(err).Msg("api: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		draftQueue = rabbit
	case redisClient != nil:
		draftQueue = queue.NewRedisDraftQueue(redisClient, cfg.Draft.QueueKey)
	default:
		logger.Fatal().Msg("api: не настроена очередь задач, требуется AMQP_URL или REDIS_ADDR")
	}

	feedClient := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.AuthToken, cfg.Feed.UserAgent, cfg.Feed.Timeout)
	ingestSvc := ingest.NewService(feedClient, repoAdapter, draftQueue, cfg.Ingest.VoteThreshold,
		logger.With().Str("component", "ingest").Logger())

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

	reviewSvc := review.NewService(repoAdapter, cfg.Review.PageSize,
		logger.With().Str("component", "review").Logger())

	go metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	server := httpinfra.NewServer(logger)
	handler := httpapi.NewHandler(ingestSvc, draftSvc, reviewSvc, cfg.Draft.TriggerSecret, logger)
	handler.Register(server.Router, httpinfra.BasicAuthGate(cfg.Review.User, cfg.Review.Password))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("api: получен сигнал завершения")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: HTTP сервер упал")
		}
	}
}
