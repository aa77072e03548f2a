package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"crypto-draft-bot/internal/adapters/feed"
	"crypto-draft-bot/internal/adapters/repo"
	"crypto-draft-bot/internal/domain"
	"crypto-draft-bot/internal/infra/config"
	"crypto-draft-bot/internal/infra/db"
	applog "crypto-draft-bot/internal/infra/log"
	"crypto-draft-bot/internal/infra/metrics"
	"crypto-draft-bot/internal/infra/queue"
	"crypto-draft-bot/internal/usecase/ingest"
)

const runTimeout = 2 * time.Minute

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "scheduler")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var draftQueue domain.DraftQueue
	switch {
	case cfg.AMQPURL != "":
		rabbit, err := queue.NewRabbitDraftQueue(cfg.AMQPURL, cfg.Draft.QueueKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		draftQueue = rabbit
	case cfg.RedisAddr != "":
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		draftQueue = queue.NewRedisDraftQueue(redisClient, cfg.Draft.QueueKey)
	default:
		logger.Fatal().Msg("scheduler: не настроена очередь задач, требуется AMQP_URL или REDIS_ADDR")
	}

	feedClient := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.AuthToken, cfg.Feed.UserAgent, cfg.Feed.Timeout)
	ingestSvc := ingest.NewService(feedClient, repoAdapter, draftQueue, cfg.Ingest.VoteThreshold,
		logger.With().Str("component", "ingest").Logger())

	go metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	ticker := time.NewTicker(cfg.Ingest.Interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", cfg.Ingest.Interval).Msg("scheduler: запущен")
	for {
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		report, err := ingestSvc.Run(runCtx)
		cancel()

		switch {
		case err == nil:
			logger.Info().
				Str("status", string(report.Status)).
				Int("fetched", report.Fetched).
				Int("inserted", report.Inserted).
				Int("already_existed", report.AlreadyExisting).
				Int("below_threshold", report.BelowThreshold).
				Msg("scheduler: прогон завершён")
		default:
			var rl *domain.RateLimitError
			if errors.As(err, &rl) {
				logger.Warn().Dur("retry_after", rl.RetryAfter).Msg("scheduler: лента ограничила запросы")
				if !sleep(ctx, rl.RetryAfter) {
					return
				}
			} else {
				logger.Error().Err(err).Msg("scheduler: прогон завершился ошибкой")
			}
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановлен")
			return
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
