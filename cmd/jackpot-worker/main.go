package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot-worker/consumer"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/store"
	"github.com/radieske/jackpot-platform-poc/internal/shared/cache"
	"github.com/radieske/jackpot-platform-poc/internal/shared/config"
	"github.com/radieske/jackpot-platform-poc/internal/shared/kafka"
	"github.com/radieske/jackpot-platform-poc/internal/shared/logger"
	"github.com/radieske/jackpot-platform-poc/internal/shared/metrics"
	"github.com/radieske/jackpot-platform-poc/internal/shared/pubsub"
	"github.com/radieske/jackpot-platform-poc/pkg/contracts/events"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jackpot_worker_messages_consumed_total",
		Help: "Mensagens de aposta consumidas",
	})
	contribApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jackpot_worker_contributions_applied_total",
		Help: "Contribuições aplicadas aos potes",
	})
	duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jackpot_worker_duplicates_total",
		Help: "Apostas reentregues e ignoradas",
	})
	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jackpot_worker_errors_total",
		Help: "Erros por fase do processamento",
	}, []string{"stage"})
)

func main() {
	cfg := config.LoadService("jackpot-worker")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.StoreBackend == config.StoreMemory {
		// o jackpot-service aplica as apostas em processo nesse modo
		log.Fatal("jackpot-worker needs a shared store (postgres or redis)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prometheus.MustRegister(msgsConsumed, contribApplied, duplicates, errorsTotal)

	// Redis: broadcast do novo valor do pote
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()
	pool := pubsub.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel)

	backend, err := store.Open(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal("store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer backend.Close()

	// sem DLQ uma aposta rejeitada seria perdida
	if cfg.TopicJackpotBetsDLQ == "" {
		log.Fatal("KAFKA_TOPIC_JACKPOT_BETS_DLQ must not be empty")
	}
	brokers := cfg.Brokers()
	if err := kafka.EnsureTopics(ctx, brokers, log, cfg.TopicJackpotBets, cfg.TopicJackpotBetsDLQ); err != nil {
		log.Warn("ensure topics", zap.Error(err))
	}

	reader := kafka.NewReader(brokers, cfg.TopicJackpotBets, cfg.ConsumerGroup)
	defer reader.Close()

	dlq := kafka.NewWriter(brokers, cfg.TopicJackpotBetsDLQ)
	defer dlq.Close()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, backend.Health, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	p := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Engine:     engine.NewProcessor(backend.Store, log),
		DLQ:        dlq,
		MaxRetries: 3,
		OnConsumed: msgsConsumed.Inc,
		OnApplied: func(ev events.BetPlaced, res engine.Result) {
			contribApplied.Inc()
			err := pool.PublishPool(ctx, events.PoolUpdate{
				JackpotID:   ev.JackpotID,
				Delta:       res.Contribution.Amount,
				CurrentPool: res.Pool,
				Reason:      events.PoolReasonContribution,
				BetID:       ev.BetRequestID,
				UpdatedAt:   res.Contribution.CreatedAt,
			})
			if err != nil {
				log.Warn("publish pool update", zap.String("jackpot_id", ev.JackpotID), zap.Error(err))
			}
		},
		OnDuplicate: duplicates.Inc,
		OnError:     func(stage string) { errorsTotal.WithLabelValues(stage).Inc() },
	}

	log.Info("jackpot-worker started",
		zap.String("consume", cfg.TopicJackpotBets),
		zap.String("group", cfg.ConsumerGroup),
		zap.String("dlq", cfg.TopicJackpotBetsDLQ),
		zap.String("store", cfg.StoreBackend),
		zap.String("metrics", ":"+cfg.MetricsPort),
	)

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", zap.Error(err))
	}
	log.Info("jackpot-worker stopped")
}
