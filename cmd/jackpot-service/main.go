package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	jhttp "github.com/radieske/jackpot-platform-poc/internal/jackpot-service/http"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot-service/producer"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot-service/ws"
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
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jackpot_http_requests_total",
		Help: "Requisições HTTP por rota e status",
	}, []string{"route", "status"})
	rewardEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jackpot_reward_evaluations_total",
		Help: "Sorteios realizados por resultado",
	}, []string{"outcome"})
)

func main() {
	cfg := config.LoadService("jackpot-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prometheus.MustRegister(httpRequests, rewardEvaluations)

	// Redis: pub/sub do feed de pote (e store, se STORE_BACKEND=redis)
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		if cfg.StoreBackend == config.StoreRedis {
			log.Fatal("redis", zap.Error(err))
		}
		log.Warn("redis unavailable; live pool feed disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	backend, err := store.Open(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal("store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer backend.Close()

	var pool *pubsub.RedisBroadcaster
	if rdb != nil {
		pool = pubsub.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel)
	}

	api := &jhttp.Server{
		Log:         log,
		Catalog:     engine.NewCatalog(backend.Store),
		Rewards:     engine.NewRewardService(backend.Store, engine.NewEvaluator(nil), log),
		Requests:    httpRequests,
		Evaluations: rewardEvaluations,
	}
	if pool != nil {
		api.Pool = pool
	}

	// memory não é compartilhado com o worker: aplica as apostas no próprio processo
	if cfg.StoreBackend == config.StoreMemory {
		inline := &producer.InlinePublisher{Engine: engine.NewProcessor(backend.Store, log)}
		if pool != nil {
			inline.OnPool = func(ctx context.Context, u events.PoolUpdate) {
				if err := pool.PublishPool(ctx, u); err != nil {
					log.Warn("publish pool update", zap.Error(err))
				}
			}
		}
		api.Bets = inline
	} else {
		brokers := cfg.Brokers()
		if err := kafka.EnsureTopics(ctx, brokers, log, cfg.TopicJackpotBets, cfg.TopicRewardGranted); err != nil {
			log.Warn("ensure topics", zap.Error(err))
		}
		betsWriter := kafka.NewWriter(brokers, cfg.TopicJackpotBets)
		defer betsWriter.Close()

		var rewardsWriter *kafkago.Writer
		if cfg.TopicRewardGranted != "" {
			rewardsWriter = kafka.NewWriter(brokers, cfg.TopicRewardGranted)
			defer rewardsWriter.Close()
		}
		publ := producer.NewKafkaPublisher(betsWriter, rewardsWriter)
		api.Bets = publ
		api.Grants = publ
	}

	// WebSocket: feed do pote alimentado pelo Redis
	if rdb != nil {
		hub := ws.NewHub(func(r *http.Request) bool { return true }, log)
		ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)
		api.WS = http.HandlerFunc(hub.HandleWS)
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, health(backend, rdb), log)
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("jackpot-service listening",
			zap.String("addr", apiSrv.Addr),
			zap.String("store", cfg.StoreBackend),
		)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func health(b *store.Backend, rdb *redis.Client) metrics.HealthFunc {
	return func(ctx context.Context) error {
		if err := b.Health(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
