package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	simulator "github.com/radieske/jackpot-platform-poc/internal/bet-simulator"
	"github.com/radieske/jackpot-platform-poc/internal/shared/config"
	"github.com/radieske/jackpot-platform-poc/internal/shared/kafka"
	"github.com/radieske/jackpot-platform-poc/internal/shared/logger"
	"github.com/radieske/jackpot-platform-poc/internal/shared/metrics"
)

var (
	betsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bet_simulator_bets_published_total",
		Help: "Apostas publicadas no Kafka",
	})
	dupsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bet_simulator_duplicates_published_total",
		Help: "Apostas reenviadas de propósito",
	})
	publishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bet_simulator_publish_errors_total",
		Help: "Falhas ao publicar no Kafka",
	})
)

func main() {
	cfg := config.LoadService("bet-simulator")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prometheus.MustRegister(betsPublished, dupsPublished, publishErrors)
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)
	defer metricsSrv.Close()

	// Jackpots alvo: SIM_JACKPOT_IDS ou os cadastrados no jackpot-service
	ids := cfg.SimJackpotIDs
	for len(ids) == 0 {
		ids, err = simulator.FetchJackpotIDs(ctx, &http.Client{Timeout: 5 * time.Second}, cfg.SimAPIURL)
		if err == nil && len(ids) > 0 {
			break
		}
		log.Warn("no jackpots available yet", zap.String("api", cfg.SimAPIURL), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}

	brokers := cfg.Brokers()
	if err := kafka.EnsureTopics(ctx, brokers, log, cfg.TopicJackpotBets); err != nil {
		log.Warn("ensure topics", zap.Error(err))
	}
	w := kafka.NewWriter(brokers, cfg.TopicJackpotBets)
	defer w.Close()

	rate := cfg.SimRate
	if rate <= 0 {
		rate = 1
	}
	gen := simulator.NewGenerator(uint64(time.Now().UnixNano()), ids, cfg.SimUsers, cfg.SimDupRatio)

	log.Info("bet simulator running",
		zap.Strings("jackpots", ids),
		zap.Int("rate_per_sec", rate),
		zap.Float64("dup_ratio", cfg.SimDupRatio),
		zap.String("topic", cfg.TopicJackpotBets),
	)

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("bet simulator stopped")
			return
		case <-ticker.C:
		}

		ev, dup := gen.Next()
		if err := kafka.WriteJSON(ctx, w, ev.JackpotID, ev); err != nil {
			if ctx.Err() != nil {
				continue
			}
			publishErrors.Inc()
			log.Warn("publish bet", zap.String("bet_id", ev.BetRequestID), zap.Error(err))
			continue
		}
		betsPublished.Inc()
		if dup {
			dupsPublished.Inc()
		}
		log.Debug("bet published",
			zap.String("bet_id", ev.BetRequestID),
			zap.String("jackpot_id", ev.JackpotID),
			zap.String("amount", ev.BetAmount.String()),
			zap.Bool("duplicate", dup),
		)
	}
}
