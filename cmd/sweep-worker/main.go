package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/shared/config"
	"github.com/fitstake/p2p-wager-platform/internal/shared/db"
	sharedkafka "github.com/fitstake/p2p-wager-platform/internal/shared/kafka"
	"github.com/fitstake/p2p-wager-platform/internal/shared/logger"
	"github.com/fitstake/p2p-wager-platform/internal/shared/metrics"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/detector"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/engine"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/escrow"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/notify"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

// O sweep-worker é a rede de segurança dos prazos: convites que ninguém aceitou
// e apostas ativas cujo fim chegou sem nenhum treino novo. Os gatilhos por
// evento e a varredura afunilam nas mesmas transições idempotentes.
func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	notifWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicNotifications)
	defer notifWriter.Close()

	repository := repo.NewPostgres(pg)
	ecli := escrow.New(cfg.EscrowURL)
	notifier := notify.NewKafkaNotifier(log, notifWriter)
	lifecycle := engine.NewLifecycle(log, repository, ecli, notifier)
	det := detector.New(log, repository, lifecycle)

	// Métricas das varreduras
	sweeps := prometheus.NewCounter(prometheus.CounterOpts{Name: "sweep_runs_total", Help: "varreduras executadas"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{Name: "sweep_bets_expired_total", Help: "convites expirados"})
	resolved := prometheus.NewCounter(prometheus.CounterOpts{Name: "sweep_bets_resolved_total", Help: "apostas resolvidas por prazo"})
	sweepErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "sweep_errors_total", Help: "varreduras com erro"})
	prometheus.MustRegister(sweeps, expired, resolved, sweepErrors)

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			sweeps.Inc()
			res, err := det.Sweep(ctx)
			if err != nil {
				sweepErrors.Inc()
				log.Error("sweep failed", zap.Error(err))
				return
			}
			expired.Add(float64(res.Expired))
			resolved.Add(float64(res.Resolved))
			if res.Expired > 0 || res.Resolved > 0 {
				log.Info("sweep done",
					zap.Int("expired", res.Expired),
					zap.Int("resolved", res.Resolved),
				)
			}
		}),
	)
	if err != nil {
		log.Fatal("schedule sweep", zap.Error(err))
	}

	// metrics/health
	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	log.Info("metrics/health listening", zap.String("addr", ":"+cfg.MetricsPort))

	sched.Start()
	log.Info("sweep-worker started", zap.Duration("interval", cfg.SweepInterval))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	_ = sched.Shutdown()
	log.Info("sweep-worker stopped")
}
