package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/shared/cache"
	"github.com/fitstake/p2p-wager-platform/internal/shared/config"
	"github.com/fitstake/p2p-wager-platform/internal/shared/db"
	sharedkafka "github.com/fitstake/p2p-wager-platform/internal/shared/kafka"
	"github.com/fitstake/p2p-wager-platform/internal/shared/logger"
	wcache "github.com/fitstake/p2p-wager-platform/internal/wager-service/cache"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/engine"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/escrow"
	whttp "github.com/fitstake/p2p-wager-platform/internal/wager-service/http"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/notify"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Postgres (dono do schema: roda as migrações na subida)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(pg, cfg.MigrationsDir); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Redis (snapshots de leitura)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writer (notificações fire-and-forget)
	notifWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicNotifications)
	defer notifWriter.Close()

	// deps
	repository := repo.NewPostgres(pg)
	ecli := escrow.New(cfg.EscrowURL)
	notifier := notify.NewKafkaNotifier(log, notifWriter)
	lifecycle := engine.NewLifecycle(log, repository, ecli, notifier)
	snapshots := wcache.New(rdb)

	// HTTP público
	api := whttp.NewServer(log, lifecycle, repository, snapshots)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.PingContext(r.Context()); err != nil {
			http.Error(w, "pg", http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		addr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, metricsMux)
	}()

	log.Info("wager-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
