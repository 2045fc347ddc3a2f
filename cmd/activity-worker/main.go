package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/activity-worker/consumer"
	"github.com/fitstake/p2p-wager-platform/internal/shared/config"
	"github.com/fitstake/p2p-wager-platform/internal/shared/db"
	sharedkafka "github.com/fitstake/p2p-wager-platform/internal/shared/kafka"
	"github.com/fitstake/p2p-wager-platform/internal/shared/logger"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/detector"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/engine"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/escrow"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/notify"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/progress"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

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

	// Kafka consumer: eventos de treino (consumer group activity-worker)
	reader := sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicActivityEvents, "activity-worker")
	defer reader.Close()

	var dlqWriter *sharedkafka.Writer
	if cfg.TopicActivityEventsDLQ != "" {
		dlqWriter = sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicActivityEventsDLQ)
		defer dlqWriter.Close()
	}

	notifWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicNotifications)
	defer notifWriter.Close()

	// O worker aciona o mesmo gerenciador de ciclo de vida do wager-service:
	// quando uma meta é batida, a resolução sai daqui.
	repository := repo.NewPostgres(pg)
	ecli := escrow.New(cfg.EscrowURL)
	notifier := notify.NewKafkaNotifier(log, notifWriter)
	lifecycle := engine.NewLifecycle(log, repository, ecli, notifier)
	tracker := progress.NewTracker(log, repository)
	det := detector.New(log, repository, lifecycle)

	// Métricas Prometheus do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "activity_messages_consumed_total", Help: "eventos de treino consumidos"})
	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "activity_progress_applied_total", Help: "placares atualizados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "activity_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, applied, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		DLQ:        dlqWriter,
		Bets:       repository,
		Tracker:    tracker,
		Detector:   det,
		OnConsumed: func() { consumed.Inc() },
		OnApplied:  func() { applied.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := pg.PingContext(ctx); err != nil {
				http.Error(w, "pg", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		addr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("metrics/health listening", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("activity-worker started", zap.String("consume", cfg.TopicActivityEvents))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("activity-worker stopped")
}
