package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/shared/config"
	sharedkafka "github.com/fitstake/p2p-wager-platform/internal/shared/kafka"
	"github.com/fitstake/p2p-wager-platform/internal/shared/logger"
	"github.com/fitstake/p2p-wager-platform/pkg/contracts/events"
)

// Usuários fictícios que "treinam" periodicamente.
var userCatalog = []string{"user-ana", "user-bruno", "user-carla", "user-diego"}

var workoutTypes = []string{"running", "walking", "cycling"}

// Métricas Prometheus do gerador
var (
	generated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_activities_generated_total",
		Help: "Treinos sintéticos publicados",
	})
	publishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_publish_errors_total",
		Help: "Falhas de publicação no Kafka",
	})
)

// rnd gera número aleatório entre min e max
func rnd(min, max float64) float64 {
	return (rand.Float64() * (max - min)) + min
}

func randomActivity(userID string) events.ActivityReported {
	wt := workoutTypes[rand.Intn(len(workoutTypes))]
	durSecs := int64(rnd(15*60, 90*60))

	// velocidade média plausível por modalidade (m/s)
	var speed float64
	switch wt {
	case "running":
		speed = rnd(2.2, 4.2)
	case "walking":
		speed = rnd(1.0, 1.8)
	case "cycling":
		speed = rnd(4.5, 9.0)
	}

	now := time.Now().UTC()
	return events.ActivityReported{
		EventID:        uuid.NewString(),
		UserID:         userID,
		WorkoutType:    wt,
		StartedAt:      now.Add(-time.Duration(durSecs) * time.Second),
		DurationSecs:   durSecs,
		DistanceMeters: float64(durSecs) * speed,
		TsUnixMs:       now.UnixMilli(),
	}
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	rand.Seed(time.Now().UnixNano())

	prometheus.MustRegister(generated, publishErrors)

	writer := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicActivityEvents)
	defer writer.Close()

	publish := func(ctx context.Context, ev events.ActivityReported) error {
		b, _ := json.Marshal(ev)
		if err := sharedkafka.WriteJSON(ctx, writer, ev.UserID, b); err != nil {
			publishErrors.Inc()
			return err
		}
		generated.Inc()
		return nil
	}

	// Gera treinos sintéticos para um usuário aleatório a cada 10 segundos
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			ev := randomActivity(userCatalog[rand.Intn(len(userCatalog))])
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := publish(ctx, ev); err != nil {
				log.Warn("publish failed", zap.Error(err))
			} else {
				log.Debug("activity published",
					zap.String("userId", ev.UserID),
					zap.String("workoutType", ev.WorkoutType),
					zap.Float64("distanceMeters", ev.DistanceMeters),
				)
			}
			cancel()
		}
	}()

	// ==== MUX PÚBLICO: injeção manual de treinos (útil em demos e testes)
	appMux := http.NewServeMux()
	appMux.HandleFunc("/simulator/activity", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var ev events.ActivityReported
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if ev.UserID == "" {
			http.Error(w, "user_id required", http.StatusBadRequest)
			return
		}
		if ev.EventID == "" {
			ev.EventID = uuid.NewString()
		}
		if ev.StartedAt.IsZero() {
			ev.StartedAt = time.Now().UTC()
		}
		ev.TsUnixMs = time.Now().UnixMilli()

		if err := publish(r.Context(), ev); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"event_id": ev.EventID, "status": "published"})
	})

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("activity simulator (metrics) running", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("activity simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/simulator/activity"),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
