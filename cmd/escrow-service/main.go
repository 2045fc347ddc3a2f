package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	ehttp "github.com/fitstake/p2p-wager-platform/internal/escrow-service/http"
	"github.com/fitstake/p2p-wager-platform/internal/escrow-service/repo"
	"github.com/fitstake/p2p-wager-platform/internal/shared/config"
	"github.com/fitstake/p2p-wager-platform/internal/shared/db"
	"github.com/fitstake/p2p-wager-platform/internal/shared/logger"
	"github.com/fitstake/p2p-wager-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	repository := repo.NewPostgres(pg)

	api := ehttp.NewServer(log, repository)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	log.Info("escrow-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
