package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/shared/config"
	"github.com/fitstake/p2p-wager-platform/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// targets
	wagerURL := os.Getenv("WAGER_URL")
	if wagerURL == "" {
		wagerURL = "http://localhost:8083"
	}
	escrowURL := os.Getenv("ESCROW_URL")
	if escrowURL == "" {
		escrowURL = "http://localhost:8082"
	}
	simulatorURL := os.Getenv("SIMULATOR_URL")
	if simulatorURL == "" {
		simulatorURL = "http://localhost:8081"
	}
	wager := rp(wagerURL)
	escrow := rp(escrowURL)
	simulator := rp(simulatorURL)

	mux := http.NewServeMux()

	// apostas (ex.: /api/wagers/* -> wager-service)
	mux.Handle("/api/wagers/", http.StripPrefix("/api/wagers", wager))

	// custódia (ex.: /api/escrow/* -> escrow-service)
	mux.Handle("/api/escrow/", http.StripPrefix("/api/escrow", escrow))

	// simulador (ex.: /api/simulator/* -> activity-simulator)
	mux.Handle("/api/simulator/", http.StripPrefix("/api/simulator", simulator))

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
