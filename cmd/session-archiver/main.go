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

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/risk-gateway/pkg/common/config"
	"github.com/synaptica-ai/risk-gateway/pkg/common/kafka"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/gateway/routes"
	"github.com/synaptica-ai/risk-gateway/pkg/risk"
	"github.com/synaptica-ai/risk-gateway/pkg/sessions"
)

func main() {
	logger.Init("session-archiver")
	cfg := config.Load()
	if err := cfg.ApplyOverlay(os.Getenv("GATEWAY_CONFIG_FILE")); err != nil {
		logger.Log.WithError(err).Fatal("Failed to load gateway config overlay")
	}

	if cfg.SessionStore == "" || cfg.SessionStore == sessions.StoreMemory {
		logger.Log.WithField("session_store", cfg.SessionStore).Fatal("Session archiver needs a durable SESSION_STORE (postgres or leveldb)")
	}

	repo, err := sessions.Open(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open session store")
	}
	defer repo.Close()

	// Rows published without a label are classified with the configured thresholds.
	thresholds, err := risk.NewThresholdStore(models.ThresholdConfig{
		Low:  cfg.RiskThresholdLow,
		High: cfg.RiskThresholdHigh,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid risk thresholds")
	}
	archiver := sessions.NewArchiver(repo, risk.NewLabeler(thresholds))

	consumer := kafka.NewConsumer(cfg, "", "")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Consume(ctx, archiver.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Fatal("Consumer error")
		}
	}()

	// HTTP server
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	routes.NewMetricsHandler().Register(router)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ArchiverPort),
		Handler: router,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ArchiverPort,
			"topic": cfg.KafkaPredictionTopic,
		}).Info("Session Archiver started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Session Archiver...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Session Archiver stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
