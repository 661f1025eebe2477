package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/risk-gateway/pkg/batch"
	"github.com/synaptica-ai/risk-gateway/pkg/common/config"
	"github.com/synaptica-ai/risk-gateway/pkg/common/database"
	"github.com/synaptica-ai/risk-gateway/pkg/common/kafka"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/gateway/auth"
	"github.com/synaptica-ai/risk-gateway/pkg/gateway/middleware"
	"github.com/synaptica-ai/risk-gateway/pkg/gateway/routes"
	"github.com/synaptica-ai/risk-gateway/pkg/report"
	"github.com/synaptica-ai/risk-gateway/pkg/risk"
	"github.com/synaptica-ai/risk-gateway/pkg/scoring"
	"github.com/synaptica-ai/risk-gateway/pkg/sessions"
	"github.com/synaptica-ai/risk-gateway/pkg/whatif"
)

func main() {
	logger.Init("risk-gateway")
	cfg := config.Load()
	if err := cfg.ApplyOverlay(os.Getenv("GATEWAY_CONFIG_FILE")); err != nil {
		logger.Log.WithError(err).Fatal("Failed to load gateway config overlay")
	}

	thresholds, err := risk.NewThresholdStore(models.ThresholdConfig{
		Low:  cfg.RiskThresholdLow,
		High: cfg.RiskThresholdHigh,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid risk thresholds")
	}
	labeler := risk.NewLabeler(thresholds)

	client := scoring.NewClient(cfg, nil)

	repo, err := sessions.Open(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open session store")
	}
	defer repo.Close()

	tracker := whatif.OpenTracker(cfg)
	defer database.CloseRedis()

	opts := routes.PredictionOptions{
		FeatureDefaults:     cfg.FeatureDefaults,
		DefaultModelVersion: cfg.DefaultModelVersion,
		AppendTimeout:       cfg.SessionAppendTimeout,
	}
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(cfg, "")
		defer producer.Close()
		opts.Publisher = producer
	}

	// Setup router
	router := mux.NewRouter()

	// Middleware
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody, cfg.MaxUploadBytes))

	oidcAuth, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
	if err != nil {
		logger.Log.WithError(err).Warn("OIDC authentication not configured, running without auth")
	} else {
		router.Use(middleware.Authenticate(oidcAuth, "/health"))
	}

	routes.NewProxyHandler(client).Register(router)
	routes.NewPredictionHandler(client, labeler, repo, tracker, opts).Register(router)
	routes.NewWhatIfHandler(whatif.NewSimulator(client, labeler, tracker), cfg.FeatureDefaults).Register(router)
	routes.NewSessionsHandler(repo).Register(router)
	routes.NewBatchHandler(batch.NewCoordinator(client)).Register(router)
	routes.NewReportHandler(report.NewProvider(client), cfg.FeatureDefaults).Register(router)
	routes.NewThresholdsHandler(thresholds).Register(router)
	routes.NewMetricsHandler().Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		// outside the router so preflights on POST-only routes reach CORS
		Handler:      middleware.CORS(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":     cfg.ServerHost,
			"port":     cfg.ServerPort,
			"upstream": cfg.ScoringBaseURL,
			"sessions": cfg.SessionStore,
		}).Info("Risk Gateway started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Risk Gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Risk Gateway stopped")
}
