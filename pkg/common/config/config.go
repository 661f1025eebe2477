package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ArchiverPort   string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	MaxUploadBytes int64

	// Scoring service
	ScoringBaseURL        string
	GatewayRequestTimeout time.Duration
	GatewayRateLimitRPS   int
	GatewayRateLimitBurst int
	DefaultModelVersion   string
	UpstreamPaths         UpstreamPaths

	// Risk thresholds and feature defaults
	RiskThresholdLow  float64
	RiskThresholdHigh float64
	FeatureDefaults   map[string]float64

	// Session repository
	SessionStore         string
	SessionCapacity      int
	SessionAppendTimeout time.Duration
	SessionLevelDBPath   string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Base prediction tracking
	BaselineStore string
	BaselineTTL   time.Duration

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaEnabled         bool
	KafkaBrokers         []string
	KafkaGroupID         string
	KafkaPredictionTopic string

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
}

// UpstreamPaths names the Scoring Service endpoints the gateway calls.
type UpstreamPaths struct {
	Health   string `yaml:"health"`
	Predict  string `yaml:"predict"`
	WhatIf   string `yaml:"whatif"`
	Batch    string `yaml:"batch"`
	Shap     string `yaml:"shap_global"`
	Fairness string `yaml:"fairness"`
	Cohorts  string `yaml:"cohorts"`
	Report   string `yaml:"report"`
}

func DefaultUpstreamPaths() UpstreamPaths {
	return UpstreamPaths{
		Health:   "/health",
		Predict:  "/predict",
		WhatIf:   "/whatif",
		Batch:    "/batch",
		Shap:     "/shap/global",
		Fairness: "/metrics/fairness",
		Cohorts:  "/cohorts/explore",
		Report:   "/report",
	}
}

// Overlay is the optional YAML file referenced by GATEWAY_CONFIG_FILE.
type Overlay struct {
	Thresholds *struct {
		Low  float64 `yaml:"low"`
		High float64 `yaml:"high"`
	} `yaml:"thresholds"`
	FeatureDefaults map[string]float64 `yaml:"feature_defaults"`
	UpstreamPaths   UpstreamPaths      `yaml:"upstream_paths"`
}

func Load() *Config {
	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ArchiverPort:   getEnv("ARCHIVER_PORT", "8085"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 60*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 32*1024*1024)),

		ScoringBaseURL:        strings.TrimRight(getEnv("SCORING_BASE_URL", "http://python:8001"), "/"),
		GatewayRequestTimeout: getDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),
		GatewayRateLimitRPS:   getIntEnv("GATEWAY_RATE_LIMIT_RPS", 50),
		GatewayRateLimitBurst: getIntEnv("GATEWAY_RATE_LIMIT_BURST", 100),
		DefaultModelVersion:   getEnv("DEFAULT_MODEL_VERSION", "unknown"),
		UpstreamPaths:         DefaultUpstreamPaths(),

		RiskThresholdLow:  getFloatEnv("RISK_THRESHOLD_LOW", 0.33),
		RiskThresholdHigh: getFloatEnv("RISK_THRESHOLD_HIGH", 0.66),
		FeatureDefaults:   map[string]float64{},

		SessionStore:         strings.ToLower(getEnv("SESSION_STORE", "memory")),
		SessionCapacity:      getIntEnv("SESSION_CAPACITY", 200),
		SessionAppendTimeout: getDuration("SESSION_APPEND_TIMEOUT", 3*time.Second),
		SessionLevelDBPath:   getEnv("SESSION_LEVELDB_PATH", "./data/sessions"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "riskgw"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "riskgw"),
		PostgresDB:       getEnv("POSTGRES_DB", "riskgw"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		BaselineStore: strings.ToLower(getEnv("BASELINE_STORE", "memory")),
		BaselineTTL:   getDuration("BASELINE_TTL", 12*time.Hour),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaEnabled:         getBoolEnv("KAFKA_ENABLED", false),
		KafkaBrokers:         getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:         getEnv("KAFKA_GROUP_ID", "risk-session-archiver"),
		KafkaPredictionTopic: getEnv("KAFKA_PREDICTION_TOPIC", "risk.predictions"),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
	}
	return cfg
}

// ApplyOverlay reads a YAML overlay and merges it into cfg. An empty path is a no-op.
func (c *Config) ApplyOverlay(path string) error {
	if path == "" {
		return nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config overlay: %w", err)
	}
	var overlay Overlay
	if err := yaml.Unmarshal(content, &overlay); err != nil {
		return fmt.Errorf("parse config overlay: %w", err)
	}

	if overlay.Thresholds != nil {
		c.RiskThresholdLow = overlay.Thresholds.Low
		c.RiskThresholdHigh = overlay.Thresholds.High
	}
	for name, value := range overlay.FeatureDefaults {
		c.FeatureDefaults[strings.ToLower(strings.TrimSpace(name))] = value
	}
	mergePath(&c.UpstreamPaths.Health, overlay.UpstreamPaths.Health)
	mergePath(&c.UpstreamPaths.Predict, overlay.UpstreamPaths.Predict)
	mergePath(&c.UpstreamPaths.WhatIf, overlay.UpstreamPaths.WhatIf)
	mergePath(&c.UpstreamPaths.Batch, overlay.UpstreamPaths.Batch)
	mergePath(&c.UpstreamPaths.Shap, overlay.UpstreamPaths.Shap)
	mergePath(&c.UpstreamPaths.Fairness, overlay.UpstreamPaths.Fairness)
	mergePath(&c.UpstreamPaths.Cohorts, overlay.UpstreamPaths.Cohorts)
	mergePath(&c.UpstreamPaths.Report, overlay.UpstreamPaths.Report)
	return nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresDB,
		c.PostgresPort,
		c.PostgresSSLMode,
	)
}

func mergePath(dst *string, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	*dst = value
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
