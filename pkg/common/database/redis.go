package database

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/risk-gateway/pkg/common/config"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
)

const (
	redisDialTimeout = 5 * time.Second
	// upper bound for a single baseline SET/EXISTS round trip
	redisMaxOpTimeout = 3 * time.Second
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// redisOptions derives client settings from cfg. Read and write deadlines
// never exceed the gateway's upstream request timeout.
func redisOptions(cfg *config.Config) *redis.Options {
	opTimeout := redisMaxOpTimeout
	if cfg.GatewayRequestTimeout > 0 && cfg.GatewayRequestTimeout < opTimeout {
		opTimeout = cfg.GatewayRequestTimeout
	}
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	}
}

// GetRedis returns the shared client used by the baseline tracker. A failed
// ping is logged, not fatal: tracker errors are handled per request.
func GetRedis(cfg *config.Config) *redis.Client {
	redisOnce.Do(func() {
		opts := redisOptions(cfg)
		redisClient = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
		defer cancel()

		entry := logger.Log.WithFields(map[string]interface{}{
			"addr": opts.Addr,
			"db":   opts.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			entry.WithError(err).Warn("Redis unreachable, baseline checks will be skipped until it recovers")
			return
		}
		entry.Info("Connected to Redis")
	})

	return redisClient
}

func CloseRedis() error {
	if redisClient == nil {
		return nil
	}
	return redisClient.Close()
}
