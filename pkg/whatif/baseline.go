package whatif

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/risk-gateway/pkg/common/config"
	"github.com/synaptica-ai/risk-gateway/pkg/common/database"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
)

const (
	TrackerMemory = "memory"
	TrackerRedis  = "redis"

	DefaultBaselineTTL = 12 * time.Hour
)

// BaselineTracker remembers which feature vectors were scored by /predict in
// each UI session scope.
type BaselineTracker interface {
	Mark(ctx context.Context, scope string, features models.PatientFeatures) error
	Seen(ctx context.Context, scope string, features models.PatientFeatures) (bool, error)
}

// Fingerprint identifies a feature vector within a scope.
func Fingerprint(scope string, features models.PatientFeatures) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	for _, name := range models.FeatureNames {
		v, _ := features.Get(name)
		h.Write([]byte(strconv.FormatFloat(v, 'g', -1, 64)))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryTracker keeps fingerprints in process with a TTL.
type MemoryTracker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	if ttl <= 0 {
		ttl = DefaultBaselineTTL
	}
	return &MemoryTracker{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (t *MemoryTracker) Mark(ctx context.Context, scope string, features models.PatientFeatures) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.entries[Fingerprint(scope, features)] = now.Add(t.ttl)
	t.sweepLocked(now)
	return nil
}

func (t *MemoryTracker) Seen(ctx context.Context, scope string, features models.PatientFeatures) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	expires, ok := t.entries[Fingerprint(scope, features)]
	if !ok {
		return false, nil
	}
	return t.now().Before(expires), nil
}

func (t *MemoryTracker) sweepLocked(now time.Time) {
	for key, expires := range t.entries {
		if !now.Before(expires) {
			delete(t.entries, key)
		}
	}
}

// redisKV is the subset of redis.Cmdable the tracker needs.
type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTracker shares fingerprints between gateway replicas.
type RedisTracker struct {
	client redisKV
	ttl    time.Duration
	prefix string
}

func NewRedisTracker(client redisKV, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = DefaultBaselineTTL
	}
	return &RedisTracker{client: client, ttl: ttl, prefix: "riskgw:baseline:"}
}

func (t *RedisTracker) Mark(ctx context.Context, scope string, features models.PatientFeatures) error {
	return t.client.Set(ctx, t.prefix+Fingerprint(scope, features), 1, t.ttl).Err()
}

func (t *RedisTracker) Seen(ctx context.Context, scope string, features models.PatientFeatures) (bool, error) {
	n, err := t.client.Exists(ctx, t.prefix+Fingerprint(scope, features)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OpenTracker selects the tracker named by cfg.BaselineStore.
func OpenTracker(cfg *config.Config) BaselineTracker {
	if cfg.BaselineStore == TrackerRedis {
		logger.Log.Info("Using redis baseline tracker")
		return NewRedisTracker(database.GetRedis(cfg), cfg.BaselineTTL)
	}
	return NewMemoryTracker(cfg.BaselineTTL)
}
