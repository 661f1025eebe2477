package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/gateway/httpclient"
	"github.com/synaptica-ai/risk-gateway/pkg/gateway/httperr"
)

type contextKey string

const UserContextKey contextKey = "user"

// TokenValidator resolves a bearer token to its claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (map[string]interface{}, error)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		// Ensure a request ID exists
		reqID := r.Header.Get(httpclient.RequestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		// Propagate request ID to the scoring service and back to the caller
		r.Header.Set(httpclient.RequestIDHeader, reqID)
		w.Header().Set(httpclient.RequestIDHeader, reqID)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(httpclient.WithRequestID(r.Context(), reqID)))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		logger.Log.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"remote_addr": r.RemoteAddr,
			"request_id":  reqID,
			"duration":    time.Since(start).Milliseconds(),
		}).Info("HTTP request")
	})
}

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Log.WithField("error", err).Error("Panic recovered")
				httperr.Write(w, http.StatusInternalServerError, httperr.CodeInternal, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Authenticate rejects requests without a valid bearer token. Preflight
// requests and paths in public pass through.
func Authenticate(validator TokenValidator, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("Authorization")
			if !strings.HasPrefix(token, "Bearer ") {
				httperr.Write(w, http.StatusUnauthorized, httperr.CodeUnauthorized, "bearer token required")
				return
			}

			claims, err := validator.ValidateToken(r.Context(), strings.TrimSpace(token[7:]))
			if err != nil {
				logger.Log.WithError(err).Debug("Bearer token rejected")
				httperr.Write(w, http.StatusUnauthorized, httperr.CodeUnauthorized, "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Simple token-bucket rate limiter middleware (per-process)
func RateLimit(rps int, burst int) func(http.Handler) http.Handler {
	type bucket struct {
		tokens int
		last   time.Time
		mu     sync.Mutex
	}
	b := &bucket{tokens: burst, last: time.Now()}
	refill := func() {
		now := time.Now()
		elapsed := now.Sub(b.last).Seconds()
		add := int(elapsed * float64(rps))
		if add > 0 {
			b.tokens += add
			if b.tokens > burst {
				b.tokens = burst
			}
			b.last = now
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			refill()
			if b.tokens <= 0 {
				b.mu.Unlock()
				httperr.Write(w, http.StatusTooManyRequests, httperr.CodeRateLimited, "rate limit exceeded")
				return
			}
			b.tokens--
			b.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS middleware (the dashboard is served from another origin)
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Session-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BodyLimit caps request bodies. Multipart uploads get the larger upload cap.
func BodyLimit(maxBytes, maxUploadBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := maxBytes
			if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") && maxUploadBytes > 0 {
				limit = maxUploadBytes
			}
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
