package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// New creates an HTTP client tuned for outbound calls to the scoring service.
// Callers own retries; this client never retries.
func New(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// WithRequestID stores the correlation id for downstream calls.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation id carried by ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Propagate sets X-Request-ID on an outbound request from its context,
// minting a fresh id when none is present, and returns the id used.
func Propagate(req *http.Request) string {
	id := RequestID(req.Context())
	if id == "" {
		id = uuid.New().String()
	}
	req.Header.Set(RequestIDHeader, id)
	return id
}
