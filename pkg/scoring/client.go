// Package scoring is the gateway's client for the external prediction service.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/synaptica-ai/risk-gateway/pkg/common/config"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/gateway/httpclient"
	"github.com/synaptica-ai/risk-gateway/pkg/normalizer"
)

const maxResponseBytes = 64 << 20

// Response is a raw upstream reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Client forwards requests to the scoring service. Every call is bounded by
// the configured timeout and inherits cancellation from the caller's context.
type Client struct {
	http    *http.Client
	baseURL string
	paths   config.UpstreamPaths
	timeout time.Duration
}

func NewClient(cfg *config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(cfg.GatewayRequestTimeout)
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.ScoringBaseURL, "/"),
		paths:   cfg.UpstreamPaths,
		timeout: cfg.GatewayRequestTimeout,
	}
}

func (c *Client) Paths() config.UpstreamPaths {
	return c.paths
}

// Predict scores one patient and returns the normalized result. The label is
// left as the upstream sent it.
func (c *Client) Predict(ctx context.Context, features models.PatientFeatures) (models.PredictionResult, error) {
	raw, err := c.PostJSON(ctx, c.paths.Predict, features)
	if err != nil {
		return models.PredictionResult{}, err
	}
	return normalizer.Prediction(raw), nil
}

// GetJSON issues a GET and decodes the reply. A body that is not JSON is
// returned as a string.
func (c *Client) GetJSON(ctx context.Context, path string) (interface{}, error) {
	resp, err := c.do(ctx, "GET "+path, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return decodeBody(resp.Body), nil
}

func (c *Client) PostJSON(ctx context.Context, path string, body interface{}) (interface{}, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", path, err)
	}
	resp, err := c.do(ctx, "POST "+path, http.MethodPost, path, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	return decodeBody(resp.Body), nil
}

// Batch streams one CSV upload to the batch endpoint as a fresh multipart
// body. The file is copied through a pipe and never buffered whole.
func (c *Client) Batch(ctx context.Context, filename string, file io.Reader) (*Response, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})

	go func() {
		defer close(done)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
		header.Set("Content-Type", "text/csv")
		part, err := mw.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	resp, err := c.do(ctx, "POST "+c.paths.Batch, http.MethodPost, c.paths.Batch, pr, mw.FormDataContentType())
	// unblocks the writer if the upstream stopped reading early
	pr.Close()
	<-done
	return resp, err
}

// Report fetches the PDF report. A nil payload issues a GET, anything else
// is posted as JSON.
func (c *Client) Report(ctx context.Context, payload interface{}) (*Response, error) {
	if payload == nil {
		return c.do(ctx, "GET "+c.paths.Report, http.MethodGet, c.paths.Report, nil, "")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode report payload: %w", err)
	}
	return c.do(ctx, "POST "+c.paths.Report, http.MethodPost, c.paths.Report, bytes.NewReader(body), "application/json")
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &UpstreamError{Op: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, application/pdf, */*")
	reqID := httpclient.Propagate(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"url":        url,
			"request_id": reqID,
		}).WithError(err).Warn("Scoring service unreachable")
		return nil, &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UpstreamError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	logger.Log.WithFields(map[string]interface{}{
		"url":         url,
		"status":      resp.StatusCode,
		"request_id":  reqID,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Forwarded request to scoring service")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: op, Status: resp.StatusCode}
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func decodeBody(data []byte) interface{} {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return string(data)
	}
	return out
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
