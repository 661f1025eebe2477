// Package report serves the patient PDF report, substituting a blank page
// whenever the scoring service cannot produce one.
package report

import (
	"bytes"
	"context"

	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/scoring"
)

const ContentType = "application/pdf"

var pdfSignature = []byte("%PDF")

type Fetcher interface {
	Report(ctx context.Context, payload interface{}) (*scoring.Response, error)
}

type Provider struct {
	fetcher Fetcher
}

func NewProvider(fetcher Fetcher) *Provider {
	return &Provider{fetcher: fetcher}
}

// Render never fails. A nil payload requests the report with GET. The second
// return value reports whether the fallback page was used.
func (p *Provider) Render(ctx context.Context, payload interface{}) ([]byte, bool) {
	resp, err := p.fetcher.Report(ctx, payload)
	if err != nil {
		logger.Log.WithError(err).Warn("Report generation failed, serving fallback PDF")
		return FallbackPDF(), true
	}
	if !bytes.HasPrefix(bytes.TrimLeft(resp.Body, " \t\r\n"), pdfSignature) {
		logger.Log.WithField("content_type", resp.ContentType).Warn("Scoring service returned a non-PDF report, serving fallback PDF")
		return FallbackPDF(), true
	}
	return resp.Body, false
}
