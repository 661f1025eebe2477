package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/scoring"
)

func init() {
	logger.Discard()
}

type stubFetcher struct {
	resp *scoring.Response
	err  error
	got  interface{}
}

func (s *stubFetcher) Report(ctx context.Context, payload interface{}) (*scoring.Response, error) {
	s.got = payload
	return s.resp, s.err
}

func TestFallbackPDFIsWellFormed(t *testing.T) {
	pdf := FallbackPDF()
	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF-1.4\n")))
	require.True(t, bytes.HasSuffix(pdf, []byte("%%EOF\n")))

	m := regexp.MustCompile(`startxref\n(\d+)\n`).FindSubmatch(pdf)
	require.NotNil(t, m)
	xref, err := strconv.Atoi(string(m[1]))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(pdf[xref:], []byte("xref\n0 4\n")))

	entries := regexp.MustCompile(`(\d{10}) 00000 n `).FindAllSubmatch(pdf, -1)
	require.Len(t, entries, 3)
	for i, e := range entries {
		off, err := strconv.Atoi(string(e[1]))
		require.NoError(t, err)
		want := fmt.Sprintf("%d 0 obj", i+1)
		assert.True(t, bytes.HasPrefix(pdf[off:], []byte(want)), want)
	}
}

func TestFallbackPDFReturnsCopy(t *testing.T) {
	a := FallbackPDF()
	a[0] = 'X'
	assert.Equal(t, byte('%'), FallbackPDF()[0])
}

func TestRenderFallsBackWhenUpstreamDown(t *testing.T) {
	p := NewProvider(&stubFetcher{err: &scoring.UpstreamError{Op: "GET /report", Err: errors.New("connection refused")}})

	pdf, fallback := p.Render(context.Background(), nil)
	assert.True(t, fallback)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestRenderFallsBackOnNonPDFBody(t *testing.T) {
	p := NewProvider(&stubFetcher{resp: &scoring.Response{Status: 200, ContentType: "application/json", Body: []byte(`{"detail":"x"}`)}})

	pdf, fallback := p.Render(context.Background(), nil)
	assert.True(t, fallback)
	assert.Equal(t, FallbackPDF(), pdf)
}

func TestRenderPassesUpstreamPDF(t *testing.T) {
	fetcher := &stubFetcher{resp: &scoring.Response{Status: 200, ContentType: ContentType, Body: []byte("%PDF-1.7 real report")}}
	p := NewProvider(fetcher)
	features := models.PatientFeatures{Age: 55}

	pdf, fallback := p.Render(context.Background(), features)
	assert.False(t, fallback)
	assert.Equal(t, "%PDF-1.7 real report", string(pdf))
	assert.Equal(t, features, fetcher.got)
}
