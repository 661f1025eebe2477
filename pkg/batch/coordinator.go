// Package batch forwards CSV uploads to the scoring service's batch endpoint.
package batch

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/scoring"
)

const FileField = "file"

var csvContentTypes = map[string]bool{
	"":                         true,
	"text/csv":                 true,
	"application/csv":          true,
	"text/plain":               true,
	"application/vnd.ms-excel": true,
	"application/octet-stream": true,
}

// Uploader streams one file to the scoring service.
type Uploader interface {
	Batch(ctx context.Context, filename string, file io.Reader) (*scoring.Response, error)
}

type Coordinator struct {
	uploader Uploader
}

func NewCoordinator(uploader Uploader) *Coordinator {
	return &Coordinator{uploader: uploader}
}

// Forward scans the multipart stream for the file field, validates it and
// streams it upstream. Parts before the file are skipped; nothing is sent
// upstream unless validation passes.
func (c *Coordinator) Forward(ctx context.Context, mr *multipart.Reader) (*scoring.Response, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, models.NewValidationError("multipart field %q is required", FileField)
		}
		if err != nil {
			return nil, models.NewValidationError("malformed multipart body: %v", err)
		}
		if part.FormName() != FileField {
			part.Close()
			continue
		}

		filename := part.FileName()
		if err := ValidateUpload(filename, part.Header.Get("Content-Type")); err != nil {
			part.Close()
			return nil, err
		}

		logger.Log.WithField("filename", filename).Info("Forwarding batch upload")
		resp, err := c.uploader.Batch(ctx, filename, part)
		part.Close()
		return resp, err
	}
}

// ValidateUpload accepts only files with a .csv extension and, when given, a
// CSV-compatible content type.
func ValidateUpload(filename, contentType string) error {
	if strings.TrimSpace(filename) == "" {
		return models.NewValidationError("uploaded file has no name")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return models.NewValidationError("only .csv files are accepted, got %q", filename)
	}
	mediaType := ""
	if contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return models.NewValidationError("invalid content type %q", contentType)
		}
		mediaType = strings.ToLower(parsed)
	}
	if !csvContentTypes[mediaType] {
		return models.NewValidationError("content type %q is not CSV", contentType)
	}
	return nil
}
