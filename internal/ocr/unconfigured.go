package ocr

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a deployment runs without an OCR backend
// and a document still needs one.
var ErrNotConfigured = errors.New("ocr backend not configured")

// Unconfigured stands in for the Azure client when no endpoint/key pair is
// present. Text and born-digital PDFs still work; anything needing OCR fails
// fast with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Analyze(ctx context.Context, data []byte, contentType string) (string, error) {
	return "", ErrNotConfigured
}
