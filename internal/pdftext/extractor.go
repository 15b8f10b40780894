// Package pdftext pulls the embedded text layer out of digital PDFs without
// touching OCR.
package pdftext

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Result carries the direct-extraction outcome. HasTextLayer is the
// confidence signal the orchestrator branches on: false means fall back to
// OCR, it is never an error by itself.
type Result struct {
	Text         string
	Pages        int
	HasTextLayer bool
}

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract reads the embedded text of every page in document order.
// Deterministic: identical bytes always yield identical text. A PDF with no
// text layer returns an empty Result, not an error.
func (e *Extractor) Extract(data []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single malformed page should not sink the document.
			e.logger.Warn("pdftext.page_failed", "page", i, "error", err)
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text := collapseWhitespace(b.String())
	return Result{
		Text:         text,
		Pages:        numPages,
		HasTextLayer: text != "",
	}, nil
}

// collapseWhitespace flattens runs of whitespace into single spaces, the same
// shape the schema backend is prompted for.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
