// Package raster recovers page images from PDFs whose raw bytes the OCR
// backend could not handle. It is the last rung of the fallback chain.
package raster

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageImage is one recovered image in document order.
type PageImage struct {
	Page        int
	Data        []byte
	ContentType string
}

type Rasterizer struct {
	logger *slog.Logger
}

func NewRasterizer(logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{logger: logger}
}

// Render returns at most one image per page, pages in document order. Scanned
// invoices embed the scan as a single full-page XObject, so the largest image
// on each page is taken as that page's representation. Pages without images
// are skipped; the caller decides whether an empty result exhausts the chain.
// Pure function of the input bytes, invoked at most once per document.
func (r *Rasterizer) Render(data []byte) ([]PageImage, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	var out []PageImage
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		images, err := pdfcpu.ExtractPageImages(ctx, pageNr, false)
		if err != nil {
			r.logger.Warn("raster.page_failed", "page", pageNr, "error", err)
			continue
		}

		var chosen []byte
		for _, img := range images {
			payload, err := io.ReadAll(img)
			if err != nil || len(payload) == 0 {
				continue
			}
			if len(payload) > len(chosen) {
				chosen = payload
			}
		}
		if chosen == nil {
			continue
		}
		out = append(out, PageImage{
			Page:        pageNr,
			Data:        chosen,
			ContentType: guessImageContentType(chosen),
		})
	}
	return out, nil
}

func guessImageContentType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return "image/tiff"
	default:
		return "image/png"
	}
}
