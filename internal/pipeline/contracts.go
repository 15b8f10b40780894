package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/verifactura/verifactura/constants"
	"github.com/verifactura/verifactura/internal/llm"
	"github.com/verifactura/verifactura/internal/pdftext"
	"github.com/verifactura/verifactura/internal/raster"
)

// DirectExtractor is the no-OCR path: embedded PDF text only.
type DirectExtractor interface {
	Extract(data []byte) (pdftext.Result, error)
}

// TextRecognizer is the OCR backend boundary. Implementations must be safe
// for concurrent use; the production one is the cached Azure client.
type TextRecognizer interface {
	Analyze(ctx context.Context, data []byte, contentType string) (string, error)
}

// PageRasterizer recovers per-page images from a PDF for the last fallback.
type PageRasterizer interface {
	Render(data []byte) ([]raster.PageImage, error)
}

// Attempt records one walk down the fallback chain. The final successful
// attempt's strategy becomes the document's text origin.
type Attempt struct {
	Strategy string        `json:"strategy"`
	Success  bool          `json:"success"`
	Failure  string        `json:"failure,omitempty"`
	Latency  time.Duration `json:"latency_ns"`
}

// ExhaustedError is terminal: every strategy in the chain was tried and none
// produced text. It carries the attempt history for diagnostics.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	last := "none"
	if n := len(e.Attempts); n > 0 {
		a := e.Attempts[n-1]
		last = a.Strategy
		if a.Failure != "" {
			last += ": " + a.Failure
		}
	}
	return fmt.Sprintf("extraction exhausted after %d attempts (last %s)", len(e.Attempts), last)
}

// Result is one document's completed orchestration.
type Result struct {
	Fields   llm.Record           `json:"fields"`
	RawText  string               `json:"raw_text"`
	Origin   constants.TextOrigin `json:"text_origin"`
	Attempts []Attempt            `json:"attempts"`
	// ChunkWarnings notes chunks whose schema extraction failed; their
	// siblings' fields are still merged.
	ChunkWarnings []string `json:"chunk_warnings,omitempty"`
}

// Config holds the orchestration knobs.
type Config struct {
	MaxCharsPerChunk int           // default 50000
	CallTimeout      time.Duration // per OCR/LLM call, default 2m
	BatchConcurrency int           // simultaneous documents in a batch, default 4
	Params           llm.Params    // pass-through sampling configuration
}

func (c Config) withDefaults() Config {
	if c.MaxCharsPerChunk <= 0 {
		c.MaxCharsPerChunk = 50000
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 2 * time.Minute
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 4
	}
	return c
}
