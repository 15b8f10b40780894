package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/verifactura/verifactura/constants"
	"github.com/verifactura/verifactura/internal/document"
	"github.com/verifactura/verifactura/internal/llm"
)

// state names the positions of the fallback walk. Transitions only ever move
// forward; a handle never revisits a cheaper strategy.
type state int

const (
	stateStart state = iota
	stateDirectExtract
	stateOCRAttempt
	stateRasterFallback
	stateReadyForSchema
	stateCompleted
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateDirectExtract:
		return "direct_extract"
	case stateOCRAttempt:
		return "ocr_attempt"
	case stateRasterFallback:
		return "raster_fallback"
	case stateReadyForSchema:
		return "ready_for_schema"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// Orchestrator walks one document through text acquisition and
// schema-constrained field extraction. It holds no per-document state, so a
// single instance serves concurrent batches.
type Orchestrator struct {
	cfg        Config
	direct     DirectExtractor
	recognizer TextRecognizer
	rasterizer PageRasterizer
	extractor  llm.FieldExtractor
	logger     *slog.Logger
}

func NewOrchestrator(
	cfg Config,
	direct DirectExtractor,
	recognizer TextRecognizer,
	rasterizer PageRasterizer,
	extractor llm.FieldExtractor,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		direct:     direct,
		recognizer: recognizer,
		rasterizer: rasterizer,
		extractor:  extractor,
		logger:     logger,
	}
}

// acquired is the outcome of the text-acquisition walk.
type acquired struct {
	text     string
	origin   constants.TextOrigin
	images   []llm.ImageInput
	attempts []Attempt
}

// Run takes a handle from Start to Completed or Failed. Re-running the same
// handle repeats the identical strategy walk; nothing is memoized across
// calls.
func (o *Orchestrator) Run(ctx context.Context, h document.Handle) (Result, error) {
	rid := uuid.New().String()
	start := time.Now()
	o.logger.Info("pipeline.run.start",
		"req_id", rid,
		"name", h.Name,
		"format", h.Format,
		"force_ocr", h.ForceOCR,
	)

	acq, err := o.acquireText(ctx, rid, h)
	if err != nil {
		o.logger.Error("pipeline.run.failed",
			"req_id", rid,
			"state", stateFailed.String(),
			"attempts", len(acq.attempts),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{Attempts: acq.attempts}, err
	}

	res, err := o.extractFields(ctx, rid, acq)
	if err != nil {
		o.logger.Error("pipeline.run.failed",
			"req_id", rid,
			"state", stateFailed.String(),
			"origin", acq.origin,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{RawText: acq.text, Origin: acq.origin, Attempts: acq.attempts}, err
	}

	res.RawText = acq.text
	res.Origin = acq.origin
	res.Attempts = acq.attempts
	o.logger.Info("pipeline.run.ok",
		"req_id", rid,
		"state", stateCompleted.String(),
		"origin", res.Origin,
		"attempts", len(res.Attempts),
		"chunk_warnings", len(res.ChunkWarnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// acquireText drives Start -> DirectExtract -> OCR -> Raster until a
// non-empty canonical text appears or the chain is exhausted. The order is
// fixed cheap-to-expensive and never skips backward.
func (o *Orchestrator) acquireText(ctx context.Context, rid string, h document.Handle) (acquired, error) {
	acq := acquired{}
	st := stateStart

	// text input bypasses the chain entirely
	if h.Format == constants.TEXT {
		acq.text = strings.TrimSpace(h.Text)
		acq.origin = constants.OriginTextInput
		acq.attempts = append(acq.attempts, Attempt{Strategy: string(constants.OriginTextInput), Success: acq.text != ""})
		if acq.text == "" {
			acq.attempts[0].Failure = "empty text input"
			return acq, &ExhaustedError{Attempts: acq.attempts}
		}
		return acq, nil
	}

	if h.Format == constants.PDF && !h.ForceOCR {
		st = stateDirectExtract
	} else {
		st = stateOCRAttempt
	}

	for {
		switch st {
		case stateDirectExtract:
			attempt := Attempt{Strategy: string(constants.OriginPDFDirect)}
			t0 := time.Now()
			res, err := o.direct.Extract(h.Data)
			attempt.Latency = time.Since(t0)
			text := strings.TrimSpace(res.Text)
			switch {
			case err != nil:
				attempt.Failure = err.Error()
			case text == "":
				attempt.Failure = "no embedded text layer"
			default:
				attempt.Success = true
			}
			acq.attempts = append(acq.attempts, attempt)
			if attempt.Success {
				acq.text = text
				acq.origin = constants.OriginPDFDirect
				return acq, nil
			}
			o.logger.Info("pipeline.fallback",
				"req_id", rid, "from", st.String(), "to", stateOCRAttempt.String(),
				"reason", attempt.Failure,
			)
			st = stateOCRAttempt

		case stateOCRAttempt:
			attempt := Attempt{Strategy: string(constants.OriginOCR)}
			t0 := time.Now()
			text, err := o.analyzeOne(ctx, h.Data, h.ContentType())
			attempt.Latency = time.Since(t0)
			switch {
			case err != nil:
				attempt.Failure = err.Error()
			case text == "":
				attempt.Failure = "ocr returned no text"
			default:
				attempt.Success = true
			}
			acq.attempts = append(acq.attempts, attempt)
			if attempt.Success {
				acq.text = text
				acq.origin = constants.OriginOCR
				if h.Format == constants.IMAGE {
					acq.images = []llm.ImageInput{{Data: h.Data, ContentType: h.ContentType()}}
				}
				return acq, nil
			}
			// a raw image has nowhere further to fall; a PDF still has its
			// rendered pages
			if h.Format != constants.PDF {
				return acq, &ExhaustedError{Attempts: acq.attempts}
			}
			o.logger.Info("pipeline.fallback",
				"req_id", rid, "from", st.String(), "to", stateRasterFallback.String(),
				"reason", attempt.Failure,
			)
			st = stateRasterFallback

		case stateRasterFallback:
			attempt := Attempt{Strategy: string(constants.OriginOCRRasterized)}
			t0 := time.Now()
			text, images, err := o.ocrRasterized(ctx, rid, h.Data)
			attempt.Latency = time.Since(t0)
			switch {
			case err != nil:
				attempt.Failure = err.Error()
			case text == "":
				attempt.Failure = "no page yielded text"
			default:
				attempt.Success = true
			}
			acq.attempts = append(acq.attempts, attempt)
			if !attempt.Success {
				return acq, &ExhaustedError{Attempts: acq.attempts}
			}
			acq.text = text
			acq.origin = constants.OriginOCRRasterized
			acq.images = images
			return acq, nil

		default:
			return acq, fmt.Errorf("pipeline: unexpected state %s", st)
		}
	}
}

func (o *Orchestrator) analyzeOne(ctx context.Context, data []byte, contentType string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()
	text, err := o.recognizer.Analyze(cctx, data, contentType)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ocrRasterized renders the PDF's pages and OCRs each one. Per-page failures
// are tolerated; the step fails only when no page contributes text.
func (o *Orchestrator) ocrRasterized(ctx context.Context, rid string, data []byte) (string, []llm.ImageInput, error) {
	pages, err := o.rasterizer.Render(data)
	if err != nil {
		return "", nil, fmt.Errorf("rasterize: %w", err)
	}
	if len(pages) == 0 {
		return "", nil, fmt.Errorf("rasterize: no recoverable page images")
	}

	var (
		parts  []string
		images []llm.ImageInput
	)
	for _, page := range pages {
		text, err := o.analyzeOne(ctx, page.Data, page.ContentType)
		if err != nil {
			o.logger.Warn("pipeline.raster.page_failed",
				"req_id", rid, "page", page.Page, "error", err,
			)
			continue
		}
		if text == "" {
			continue
		}
		parts = append(parts, text)
		images = append(images, llm.ImageInput{Data: page.Data, ContentType: page.ContentType})
	}
	return strings.Join(parts, "\n"), images, nil
}

// extractFields runs schema extraction per chunk, sequentially and in
// document order, then merges. A chunk's failure is downgraded to a warning
// as long as at least one sibling succeeds.
func (o *Orchestrator) extractFields(ctx context.Context, rid string, acq acquired) (Result, error) {
	chunks := SplitChunks(acq.text, o.cfg.MaxCharsPerChunk)
	if len(chunks) == 0 {
		return Result{}, fmt.Errorf("pipeline: no text to extract from")
	}

	var (
		records  []llm.Record
		warnings []string
		lastErr  error
	)
	for i, chunk := range chunks {
		cctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		rec, _, err := o.extractor.ExtractFields(cctx, llm.ExtractRequest{
			Text:   chunk,
			Images: acq.images,
			Params: o.cfg.Params,
		})
		cancel()
		if err != nil {
			lastErr = err
			warnings = append(warnings, fmt.Sprintf("chunk %d/%d: %v", i+1, len(chunks), err))
			o.logger.Warn("pipeline.chunk.failed",
				"req_id", rid, "chunk", i+1, "chunks", len(chunks), "error", err,
			)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return Result{}, fmt.Errorf("schema extraction failed for all %d chunks: %w", len(chunks), lastErr)
	}

	return Result{
		Fields:        MergeRecords(records),
		ChunkWarnings: warnings,
	}, nil
}
