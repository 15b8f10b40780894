package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/verifactura/verifactura/constants"
	"github.com/verifactura/verifactura/internal/async"
	"github.com/verifactura/verifactura/internal/classify"
	"github.com/verifactura/verifactura/internal/common"
	"github.com/verifactura/verifactura/internal/document"
	"github.com/verifactura/verifactura/internal/normalize"
	"github.com/verifactura/verifactura/internal/pipeline"
	"github.com/verifactura/verifactura/internal/repository"
)

// ExtractionService glues the pipeline, post-processing, the optional
// classifier and the job store together. It serves both the synchronous
// HTTP path and the queue workers.
type ExtractionService struct {
	orch       *pipeline.Orchestrator
	classifier classify.Classifier // nil when no prediction service is configured
	jobs       repository.JobRepository
	logger     *slog.Logger
}

func NewExtractionService(
	orch *pipeline.Orchestrator,
	classifier classify.Classifier,
	jobs repository.JobRepository,
	logger *slog.Logger,
) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{
		orch:       orch,
		classifier: classifier,
		jobs:       jobs,
		logger:     logger,
	}
}

// Outcome is the API-facing shape of one finished extraction.
type Outcome struct {
	Fields        map[string]any     `json:"fields"`
	RawText       string             `json:"raw_text,omitempty"`
	Origin        string             `json:"text_origin"`
	Attempts      []pipeline.Attempt `json:"attempts"`
	Warnings      []string           `json:"warnings,omitempty"`
	Category      string             `json:"categoria_predicha,omitempty"`
	Probabilities map[string]float64 `json:"probabilidades,omitempty"`
}

// Process runs one handle end to end: text acquisition, schema extraction,
// normalization, then classification when a predictor is wired. A classifier
// outage degrades to a warning; the extraction itself stands.
func (s *ExtractionService) Process(ctx context.Context, h document.Handle) (Outcome, error) {
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		s.logger.Info("extract.process", "request_id", rid, "name", h.Name, "format", h.Format)
	}
	res, err := s.orch.Run(ctx, h)
	if err != nil {
		return Outcome{Attempts: res.Attempts}, err
	}

	warnings := append([]string(nil), res.ChunkWarnings...)
	for _, w := range normalize.Record(res.Fields) {
		warnings = append(warnings, w.String())
	}

	out := Outcome{
		Fields:   res.Fields,
		RawText:  res.RawText,
		Origin:   string(res.Origin),
		Attempts: res.Attempts,
		Warnings: warnings,
	}

	if s.classifier != nil {
		pred, err := s.classifier.Predict(ctx, normalize.FeatureMap(res.Fields))
		if err != nil {
			s.logger.Warn("classification skipped", "name", h.Name, "error", err)
			out.Warnings = append(out.Warnings, fmt.Sprintf("classification: %v", err))
		} else {
			out.Category = pred.Category
			out.Probabilities = pred.Probabilities
		}
	}
	return out, nil
}

// ProcessBatch fans a set of handles through the pipeline's concurrency
// ceiling, then post-processes each survivor independently.
func (s *ExtractionService) ProcessBatch(ctx context.Context, handles []document.Handle) []BatchOutcome {
	items := s.orch.RunBatch(ctx, handles)
	outs := make([]BatchOutcome, len(items))
	for i, it := range items {
		outs[i] = BatchOutcome{Name: it.Name}
		if it.Err != nil {
			outs[i].Error = it.Err.Error()
			outs[i].Attempts = it.Result.Attempts
			continue
		}

		warnings := append([]string(nil), it.Result.ChunkWarnings...)
		for _, w := range normalize.Record(it.Result.Fields) {
			warnings = append(warnings, w.String())
		}
		out := Outcome{
			Fields:   it.Result.Fields,
			RawText:  it.Result.RawText,
			Origin:   string(it.Result.Origin),
			Attempts: it.Result.Attempts,
			Warnings: warnings,
		}
		if s.classifier != nil {
			pred, err := s.classifier.Predict(ctx, normalize.FeatureMap(it.Result.Fields))
			if err != nil {
				out.Warnings = append(out.Warnings, fmt.Sprintf("classification: %v", err))
			} else {
				out.Category = pred.Category
				out.Probabilities = pred.Probabilities
			}
		}
		outs[i].Outcome = &out
	}
	return outs
}

// BatchOutcome is one slot of a batch response; Error and Outcome are
// mutually exclusive.
type BatchOutcome struct {
	Name     string             `json:"name"`
	Outcome  *Outcome           `json:"result,omitempty"`
	Error    string             `json:"error,omitempty"`
	Attempts []pipeline.Attempt `json:"attempts,omitempty"`
}

// Submit persists a queued job row for the handle. The caller enqueues it;
// workers pick it up via ProcessJob.
func (s *ExtractionService) Submit(ctx context.Context, h document.Handle) (*repository.Job, error) {
	name := h.Name
	if name == "" {
		name = "text-input"
	}
	return s.jobs.Create(ctx, name)
}

// ProcessJob implements async.Processor: the worker-side lifecycle of one
// queued extraction.
func (s *ExtractionService) ProcessJob(ctx context.Context, job async.Job) error {
	start := time.Now()
	if err := s.jobs.Start(ctx, job.JobID); err != nil {
		return err
	}

	out, err := s.Process(ctx, job.Handle)
	if err != nil {
		if ferr := s.jobs.FinishFailure(ctx, job.JobID, err.Error()); ferr != nil {
			return ferr
		}
		return err
	}

	err = s.jobs.FinishSuccess(ctx, job.JobID, repository.JobOutcome{
		Origin:        constants.TextOrigin(out.Origin),
		Fields:        out.Fields,
		RawText:       out.RawText,
		Warnings:      out.Warnings,
		Category:      out.Category,
		Probabilities: out.Probabilities,
		Attempts:      out.Attempts,
	})
	if err != nil {
		return err
	}
	s.logger.Info("job processed", "job_id", job.JobID, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
