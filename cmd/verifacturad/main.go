package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/verifactura/verifactura/internal/async"
	"github.com/verifactura/verifactura/internal/classify"
	"github.com/verifactura/verifactura/internal/common"
	"github.com/verifactura/verifactura/internal/export"
	"github.com/verifactura/verifactura/internal/llm/openai"
	"github.com/verifactura/verifactura/internal/ocr"
	"github.com/verifactura/verifactura/internal/pdftext"
	"github.com/verifactura/verifactura/internal/pipeline"
	"github.com/verifactura/verifactura/internal/raster"
	"github.com/verifactura/verifactura/internal/repository"
	"github.com/verifactura/verifactura/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("database open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	jobs := repository.NewJobRepository(db, logger)

	ocrCache := ocr.NewClientCache(logger)
	defer ocrCache.Close()
	var recognizer pipeline.TextRecognizer
	if cfg.OCRConfigured() {
		recognizer = ocrCache.Get(ocr.Config{
			Endpoint:     cfg.OCR.Endpoint,
			Key:          cfg.OCR.Key,
			APIVersion:   cfg.OCR.APIVersion,
			Timeout:      cfg.OCR.Timeout,
			PollInterval: cfg.OCR.PollInterval,
			RatePerSec:   cfg.OCR.RatePerSec,
		})
	} else {
		logger.Warn("ocr backend not configured, image documents will fail")
		recognizer = ocr.Unconfigured{}
	}

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		Timeout:     cfg.LLM.Timeout,
		SchemaName:  cfg.LLM.SchemaName,
	}, logger)

	orch := pipeline.NewOrchestrator(
		pipeline.Config{
			MaxCharsPerChunk: cfg.Pipeline.MaxCharsPerChunk,
			CallTimeout:      cfg.Pipeline.CallTimeout,
			BatchConcurrency: cfg.Pipeline.BatchConcurrency,
		},
		pdftext.NewExtractor(logger),
		recognizer,
		raster.NewRasterizer(logger),
		extractor,
		logger,
	)

	var classifier classify.Classifier
	if cfg.Classifier.BaseURL != "" {
		classifier = classify.NewClient(classify.Config{
			BaseURL: cfg.Classifier.BaseURL,
			Timeout: cfg.Classifier.Timeout,
		}, logger)
	}

	svc := server.NewExtractionService(orch, classifier, jobs, logger)
	queue := async.NewExtractionQueue(svc, logger,
		async.WithWorkers(cfg.Pipeline.BatchConcurrency),
	)
	exportSvc := export.NewService(jobs, logger)

	srv := server.New(cfg.Server, svc, queue, jobs, classifier, exportSvc, db, logger)
	go func() {
		if err := srv.Listen(); err != nil {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	queue.Shutdown(shutdownCtx)
}
