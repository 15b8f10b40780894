// Command extract runs one or more documents through the extraction pipeline
// and prints the merged records as JSON. It is the offline counterpart of the
// HTTP daemon, sharing the same configuration.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/verifactura/verifactura/internal/classify"
	"github.com/verifactura/verifactura/internal/common"
	"github.com/verifactura/verifactura/internal/document"
	"github.com/verifactura/verifactura/internal/llm/openai"
	"github.com/verifactura/verifactura/internal/normalize"
	"github.com/verifactura/verifactura/internal/ocr"
	"github.com/verifactura/verifactura/internal/pdftext"
	"github.com/verifactura/verifactura/internal/pipeline"
	"github.com/verifactura/verifactura/internal/raster"
)

func main() {
	_ = godotenv.Load()

	var (
		text         = flag.String("text", "", "extract from literal text instead of files")
		forceOCR     = flag.Bool("force-ocr", false, "skip the direct PDF text layer and go straight to OCR")
		classifyFlag = flag.Bool("classify", false, "also classify each record (needs CLASSIFIER_URL)")
		rawText      = flag.Bool("raw-text", false, "include the canonical text in the output")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if cfg.LLM.APIKey == "" {
		fmt.Fprintln(os.Stderr, "OPENAI_API_KEY is required")
		os.Exit(2)
	}

	var handles []document.Handle
	if *text != "" {
		handles = append(handles, document.FromText(*text))
	}
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
			os.Exit(2)
		}
		h, err := document.FromFile(filepath.Base(path), data, "", *forceOCR)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(2)
		}
		handles = append(handles, h)
	}
	if len(handles) == 0 {
		fmt.Fprintln(os.Stderr, "usage: extract [-text ...] [-force-ocr] [-classify] file...")
		os.Exit(2)
	}

	var recognizer pipeline.TextRecognizer = ocr.Unconfigured{}
	cache := ocr.NewClientCache(logger)
	defer cache.Close()
	if cfg.OCRConfigured() {
		recognizer = cache.Get(ocr.Config{
			Endpoint:     cfg.OCR.Endpoint,
			Key:          cfg.OCR.Key,
			APIVersion:   cfg.OCR.APIVersion,
			Timeout:      cfg.OCR.Timeout,
			PollInterval: cfg.OCR.PollInterval,
			RatePerSec:   cfg.OCR.RatePerSec,
		})
	}

	orch := pipeline.NewOrchestrator(
		pipeline.Config{
			MaxCharsPerChunk: cfg.Pipeline.MaxCharsPerChunk,
			CallTimeout:      cfg.Pipeline.CallTimeout,
			BatchConcurrency: cfg.Pipeline.BatchConcurrency,
		},
		pdftext.NewExtractor(logger),
		recognizer,
		raster.NewRasterizer(logger),
		openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			TopP:        cfg.LLM.TopP,
			Timeout:     cfg.LLM.Timeout,
			SchemaName:  cfg.LLM.SchemaName,
		}, logger),
		logger,
	)

	var predictor classify.Classifier
	if *classifyFlag {
		if cfg.Classifier.BaseURL == "" {
			fmt.Fprintln(os.Stderr, "-classify needs CLASSIFIER_URL")
			os.Exit(2)
		}
		predictor = classify.NewClient(classify.Config{
			BaseURL: cfg.Classifier.BaseURL,
			Timeout: cfg.Classifier.Timeout,
		}, logger)
	}

	ctx := context.Background()
	items := orch.RunBatch(ctx, handles)

	type output struct {
		Name     string             `json:"name,omitempty"`
		Origin   string             `json:"text_origin,omitempty"`
		Fields   map[string]any     `json:"fields,omitempty"`
		RawText  string             `json:"raw_text,omitempty"`
		Warnings []string           `json:"warnings,omitempty"`
		Category string             `json:"categoria_predicha,omitempty"`
		Probs    map[string]float64 `json:"probabilidades,omitempty"`
		Error    string             `json:"error,omitempty"`
	}

	failed := 0
	outs := make([]output, 0, len(items))
	for _, it := range items {
		o := output{Name: it.Name}
		if it.Err != nil {
			o.Error = it.Err.Error()
			failed++
			outs = append(outs, o)
			continue
		}
		warnings := append([]string(nil), it.Result.ChunkWarnings...)
		for _, w := range normalize.Record(it.Result.Fields) {
			warnings = append(warnings, w.String())
		}
		o.Origin = string(it.Result.Origin)
		o.Fields = it.Result.Fields
		o.Warnings = warnings
		if *rawText {
			o.RawText = it.Result.RawText
		}
		if predictor != nil {
			pred, err := predictor.Predict(ctx, normalize.FeatureMap(it.Result.Fields))
			if err != nil {
				o.Warnings = append(o.Warnings, fmt.Sprintf("classification: %v", err))
			} else {
				o.Category = pred.Category
				o.Probs = pred.Probabilities
			}
		}
		outs = append(outs, o)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if len(outs) == 1 {
		_ = enc.Encode(outs[0])
	} else {
		_ = enc.Encode(outs)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
