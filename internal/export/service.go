// Package export renders completed extraction jobs as an XLSX workbook, one
// row per document with the full field set as columns.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/verifactura/verifactura/internal/llm"
	"github.com/verifactura/verifactura/internal/repository"
	"github.com/xuri/excelize/v2"
)

type Service struct {
	jobs   repository.JobRepository
	logger *slog.Logger
}

func NewService(jobs repository.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportJobsXLSX returns a workbook of all completed jobs. Leading columns
// carry job metadata; the rest follow the declared field order so the sheet
// is stable across runs.
func (s *Service) ExportJobsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.ListCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Extractions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 && index != activeIndex {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{"Job ID", "Documento", "Origen", "Categoría", "Finalizado"}
	fieldNames := llm.FieldNames()
	headers = append(headers, fieldNames...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, j := range jobs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, j.ID.String())
		write(2, j.Name)
		write(3, string(j.Origin))
		write(4, j.Category)
		if j.FinishedAt != nil {
			write(5, j.FinishedAt.UTC().Format("2006-01-02 15:04:05"))
		} else {
			write(5, "")
		}

		for i, name := range fieldNames {
			v := j.Fields[name]
			if v == nil {
				write(6+i, "")
				continue
			}
			write(6+i, v)
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // job id
	_ = f.SetColWidth(sheet, "B", "B", 28) // document name
	_ = f.SetColWidth(sheet, "C", "E", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"jobs", len(jobs),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
