package server

import (
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/verifactura/verifactura/internal/async"
	"github.com/verifactura/verifactura/internal/common"
	"github.com/verifactura/verifactura/internal/document"
	"github.com/verifactura/verifactura/internal/normalize"
)

type extractTextRequest struct {
	Text     string `json:"text"`
	ForceOCR bool   `json:"force_ocr"`
}

// handleExtract accepts either a JSON body with raw text or a multipart form
// with one "file" or several "files" parts. "?async=true" queues the work and
// replies 202 with the job ID instead of blocking.
func (s *Server) handleExtract(c *fiber.Ctx) error {
	isAsync := strings.EqualFold(c.Query("async"), "true")

	ct := string(c.Request().Header.ContentType())
	if strings.HasPrefix(ct, "multipart/form-data") {
		return s.extractMultipart(c, isAsync)
	}

	var req extractTextRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body must be JSON with a text field or multipart/form-data")
	}
	if strings.TrimSpace(req.Text) == "" {
		return badRequest(c, "text must not be empty")
	}

	h := document.FromText(req.Text)
	if isAsync {
		return s.enqueue(c, h)
	}

	out, err := s.svc.Process(c.UserContext(), h)
	if err != nil {
		return extractionError(c, err, out.Attempts)
	}
	return c.JSON(out)
}

func (s *Server) extractMultipart(c *fiber.Ctx, isAsync bool) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "invalid multipart form")
	}
	forceOCR := strings.EqualFold(firstValue(form.Value["force_ocr"]), "true")

	files := form.File["files"]
	if single := form.File["file"]; len(single) > 0 {
		files = append(files, single...)
	}
	if len(files) == 0 {
		return badRequest(c, "multipart form needs a file or files part")
	}

	handles := make([]document.Handle, 0, len(files))
	for _, fh := range files {
		h, err := s.readUpload(fh, forceOCR)
		if err != nil {
			if errors.Is(err, document.ErrUnsupportedFormat) {
				return unsupportedMediaType(c, fh.Filename)
			}
			return badRequest(c, "could not read upload "+fh.Filename)
		}
		handles = append(handles, h)
	}

	if isAsync {
		if len(handles) != 1 {
			return badRequest(c, "async mode accepts exactly one file")
		}
		return s.enqueue(c, handles[0])
	}

	if len(handles) == 1 {
		out, err := s.svc.Process(c.UserContext(), handles[0])
		if err != nil {
			return extractionError(c, err, out.Attempts)
		}
		return c.JSON(out)
	}

	outs := s.svc.ProcessBatch(c.UserContext(), handles)
	return c.JSON(fiber.Map{"documents": outs})
}

func (s *Server) readUpload(fh *multipart.FileHeader, forceOCR bool) (document.Handle, error) {
	f, err := fh.Open()
	if err != nil {
		return document.Handle{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return document.Handle{}, err
	}
	return document.FromFile(fh.Filename, data, fh.Header.Get("Content-Type"), forceOCR)
}

func (s *Server) enqueue(c *fiber.Ctx, h document.Handle) error {
	job, err := s.svc.Submit(c.UserContext(), h)
	if err != nil {
		return internalError(c, err)
	}
	if err := s.queue.Enqueue(c.UserContext(), async.Job{
		JobID:       job.ID,
		Handle:      h,
		SubmittedAt: time.Now().UTC(),
		TraceID:     uuid.New().String(),
	}); err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": job.ID.String(),
		"status": string(job.Status),
	})
}

func (s *Server) handleGetJob(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "job id must be a UUID")
	}
	job, err := s.jobs.GetByID(c.UserContext(), jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
		}
		return internalError(c, err)
	}
	return c.JSON(job)
}

type predictionRequest struct {
	Features map[string]any `json:"features"`
	Fields   map[string]any `json:"fields"`
}

// handlePredict classifies either an explicit feature object or a full
// extracted record, projecting the latter onto the feature columns.
func (s *Server) handlePredict(c *fiber.Ctx) error {
	if s.classifier == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no prediction service configured",
		})
	}

	var req predictionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body must be JSON")
	}

	features := req.Features
	if features == nil && req.Fields != nil {
		rec := make(map[string]any, len(req.Fields))
		for k, v := range req.Fields {
			rec[k] = v
		}
		features = normalize.FeatureMap(rec)
	}
	if features == nil {
		return badRequest(c, "provide features or fields")
	}

	pred, err := s.classifier.Predict(c.UserContext(), features)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(pred)
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	xlsx, err := s.export.ExportJobsXLSX(c.UserContext())
	if err != nil {
		return internalError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="extracciones.xlsx"`)
	return c.Send(xlsx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.db != nil {
		if err := s.db.HealthCheck(c.UserContext(), 2*time.Second); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func firstValue(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unsupportedMediaType(c *fiber.Ctx, name string) error {
	return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
		"error": "unsupported document format: " + name,
	})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func extractionError(c *fiber.Ctx, err error, attempts any) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"error":    err.Error(),
		"attempts": attempts,
	})
}
