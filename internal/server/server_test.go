package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verifactura/verifactura/internal/async"
	"github.com/verifactura/verifactura/internal/classify"
	"github.com/verifactura/verifactura/internal/common"
	"github.com/verifactura/verifactura/internal/export"
	"github.com/verifactura/verifactura/internal/llm"
	"github.com/verifactura/verifactura/internal/ocr"
	"github.com/verifactura/verifactura/internal/pdftext"
	"github.com/verifactura/verifactura/internal/pipeline"
	"github.com/verifactura/verifactura/internal/raster"
	"github.com/verifactura/verifactura/internal/repository"
)

type fakeDirect struct{}

func (fakeDirect) Extract(data []byte) (pdftext.Result, error) {
	return pdftext.Result{Text: string(data)}, nil
}

type fakeRaster struct{}

func (fakeRaster) Render(data []byte) ([]raster.PageImage, error) { return nil, nil }

type fakeExtractor struct{}

func (fakeExtractor) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.Record, []byte, error) {
	rec := llm.EmptyRecord()
	rec["MARCA"] = "TOYOTA"
	rec["TOTAL"] = 38990.0
	return rec, nil, nil
}

type testEnv struct {
	srv   *Server
	jobs  repository.JobRepository
	queue *async.ExtractionQueue
}

func newTestServer(t *testing.T, classifier classify.Classifier) *testEnv {
	t.Helper()

	db, err := repository.Open(context.Background(), repository.Config{
		DSN: filepath.Join(t.TempDir(), "jobs.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	jobs := repository.NewJobRepository(db, nil)
	orch := pipeline.NewOrchestrator(pipeline.Config{}, fakeDirect{}, ocr.Unconfigured{}, fakeRaster{}, fakeExtractor{}, nil)
	svc := NewExtractionService(orch, classifier, jobs, nil)
	queue := async.NewExtractionQueue(svc, nil, async.WithWorkers(1))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		queue.Shutdown(ctx)
	})

	srv := New(common.ServerConfig{Addr: ":0", BodyLimit: 8 << 20}, svc, queue, jobs, classifier, export.NewService(jobs, nil), db, nil)
	return &testEnv{srv: srv, jobs: jobs, queue: queue}
}

func doJSON(t *testing.T, env *testEnv, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := env.srv.App().Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, nil)
	resp, body := doJSON(t, env, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestExtractFromText(t *testing.T) {
	env := newTestServer(t, nil)
	resp, body := doJSON(t, env, http.MethodPost, "/extract", map[string]any{
		"text": "FACTURA 001 TOYOTA HILUX",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "text-input", body["text_origin"])
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "TOYOTA", fields["MARCA"])
	assert.Len(t, fields, len(llm.Fields))
}

func TestExtractRejectsEmptyText(t *testing.T) {
	env := newTestServer(t, nil)
	resp, _ := doJSON(t, env, http.MethodPost, "/extract", map[string]any{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExtractMultipartFile(t *testing.T) {
	env := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "factura.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("FACTURA 001 TOYOTA"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := env.srv.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "text-input", body["text_origin"])
}

func TestExtractMultipartUnsupportedFormat(t *testing.T) {
	env := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "mystery.bin")
	require.NoError(t, err)
	_, err = fw.Write([]byte{0x00, 0x01})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := env.srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestExtractAsyncLifecycle(t *testing.T) {
	env := newTestServer(t, nil)
	resp, body := doJSON(t, env, http.MethodPost, "/extract?async=true", map[string]any{
		"text": "FACTURA 001 TOYOTA HILUX",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID, ok := body["job_id"].(string)
	require.True(t, ok)
	assert.Equal(t, "QUEUED", body["status"])

	require.Eventually(t, func() bool {
		resp, body := doJSON(t, env, http.MethodGet, "/jobs/"+jobID, nil)
		return resp.StatusCode == http.StatusOK && body["status"] == "COMPLETED"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestGetJobValidation(t *testing.T) {
	env := newTestServer(t, nil)

	resp, _ := doJSON(t, env, http.MethodGet, "/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, env, http.MethodGet, "/jobs/1b4e28ba-2fa1-11d2-883f-0016d3cca427", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPredictionsWithoutClassifier(t *testing.T) {
	env := newTestServer(t, nil)
	resp, _ := doJSON(t, env, http.MethodPost, "/predictions", map[string]any{
		"features": map[string]any{"MARCA": "TOYOTA"},
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPredictionsProxiesClassifier(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"categoria_predicha": "FAMILIAR",
			"probabilidades": map[string]float64{
				"FAMILIAR": 0.9, "COMERCIAL": 0.05, "DEPORTIVO": 0.02, "CARGA": 0.02, "TRANSPORTE": 0.01,
			},
		})
	}))
	defer backend.Close()

	env := newTestServer(t, classify.NewClient(classify.Config{BaseURL: backend.URL}, nil))

	// a full record is projected onto the feature columns before forwarding
	resp, body := doJSON(t, env, http.MethodPost, "/predictions", map[string]any{
		"fields": map[string]any{"MARCA": "TOYOTA", "COLOR": "ROJO", "TOTAL": 18990.0},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "FAMILIAR", body["categoria_predicha"])
}

func TestExportXLSX(t *testing.T) {
	env := newTestServer(t, nil)

	// finish one job so the sheet has a data row
	job, err := env.jobs.Create(context.Background(), "factura.pdf")
	require.NoError(t, err)
	require.NoError(t, env.jobs.FinishSuccess(context.Background(), job.ID, repository.JobOutcome{
		Origin: "pdf-direct",
		Fields: map[string]any{"MARCA": "TOYOTA"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/export.xlsx", nil)
	resp, err := env.srv.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"),
	)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip container")
}
