// Package ocr wraps the Azure Document Intelligence prebuilt-read model
// behind a small client with a single compatibility retry for rejected
// content types.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config is the credential/endpoint pair plus call behavior. Two configs with
// the same Endpoint and Key share one cached client.
type Config struct {
	Endpoint     string
	Key          string
	APIVersion   string        // default "2023-07-31"
	Timeout      time.Duration // covers submit + polling, default 90s
	PollInterval time.Duration // default 1s
	RatePerSec   float64       // outbound request budget, default 5
}

func (c Config) withDefaults() Config {
	if c.APIVersion == "" {
		c.APIVersion = "2023-07-31"
	}
	if c.Timeout <= 0 {
		c.Timeout = 90 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 5
	}
	return c
}

// BackendError is a terminal OCR failure: the analyze call failed and, when
// the rejection was about content type, so did the one compatibility retry.
type BackendError struct {
	Status  int
	Code    string
	Message string
	Retried bool
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("ocr backend: status=%d code=%s retried=%t: %s", e.Status, e.Code, e.Retried, e.Message)
}

// Client talks to one endpoint/key pair. Safe for concurrent use; the
// embedded http.Client and rate limiter are shared across in-flight requests.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
		logger:  logger,
	}
}

// Close releases pooled connections. Called once at process shutdown.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Analyze runs prebuilt-read over the payload and returns all recognized
// lines in reading order, pages concatenated in document order.
//
// If the backend rejects the declared content type, the call is retried
// exactly once as a generic binary stream. Any other failure (auth, network,
// quota) is surfaced immediately without retrying.
func (c *Client) Analyze(ctx context.Context, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	text, err := c.analyzeOnce(ctx, data, contentType)
	if err == nil {
		return text, nil
	}

	var be *BackendError
	if errors.As(err, &be) && isContentTypeRejection(be) && contentType != "application/octet-stream" {
		c.logger.Warn("ocr.analyze.retry_content_type",
			"declared", contentType,
			"status", be.Status,
			"code", be.Code,
		)
		text, retryErr := c.analyzeOnce(ctx, data, "application/octet-stream")
		if retryErr == nil {
			return text, nil
		}
		if errors.As(retryErr, &be) {
			be.Retried = true
			return "", be
		}
		return "", retryErr
	}
	return "", err
}

func (c *Client) analyzeOnce(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	url := strings.TrimRight(c.cfg.Endpoint, "/") +
		"/formrecognizer/documentModels/prebuilt-read:analyze?api-version=" + c.cfg.APIVersion

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr analyze: %w", err)
	}
	defer closeBody(resp.Body, c.logger)

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
		return "", &BackendError{
			Status:  resp.StatusCode,
			Code:    errorCodeOf(body),
			Message: string(body),
		}
	}

	opLoc := resp.Header.Get("Operation-Location")
	if opLoc == "" {
		return "", &BackendError{Status: resp.StatusCode, Message: "missing Operation-Location header"}
	}

	result, err := c.poll(ctx, opLoc)
	if err != nil {
		return "", err
	}

	c.logger.Debug("ocr.analyze.ok",
		"pages", len(result.Pages),
		"content_type", contentType,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return joinLines(result), nil
}

type analyzeResult struct {
	Pages []struct {
		Lines []struct {
			Content string `json:"content"`
		} `json:"lines"`
	} `json:"pages"`
}

type operationStatus struct {
	Status        string        `json:"status"`
	AnalyzeResult analyzeResult `json:"analyzeResult"`
	Error         struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) poll(ctx context.Context, opLoc string) (analyzeResult, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opLoc, nil)
		if err != nil {
			return analyzeResult{}, fmt.Errorf("build poll request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)

		resp, err := c.http.Do(req)
		if err != nil {
			return analyzeResult{}, fmt.Errorf("ocr poll: %w", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		closeBody(resp.Body, c.logger)
		if readErr != nil {
			return analyzeResult{}, fmt.Errorf("ocr poll read: %w", readErr)
		}
		if resp.StatusCode/100 != 2 {
			return analyzeResult{}, &BackendError{
				Status:  resp.StatusCode,
				Code:    errorCodeOf(body),
				Message: string(body),
			}
		}

		var op operationStatus
		if err := json.Unmarshal(body, &op); err != nil {
			return analyzeResult{}, fmt.Errorf("ocr poll decode: %w", err)
		}
		switch strings.ToLower(op.Status) {
		case "succeeded":
			return op.AnalyzeResult, nil
		case "failed":
			return analyzeResult{}, &BackendError{
				Status:  resp.StatusCode,
				Code:    op.Error.Code,
				Message: op.Error.Message,
			}
		}

		select {
		case <-ctx.Done():
			return analyzeResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func joinLines(result analyzeResult) string {
	var lines []string
	for _, page := range result.Pages {
		for _, line := range page.Lines {
			lines = append(lines, line.Content)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// errorCodeOf pulls the service error code out of an error response body.
func errorCodeOf(body []byte) string {
	var payload struct {
		Error struct {
			Code       string `json:"code"`
			InnerError struct {
				Code string `json:"code"`
			} `json:"innererror"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error.InnerError.Code != "" {
		return payload.Error.InnerError.Code
	}
	return payload.Error.Code
}

func isContentTypeRejection(be *BackendError) bool {
	if be.Status == http.StatusUnsupportedMediaType {
		return true
	}
	code := strings.ToLower(be.Code)
	return code == "invalidcontenttype" || code == "unsupportedmediatype" ||
		strings.Contains(strings.ToLower(be.Message), "content type")
}

func closeBody(body io.ReadCloser, logger *slog.Logger) {
	if err := body.Close(); err != nil {
		logger.Warn("ocr.response_body_close_error", "error", err)
	}
}
