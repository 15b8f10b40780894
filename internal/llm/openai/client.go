package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/verifactura/verifactura/internal/llm"
)

// ExtractFields implements llm.FieldExtractor over chat/completions in
// strict json_schema mode. When page images are attached the user message
// becomes a multimodal content array (text plus data-URL images).
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.Record, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	model := c.cfg.Model
	if req.Params.Model != "" {
		model = req.Params.Model
	}
	temperature := c.cfg.Temperature
	if req.Params.Temperature != nil {
		temperature = *req.Params.Temperature
	}
	topP := c.cfg.TopP
	if req.Params.TopP != nil {
		topP = *req.Params.TopP
	}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", model,
		"temp", temperature,
		"text_len", len(req.Text),
		"images", len(req.Images),
	)

	schema := llm.BuildInvoiceJSONSchema()
	body := map[string]any{
		"model":       model,
		"temperature": temperature,
		"top_p":       topP,
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   c.cfg.SchemaName,
				"schema": schema,
				"strict": true,
			},
		},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": buildUserContent(req)},
		},
	}
	if effort := req.Params.ReasoningEffort; effort != "" && effort != "none" {
		body["reasoning_effort"] = effort
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, raw, fmt.Errorf("no choices in openai response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	// Validate strictly first; one repair pass before giving up.
	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		repaired, notes, rErr := llm.RepairRecord(content, c.log)
		if rErr != nil {
			c.log.Error("llm.extract.repair_failed",
				"req_id", rid, "error", rErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return nil, content, &llm.SchemaExtractionError{Raw: content, Cause: rErr}
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, repaired); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "repair_notes", notes,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return nil, content, &llm.SchemaExtractionError{Raw: content, Cause: vErr}
		}
		c.log.Warn("llm.extract.repair_accepted", "req_id", rid, "notes", notes)
		content = repaired
	}

	rec, err := llm.DecodeRecord(content)
	if err != nil {
		return nil, content, &llm.SchemaExtractionError{Raw: content, Cause: err}
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"marca", rec["MARCA"],
		"numero_factura", rec["NUMERO_FACTURA"],
		"total", rec["TOTAL"],
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, content, nil
}

// buildUserContent returns either a plain string or the multimodal content
// array, depending on whether images accompany the chunk.
func buildUserContent(req llm.ExtractRequest) any {
	if len(req.Images) == 0 {
		return llm.BuildUserPrompt(req.Text, false)
	}
	content := []map[string]any{
		{"type": "text", "text": llm.BuildUserPrompt(req.Text, true)},
	}
	for _, img := range req.Images {
		dataURL := "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
		content = append(content, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": dataURL},
		})
	}
	return content
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
