// Package classify calls the vehicle category prediction service. The model
// lives behind HTTP; this package only ships features and interprets the
// reply.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/verifactura/verifactura/constants"
)

// Prediction is one classification outcome: the winning category plus the
// full probability distribution over all five.
type Prediction struct {
	Category      string             `json:"categoria_predicha"`
	Probabilities map[string]float64 `json:"probabilidades"`
}

// Classifier is the prediction boundary; the HTTP client below is the
// production implementation.
type Classifier interface {
	Predict(ctx context.Context, features map[string]any) (Prediction, error)
}

type Config struct {
	BaseURL string        // e.g. http://predictor:9000
	Timeout time.Duration // default 30s
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}

// Predict posts the feature object and validates the reply: a known category
// and a distribution that actually sums to one.
func (c *Client) Predict(ctx context.Context, features map[string]any) (Prediction, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("classify.predict.start", "req_id", rid)

	b, err := json.Marshal(map[string]any{"features": features})
	if err != nil {
		return Prediction{}, fmt.Errorf("marshal features: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/predictions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("classifier response body close error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Prediction{}, fmt.Errorf("classifier status %d: %s", resp.StatusCode, string(raw))
	}

	var pred Prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return Prediction{}, fmt.Errorf("decode prediction: %w", err)
	}
	if err := pred.validate(); err != nil {
		return Prediction{}, err
	}

	c.log.Info("classify.predict.ok",
		"req_id", rid,
		"category", pred.Category,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pred, nil
}

func (p Prediction) validate() error {
	if !constants.IsKnownCategory(p.Category) {
		return fmt.Errorf("classifier returned unknown category %q", p.Category)
	}
	sum := 0.0
	for cat, prob := range p.Probabilities {
		if !constants.IsKnownCategory(cat) {
			return fmt.Errorf("classifier returned probability for unknown category %q", cat)
		}
		if prob < 0 || prob > 1 {
			return fmt.Errorf("probability for %s out of range: %f", cat, prob)
		}
		sum += prob
	}
	if len(p.Probabilities) > 0 && math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("probabilities sum to %f, expected 1", sum)
	}
	return nil
}
