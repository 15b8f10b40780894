package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFeatures() map[string]any {
	return map[string]any{
		"MARCA": "TOYOTA", "TIPO": "CAMIONETA", "CLASE": "DOBLE CABINA",
		"CAPACIDAD": 5.0, "COMBUSTIBLE": "DIESEL", "RUEDAS": 4.0, "TOTAL": 38990.0,
	}
}

func TestPredictSuccess(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/predictions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"categoria_predicha": "COMERCIAL",
			"probabilidades": map[string]float64{
				"FAMILIAR":   0.05,
				"COMERCIAL":  0.80,
				"DEPORTIVO":  0.02,
				"CARGA":      0.10,
				"TRANSPORTE": 0.03,
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	pred, err := c.Predict(context.Background(), testFeatures())
	require.NoError(t, err)

	assert.Equal(t, "COMERCIAL", pred.Category)
	assert.Len(t, pred.Probabilities, 5)

	sum := 0.0
	for _, p := range pred.Probabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 0.001)

	features, ok := gotBody["features"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "TOYOTA", features["MARCA"])
}

func TestPredictRejectsBadReplies(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{
			"unknown category",
			map[string]any{"categoria_predicha": "SUBMARINO", "probabilidades": map[string]float64{}},
		},
		{
			"unknown category in distribution",
			map[string]any{
				"categoria_predicha": "FAMILIAR",
				"probabilidades":     map[string]float64{"FAMILIAR": 0.5, "SUBMARINO": 0.5},
			},
		},
		{
			"probabilities do not sum to one",
			map[string]any{
				"categoria_predicha": "FAMILIAR",
				"probabilidades":     map[string]float64{"FAMILIAR": 0.5, "COMERCIAL": 0.2},
			},
		},
		{
			"probability out of range",
			map[string]any{
				"categoria_predicha": "FAMILIAR",
				"probabilidades":     map[string]float64{"FAMILIAR": 1.4, "COMERCIAL": -0.4},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL}, nil)
			_, err := c.Predict(context.Background(), testFeatures())
			assert.Error(t, err)
		})
	}
}

func TestPredictUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Predict(context.Background(), testFeatures())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
