package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "verifactura.db", cfg.Database.DSN)
	assert.Equal(t, "2023-07-31", cfg.OCR.APIVersion)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	assert.Equal(t, 50000, cfg.Pipeline.MaxCharsPerChunk)
	assert.Equal(t, 4, cfg.Pipeline.BatchConcurrency)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("DB_URL", "postgres://u:p@localhost/verifactura")
	t.Setenv("OPENAI_TEMPERATURE", "0.3")
	t.Setenv("PIPELINE_CALL_TIMEOUT", "45s")
	t.Setenv("MAX_CHARS_PER_CHUNK", "1000")

	cfg := LoadConfig()
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "postgres://u:p@localhost/verifactura", cfg.Database.DSN)
	assert.InDelta(t, 0.3, float64(cfg.LLM.Temperature), 1e-6)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.CallTimeout)
	assert.Equal(t, 1000, cfg.Pipeline.MaxCharsPerChunk)
}

func TestOCRConfigured(t *testing.T) {
	cfg := LoadConfig()
	assert.False(t, cfg.OCRConfigured())

	t.Setenv("AZURE_FORM_RECOGNIZER_ENDPOINT", "https://east.api.cognitive.microsoft.com")
	t.Setenv("AZURE_FORM_RECOGNIZER_KEY", "secret")
	cfg = LoadConfig()
	assert.True(t, cfg.OCRConfigured())
}

func TestValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	cfg.LLM.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.Pipeline.MaxCharsPerChunk = 0
	assert.Error(t, cfg.Validate())
}
