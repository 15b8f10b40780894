package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	OCR        OCRConfig
	LLM        LLMConfig
	Classifier ClassifierConfig
	Pipeline   PipelineConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr         string
	BodyLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds job store configuration. DSN decides the driver:
// postgres:// URLs go through pgx, anything else is opened as a sqlite file.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// OCRConfig holds the Azure Document Intelligence connection settings.
type OCRConfig struct {
	Endpoint     string
	Key          string
	APIVersion   string
	Timeout      time.Duration
	PollInterval time.Duration
	RatePerSec   float64
}

// LLMConfig holds the schema-extraction backend configuration.
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	TopP        float32
	Timeout     time.Duration
	SchemaName  string
}

// ClassifierConfig points at the external prediction service.
type ClassifierConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PipelineConfig holds orchestration knobs.
type PipelineConfig struct {
	MaxCharsPerChunk int
	BatchConcurrency int
	CallTimeout      time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         getEnv("HTTP_ADDR", ":8000"),
			BodyLimit:    getEnvAsInt("HTTP_BODY_LIMIT", 32<<20),
			ReadTimeout:  getEnvAsDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("HTTP_WRITE_TIMEOUT", 5*time.Minute),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", "verifactura.db"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		OCR: OCRConfig{
			Endpoint:     getEnv("AZURE_FORM_RECOGNIZER_ENDPOINT", ""),
			Key:          getEnv("AZURE_FORM_RECOGNIZER_KEY", ""),
			APIVersion:   getEnv("AZURE_FORM_RECOGNIZER_API_VERSION", "2023-07-31"),
			Timeout:      getEnvAsDuration("OCR_TIMEOUT", 90*time.Second),
			PollInterval: getEnvAsDuration("OCR_POLL_INTERVAL", time.Second),
			RatePerSec:   getEnvAsFloat64("OCR_RATE_PER_SEC", 5),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 1.0),
			TopP:        getEnvAsFloat32("OPENAI_TOP_P", 1.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			SchemaName:  getEnv("JSON_MODE_SCHEMA_NAME", "vehicular_invoice"),
		},
		Classifier: ClassifierConfig{
			BaseURL: getEnv("CLASSIFIER_URL", ""),
			Timeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		},
		Pipeline: PipelineConfig{
			MaxCharsPerChunk: getEnvAsInt("MAX_CHARS_PER_CHUNK", 50000),
			BatchConcurrency: getEnvAsInt("BATCH_CONCURRENCY", 4),
			CallTimeout:      getEnvAsDuration("PIPELINE_CALL_TIMEOUT", 2*time.Minute),
		},
	}
}

// OCRConfigured reports whether the Azure endpoint/key pair is present.
// Image-only documents are rejected when it is not.
func (c *Config) OCRConfigured() bool {
	return c.OCR.Endpoint != "" && c.OCR.Key != ""
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Pipeline.MaxCharsPerChunk <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_CHARS_PER_CHUNK must be positive", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
