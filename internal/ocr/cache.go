package ocr

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
)

// ClientCache hands out one Client per distinct endpoint/key pair. Client
// construction sets up connection pooling and a rate limiter, so repeating it
// per call would defeat both; the cache lives for the process and is injected
// wherever OCR is needed rather than accessed as a global.
type ClientCache struct {
	mu      sync.Mutex
	clients map[string]*Client
	logger  *slog.Logger
}

func NewClientCache(logger *slog.Logger) *ClientCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientCache{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Get returns the cached client for cfg's credential pair, creating it on
// first use. The returned client is shared and safe for concurrent use.
func (cc *ClientCache) Get(cfg Config) *Client {
	key := credentialKey(cfg)

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if c, ok := cc.clients[key]; ok {
		return c
	}
	c := NewClient(cfg, cc.logger)
	cc.clients[key] = c
	cc.logger.Info("ocr.client.created", "endpoint", cfg.Endpoint, "cached", len(cc.clients))
	return c
}

// Close tears down every cached client. Called once at process shutdown.
func (cc *ClientCache) Close() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	for key, c := range cc.clients {
		c.Close()
		delete(cc.clients, key)
	}
}

func credentialKey(cfg Config) string {
	sum := sha256.Sum256([]byte(cfg.Endpoint + "\x00" + cfg.Key))
	return hex.EncodeToString(sum[:])
}
