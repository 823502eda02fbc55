// Package embedding provides pluggable text-to-vector embedding
// backends for C6's batch worker, plus request/LRU caching on top.
package embedding

import (
	"context"
	"fmt"
	"sync"

	"screensearch/internal/config"
)

// Provider exposes semantic embedding capabilities.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}

// ProviderFactory constructs a Provider from the embedding configuration.
type ProviderFactory func(config.EmbeddingConfig) (Provider, error)

var (
	providersMu sync.RWMutex
	providers   = map[string]ProviderFactory{}
)

// RegisterProvider registers an embedding provider factory under the given
// backend name. Typically called from an init() function.
func RegisterProvider(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

func init() {
	RegisterProvider("llamacpp", func(cfg config.EmbeddingConfig) (Provider, error) {
		return newLlamaCppProvider(cfg)
	})
	RegisterProvider("degraded", func(config.EmbeddingConfig) (Provider, error) {
		return degradedProvider{}, nil
	})
}

// New constructs an embedding provider based on configuration. Returns
// (nil, nil) when embeddings are disabled, matching the worker's
// expectation that a nil provider means "don't run".
func New(cfg config.EmbeddingConfig) (Provider, error) {
	if cfg.Enabled == nil || !*cfg.Enabled {
		return nil, nil
	}

	backend := cfg.Backend
	if backend == "" {
		backend = "degraded"
	}

	providersMu.RLock()
	factory, ok := providers[backend]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("embedding: unsupported backend %q", backend)
	}
	return factory(cfg)
}

// degradedProvider always returns an error, used when embeddings are
// enabled but no real backend is configured — the worker logs the
// failure and skips the frame rather than crashing the process.
type degradedProvider struct{}

func (degradedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding: no backend configured (degraded mode)")
}

func (degradedProvider) Close() error { return nil }
