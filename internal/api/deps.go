// Package api implements C9: the HTTP query server exposing search,
// frame, tag, settings, embeddings, RAG, and health endpoints over the
// store and the other subsystems.
package api

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"screensearch/internal/config"
	"screensearch/internal/embedding"
	"screensearch/internal/embedworker"
	"screensearch/internal/rag"
	"screensearch/internal/store"
)

// Deps carries every handler's dependencies. RAG and EmbedWorker are
// nil when embeddings are disabled at startup; handlers that need them
// respond with a config-error apperr instead of panicking.
type Deps struct {
	Store       *store.Store
	RAG         *rag.Assembler
	Embedder    embedding.Provider
	EmbedWorker *embedworker.Worker
	Embedding   config.EmbeddingConfig
	Registerer  prometheus.Registerer
	StartedAt   time.Time
	Version     string

	generating atomic.Bool
	metrics    *Metrics
}

func (d *Deps) startedAt() time.Time {
	if d.StartedAt.IsZero() {
		return time.Now()
	}
	return d.StartedAt
}
