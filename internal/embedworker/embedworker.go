// Package embedworker implements C6: a background loop that batches
// frames without embeddings, chunks their OCR text, embeds each chunk,
// and commits the chunk/vector pairs for one frame per transaction.
package embedworker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"screensearch/internal/chunk"
	"screensearch/internal/embedding"
	"screensearch/internal/store"
)

// Config tunes the batch loop. See config.EmbeddingConfig for the
// on-disk shape this is built from.
type Config struct {
	BatchSize      int64
	Interval       time.Duration
	MaxChunkTokens int
	ChunkOverlap   int
}

// Worker periodically re-checks whether embeddings are enabled (via
// the embeddings_enabled metadata row) and, when on, embeds frames
// that don't have embeddings yet. A nil provider means embeddings are
// disabled at startup; such a worker never embeds, whatever the
// metadata row says.
type Worker struct {
	cfg      Config
	store    *store.Store
	provider embedding.Provider
	chunker  chunk.Chunker
}

// New builds a Worker. provider may be nil; the worker then silently
// skips every tick instead of embedding, which keeps the supervisor's
// wiring uniform whether or not embeddings are configured.
func New(cfg Config, s *store.Store, provider embedding.Provider) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Worker{
		cfg:      cfg,
		store:    s,
		provider: provider,
		chunker:  chunk.New(cfg.MaxChunkTokens, cfg.ChunkOverlap),
	}
}

// Run ticks every cfg.Interval until ctx is cancelled, processing one
// batch per tick.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.tick(ctx) // don't wait a full interval before the first batch
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// RunOnce processes a single batch immediately regardless of the
// regular tick schedule, for C9's manual "/embeddings/generate"
// trigger. It honors the same enabled-check and nil-provider guard as
// a scheduled tick.
func (w *Worker) RunOnce(ctx context.Context) {
	w.tick(ctx)
}

func (w *Worker) tick(ctx context.Context) {
	enabled, err := w.embeddingsEnabled(ctx)
	if err != nil {
		log.Error().Err(err).Msg("embedworker: failed to read settings")
		return
	}
	if !enabled || w.provider == nil {
		return
	}

	frames, err := w.store.GetFramesWithoutEmbeddings(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("embedworker: failed to list pending frames")
		return
	}
	if len(frames) == 0 {
		return
	}

	for _, f := range frames {
		if err := w.embedFrame(ctx, f.ID); err != nil {
			log.Error().Err(err).Int64("frame_id", f.ID).Msg("embedworker: failed to embed frame")
		}
	}
}

// embeddingsEnabledKey is the metadata row C9's /embeddings/enable
// endpoint flips, checked fresh on every tick so a runtime toggle
// takes effect without restarting the worker.
const embeddingsEnabledKey = "embeddings_enabled"

func (w *Worker) embeddingsEnabled(ctx context.Context) (bool, error) {
	value, ok, err := w.store.GetMetadata(ctx, embeddingsEnabledKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil // enabled by default once a provider is configured
	}
	return value == "true", nil
}

// embedFrame chunks a frame's combined OCR text, embeds each chunk,
// and inserts all chunk/vector pairs in the store's single transaction
// so a failure partway through never leaves a frame half-embedded.
func (w *Worker) embedFrame(ctx context.Context, frameID int64) error {
	ocrRows, err := w.store.GetOcrTextForFrame(ctx, frameID)
	if err != nil {
		return err
	}
	if len(ocrRows) == 0 {
		return nil
	}

	var combined string
	for i, row := range ocrRows {
		if i > 0 {
			combined += "\n"
		}
		combined += row.Text
	}

	chunks := w.chunker.ChunkText(combined)
	if len(chunks) == 0 {
		return nil
	}

	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		vec, err := w.provider.Embed(ctx, c)
		if err != nil {
			return err
		}
		vectors[i] = vec
	}

	return w.store.InsertEmbeddingsForFrame(ctx, frameID, chunks, vectors)
}
