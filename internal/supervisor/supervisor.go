// Package supervisor implements C12: it builds every subsystem from
// configuration, wires C2->C3->C4's channels together, and joins their
// lifecycles under one context so a single Ctrl-C shuts the whole
// process down cleanly.
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"screensearch/internal/api"
	"screensearch/internal/capture"
	"screensearch/internal/config"
	"screensearch/internal/diff"
	"screensearch/internal/embedding"
	"screensearch/internal/embedworker"
	goimage "screensearch/internal/image"
	"screensearch/internal/ocr"
	"screensearch/internal/rag"
	"screensearch/internal/retention"
	"screensearch/internal/retrieval"
	"screensearch/internal/storage"
	"screensearch/internal/store"
	"screensearch/internal/vision"
)

// Backends carries the platform-specific collaborators the core
// pipeline consumes only through an interface: the concrete screen
// capture and OCR backends are out of scope for this module, so the
// process entrypoint supplies them.
type Backends struct {
	Capturer      capture.Capturer
	WindowContext capture.WindowContextProvider
	OcrEngine     ocr.Engine
}

// Options carries process-level metadata that isn't part of the
// on-disk config.
type Options struct {
	Version string
}

// Run builds every subsystem from cfg, starts them all, and blocks
// until ctx is cancelled or a subsystem fails fatally, at which point
// every other subsystem is cancelled in turn via errgroup.
func Run(ctx context.Context, cfg config.Config, backends Backends, opts Options) error {
	s, err := store.Open(ctx, store.Config{
		Path:           cfg.Store.Path,
		MaxOpenConns:   cfg.Store.MaxOpenConns,
		MaxIdleConns:   cfg.Store.MaxIdleConns,
		AcquireTimeout: time.Duration(cfg.Store.AcquireTimeoutSec) * time.Second,
		CacheSizeKB:    cfg.Store.CacheSizeKB,
	})
	if err != nil {
		return fmt.Errorf("supervisor: open store: %w", err)
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("supervisor: failed to close store")
		}
	}()

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("supervisor: build embedding provider: %w", err)
	}
	if embedder != nil {
		defer func() {
			if closeErr := embedder.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("supervisor: failed to close embedding provider")
			}
		}()
	}

	var embedWorker *embedworker.Worker
	if embedder != nil {
		embedWorker = embedworker.New(embedworker.Config{
			BatchSize:      cfg.Embedding.BatchSize,
			Interval:       time.Duration(cfg.Embedding.IntervalSecs) * time.Second,
			MaxChunkTokens: cfg.Embedding.MaxChunkTokens,
			ChunkOverlap:   cfg.Embedding.ChunkOverlap,
		}, s, embedder)
	}

	var ragAssembler *rag.Assembler
	if embedder != nil {
		// The RAG provider is always reached through its OpenAI-compatible
		// chat/completions endpoint (Ollama serves one too, at the default
		// config's /v1 endpoint), so the chat client is always built in
		// "openai" provider mode.
		chatClient, err := rag.NewChatClient(config.VisionConfig{
			Provider: "openai",
			Endpoint: cfg.RAG.ProviderURL,
			Model:    cfg.RAG.Model,
			APIKey:   cfg.RAG.APIKey,
		})
		if err != nil {
			log.Error().Err(err).Msg("supervisor: failed to build RAG chat client, answering is disabled")
		} else {
			rerankCfg := retrieval.DefaultRerankConfig()
			rerankCfg.TopK = cfg.RAG.TopK
			rerankCfg.MinScore = cfg.RAG.MinScore
			ragAssembler = rag.New(rag.Config{
				TopK:         cfg.RAG.TopK,
				MinScore:     cfg.RAG.MinScore,
				HybridAlpha:  cfg.RAG.HybridAlpha,
				RerankConfig: rerankCfg,
				KeywordBoost: cfg.RAG.KeywordBoost,
			}, s, embedder, chatClient)
		}
	}

	retentionSweeper := retention.New(retention.Config{
		RetentionDays: cfg.Retention.Days,
		SweepInterval: 24 * time.Hour,
	}, s)

	visionWorker := vision.New(s, "vision-0")

	ocrMetrics := ocr.NewMetrics(prometheus.DefaultRegisterer)
	captureLoop := capture.NewLoop(capture.Config{
		Interval:      time.Duration(cfg.Capture.IntervalSeconds) * time.Second,
		MonitorFilter: cfg.Capture.Monitors,
		ExcludedApps:  cfg.Capture.ExcludedApps,
		DiffThreshold: cfg.Capture.DiffThreshold,
		DiffMethod:    diffMethod(cfg.Capture.DifferMode),
	}, backends.Capturer, backends.WindowContext)
	ocrProc := ocr.New(ocr.Config{
		WorkerThreads:    cfg.Ocr.WorkerThreads,
		MaxRetries:       cfg.Ocr.MaxRetries,
		RetryBackoff:     time.Duration(cfg.Ocr.RetryBackoffMs) * time.Millisecond,
		MinConfidence:    cfg.Ocr.MinConfidence,
		StoreEmptyFrames: cfg.Ocr.StoreEmptyFrames,
		MetricsInterval:  time.Duration(cfg.Ocr.MetricsIntervalSecs) * time.Second,
	}, backends.OcrEngine, ocrMetrics)
	storageWriter := storage.New(storage.Config{
		CapturesDir: cfg.Storage.CapturesDir,
		MaxWidth:    cfg.Storage.MaxWidth,
		Format:      imageFormat(cfg.Storage.Format),
		Quality:     cfg.Storage.Quality,
	}, s)

	deps := &api.Deps{
		Store:       s,
		RAG:         ragAssembler,
		Embedder:    embedder,
		EmbedWorker: embedWorker,
		Embedding:   cfg.Embedding,
		Registerer:  prometheus.DefaultRegisterer,
		StartedAt:   time.Now(),
		Version:     opts.Version,
	}
	router := api.NewRouter(deps)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return captureLoop.Start(gctx) })
	g.Go(func() error { ocrProc.Run(gctx, captureLoop.Frames()); return nil })
	g.Go(func() error { storageWriter.Run(gctx, ocrProc.Results()); return nil })
	g.Go(func() error { retentionSweeper.Run(gctx); return nil })
	g.Go(func() error { visionWorker.Run(gctx); return nil })
	if embedWorker != nil {
		g.Go(func() error { embedWorker.Run(gctx); return nil })
	}
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("supervisor: query server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("query server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func diffMethod(mode string) diff.Method {
	switch mode {
	case "pixel":
		return diff.Pixel
	case "structural":
		return diff.Structural
	default:
		return diff.Histogram
	}
}

func imageFormat(format string) goimage.Format {
	if format == "png" {
		return goimage.FormatPNG
	}
	return goimage.FormatJPEG
}
