// Package ocr implements C3: a worker pool that pulls captured frames
// off a channel, extracts text regions with retry/backoff, filters by
// confidence, and forwards the survivors to storage while exporting
// prometheus metrics on throughput and failure rate.
package ocr

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"screensearch/internal/capture"
)

// TextRegion is one detected span of text with its bounding box and
// the engine's confidence in the recognition.
type TextRegion struct {
	Text       string
	X, Y       int
	Width      int
	Height     int
	Confidence float64
}

// Engine recognizes text in an image. Implementations are
// platform/backend-specific (e.g. a Tesseract or cloud OCR binding);
// none is bundled here, so callers supply one.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) ([]TextRegion, error)
}

// Config tunes the worker pool. See config.OcrConfig for the on-disk
// shape this is built from.
type Config struct {
	WorkerThreads       int
	MaxRetries          int
	RetryBackoff        time.Duration
	MinConfidence       float64
	StoreEmptyFrames    bool
	MetricsInterval     time.Duration
	ChannelBufferSize   int
}

// DefaultConfig matches the original OCR processor's tuning.
func DefaultConfig() Config {
	return Config{
		WorkerThreads:     2,
		MaxRetries:        3,
		RetryBackoff:      time.Second,
		MinConfidence:     0.7,
		StoreEmptyFrames:  false,
		MetricsInterval:   60 * time.Second,
		ChannelBufferSize: 100,
	}
}

// Result is one processed frame, ready for the storage writer.
type Result struct {
	Frame   capture.Frame
	Regions []TextRegion
}

// Metrics tracks OCR processor throughput with atomic counters,
// exported both as prometheus counters/histogram and via periodic log
// lines, grounded on the original processor's OcrMetrics struct.
type Metrics struct {
	FramesProcessed     atomic.Int64
	Errors              atomic.Int64
	RegionsExtracted    atomic.Int64
	TotalProcessingMs   atomic.Int64
	EmptyFrames         atomic.Int64
	FilteredFrames      atomic.Int64

	promFramesProcessed prometheus.Counter
	promErrors          prometheus.Counter
	promRegions         prometheus.Counter
	promProcessingTime  prometheus.Histogram
	promFiltered        prometheus.Counter
}

// NewMetrics registers OCR prometheus collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid cross-test collisions;
// pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		promFramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screensearch_ocr_frames_processed_total",
			Help: "Frames that completed OCR processing, successfully or not.",
		}),
		promErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screensearch_ocr_errors_total",
			Help: "Frames that failed OCR after exhausting retries.",
		}),
		promRegions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screensearch_ocr_regions_extracted_total",
			Help: "Text regions extracted across all processed frames.",
		}),
		promProcessingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screensearch_ocr_processing_duration_seconds",
			Help:    "Per-frame OCR processing latency.",
			Buckets: prometheus.DefBuckets,
		}),
		promFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screensearch_ocr_filtered_frames_total",
			Help: "Frames whose regions were all below the confidence floor.",
		}),
	}
	reg.MustRegister(m.promFramesProcessed, m.promErrors, m.promRegions, m.promProcessingTime, m.promFiltered)
	return m
}

func (m *Metrics) recordSuccess(regions int, d time.Duration) {
	m.FramesProcessed.Add(1)
	m.RegionsExtracted.Add(int64(regions))
	m.TotalProcessingMs.Add(d.Milliseconds())
	if m.promFramesProcessed != nil {
		m.promFramesProcessed.Inc()
		m.promRegions.Add(float64(regions))
		m.promProcessingTime.Observe(d.Seconds())
	}
}

func (m *Metrics) recordError() {
	m.FramesProcessed.Add(1)
	m.Errors.Add(1)
	if m.promErrors != nil {
		m.promErrors.Inc()
	}
}

func (m *Metrics) recordEmpty() { m.EmptyFrames.Add(1) }

func (m *Metrics) recordFiltered() {
	m.FilteredFrames.Add(1)
	if m.promFiltered != nil {
		m.promFiltered.Inc()
	}
}

// AvgProcessingMs returns the mean processing latency across all
// successfully processed frames, or 0 if none have completed.
func (m *Metrics) AvgProcessingMs() float64 {
	n := m.FramesProcessed.Load() - m.Errors.Load()
	if n <= 0 {
		return 0
	}
	return float64(m.TotalProcessingMs.Load()) / float64(n)
}

// SuccessRate returns the fraction of processed frames that did not
// error, or 1 if none have been processed yet.
func (m *Metrics) SuccessRate() float64 {
	total := m.FramesProcessed.Load()
	if total == 0 {
		return 1
	}
	return float64(total-m.Errors.Load()) / float64(total)
}

func (m *Metrics) logSnapshot() {
	log.Info().
		Int64("frames_processed", m.FramesProcessed.Load()).
		Int64("errors", m.Errors.Load()).
		Int64("regions_extracted", m.RegionsExtracted.Load()).
		Int64("empty_frames", m.EmptyFrames.Load()).
		Int64("filtered_frames", m.FilteredFrames.Load()).
		Float64("avg_processing_ms", m.AvgProcessingMs()).
		Float64("success_rate", m.SuccessRate()).
		Msg("ocr: metrics snapshot")
}

// Processor runs the configured number of worker goroutines pulling
// from in and pushing filtered Results to its own output channel.
type Processor struct {
	cfg     Config
	engine  Engine
	metrics *Metrics
	out     chan Result
}

// New builds a Processor. metrics may be nil to disable prometheus
// export (log snapshots still run).
func New(cfg Config, engine Engine, metrics *Metrics) *Processor {
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = 1
	}
	if cfg.ChannelBufferSize <= 0 {
		cfg.ChannelBufferSize = 100
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Processor{cfg: cfg, engine: engine, metrics: metrics, out: make(chan Result, cfg.ChannelBufferSize)}
}

// Results returns the channel consumers should range over.
func (p *Processor) Results() <-chan Result { return p.out }

// Run spawns the worker pool and a metrics-logging ticker, consuming
// in until it closes or ctx is cancelled, then closes Results().
func (p *Processor) Run(ctx context.Context, in <-chan capture.Frame) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.WorkerThreads; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID, in)
		}(i)
	}

	var tickerWg sync.WaitGroup
	if p.cfg.MetricsInterval > 0 {
		tickerWg.Add(1)
		go func() {
			defer tickerWg.Done()
			ticker := time.NewTicker(p.cfg.MetricsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.metrics.logSnapshot()
				}
			}
		}()
	}

	wg.Wait()
	close(p.out)
	tickerWg.Wait()
}

func (p *Processor) worker(ctx context.Context, workerID int, in <-chan capture.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-in:
			if !ok {
				return
			}
			p.processWithRetry(ctx, frame)
		}
	}
}

// processWithRetry runs Recognize up to cfg.MaxRetries+1 times with a
// linear backoff, grounded on the original processor's retry loop.
func (p *Processor) processWithRetry(ctx context.Context, frame capture.Frame) {
	start := time.Now()
	var regions []TextRegion
	var err error

	attempts := p.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		regions, err = p.engine.Recognize(ctx, frame.Image)
		if err == nil {
			break
		}
		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.RetryBackoff * time.Duration(attempt+1)):
			}
		}
	}

	if err != nil {
		p.metrics.recordError()
		log.Error().Err(err).Int("monitor", frame.Monitor.Index).Msg("ocr: frame failed after retries")
		return
	}

	filtered := make([]TextRegion, 0, len(regions))
	for _, r := range regions {
		if r.Confidence >= p.cfg.MinConfidence {
			filtered = append(filtered, r)
		}
	}

	p.metrics.recordSuccess(len(filtered), time.Since(start))

	if len(filtered) == 0 {
		if len(regions) > 0 {
			p.metrics.recordFiltered()
		} else {
			p.metrics.recordEmpty()
		}
		if !p.cfg.StoreEmptyFrames {
			return
		}
	}

	select {
	case p.out <- Result{Frame: frame, Regions: filtered}:
	case <-ctx.Done():
	}
}
