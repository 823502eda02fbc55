package ocr

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"screensearch/internal/capture"
)

type fakeEngine struct {
	regions   []TextRegion
	failCount int
	calls     int
}

func (f *fakeEngine) Recognize(ctx context.Context, img image.Image) ([]TextRegion, error) {
	f.calls++
	if f.calls <= f.failCount {
		return nil, errors.New("engine unavailable")
	}
	return f.regions, nil
}

func frame() capture.Frame {
	return capture.Frame{Monitor: capture.Monitor{Index: 0}, Image: image.NewRGBA(image.Rect(0, 0, 2, 2))}
}

func TestProcessorFiltersByConfidence(t *testing.T) {
	engine := &fakeEngine{regions: []TextRegion{
		{Text: "high", Confidence: 0.9},
		{Text: "low", Confidence: 0.2},
	}}
	cfg := DefaultConfig()
	cfg.WorkerThreads = 1
	cfg.MinConfidence = 0.5
	cfg.MetricsInterval = 0
	p := New(cfg, engine, NewMetrics(prometheus.NewRegistry()))

	in := make(chan capture.Frame, 1)
	in <- frame()
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go p.Run(ctx, in)

	result := <-p.Results()
	if len(result.Regions) != 1 || result.Regions[0].Text != "high" {
		t.Fatalf("expected only the high-confidence region to survive, got %+v", result.Regions)
	}
}

func TestProcessorRetriesOnError(t *testing.T) {
	engine := &fakeEngine{regions: []TextRegion{{Text: "ok", Confidence: 0.9}}, failCount: 2}
	cfg := DefaultConfig()
	cfg.WorkerThreads = 1
	cfg.MaxRetries = 3
	cfg.RetryBackoff = time.Millisecond
	cfg.MetricsInterval = 0
	p := New(cfg, engine, NewMetrics(prometheus.NewRegistry()))

	in := make(chan capture.Frame, 1)
	in <- frame()
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go p.Run(ctx, in)

	result := <-p.Results()
	if len(result.Regions) != 1 {
		t.Fatalf("expected the eventual success to be delivered, got %+v", result)
	}
	if engine.calls != 3 {
		t.Fatalf("expected 3 attempts (2 failures + 1 success), got %d", engine.calls)
	}
}

func TestProcessorRecordsErrorAfterExhaustingRetries(t *testing.T) {
	engine := &fakeEngine{failCount: 100}
	cfg := DefaultConfig()
	cfg.WorkerThreads = 1
	cfg.MaxRetries = 1
	cfg.RetryBackoff = time.Millisecond
	cfg.MetricsInterval = 0
	metrics := NewMetrics(prometheus.NewRegistry())
	p := New(cfg, engine, metrics)

	in := make(chan capture.Frame, 1)
	in <- frame()
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx, in)
		close(done)
	}()
	<-done

	if metrics.Errors.Load() != 1 {
		t.Fatalf("expected one recorded error, got %d", metrics.Errors.Load())
	}
}
