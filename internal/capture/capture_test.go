package capture

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"screensearch/internal/diff"
)

// fakeCapturer returns a fixed set of monitors and alternates between
// two solid-color frames so the differ has something to react to.
type fakeCapturer struct {
	monitors []Monitor
	calls    int
}

func (f *fakeCapturer) Monitors() ([]Monitor, error) { return f.monitors, nil }

func (f *fakeCapturer) Capture(m Monitor) (image.Image, error) {
	f.calls++
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	shade := color.RGBA{R: 10, G: 10, B: 10, A: 255}
	if f.calls%2 == 0 {
		shade = color.RGBA{R: 250, G: 250, B: 250, A: 255}
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, shade)
		}
	}
	return img, nil
}

func TestLoopDeliversFramesPerMonitor(t *testing.T) {
	cap := &fakeCapturer{monitors: []Monitor{{Index: 0}, {Index: 1}}}
	cfg := Config{
		Interval:      5 * time.Millisecond,
		DiffThreshold: 0.01,
		DiffMethod:    diff.Pixel,
		QueueCapacity: 10,
	}
	loop := NewLoop(cfg, cap, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		loop.Start(ctx)
		close(done)
	}()

	seen := 0
	for range loop.Frames() {
		seen++
	}
	<-done

	if seen == 0 {
		t.Fatal("expected at least one delivered frame")
	}
}

func TestLoopRespectsMonitorFilter(t *testing.T) {
	cap := &fakeCapturer{monitors: []Monitor{{Index: 0}, {Index: 1}, {Index: 2}}}
	cfg := Config{
		Interval:      5 * time.Millisecond,
		MonitorFilter: []int{1},
		DiffThreshold: 0.01,
		DiffMethod:    diff.Pixel,
		QueueCapacity: 10,
	}
	loop := NewLoop(cfg, cap, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		loop.Start(ctx)
		close(done)
	}()

	for f := range loop.Frames() {
		if f.Monitor.Index != 1 {
			t.Fatalf("expected only monitor 1, got %d", f.Monitor.Index)
		}
	}
	<-done
}

func TestPushDropsOldestWhenFull(t *testing.T) {
	l := &Loop{out: make(chan Frame, 1)}
	l.push(Frame{Monitor: Monitor{Index: 0}})
	l.push(Frame{Monitor: Monitor{Index: 1}}) // queue full, must drop index 0

	got := <-l.out
	if got.Monitor.Index != 1 {
		t.Fatalf("expected newest frame (index 1) to survive, got %d", got.Monitor.Index)
	}
}
