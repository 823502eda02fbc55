// Package capture implements C2: a per-monitor timed producer that
// grabs frames, applies frame differencing, attaches active-window
// context, and forwards survivors down a bounded oldest-drop queue.
package capture

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"screensearch/internal/diff"
)

// Monitor describes one capturable display.
type Monitor struct {
	Index     int
	Name      string
	Width     int
	Height    int
	X, Y      int
	IsPrimary bool
}

// WindowContext describes the foreground window at capture time.
type WindowContext struct {
	Title      string
	Process    string
	ProcessID  int
	BrowserURL string
}

// Capturer grabs one still frame from a monitor. Implementations are
// platform-specific; no portable Go backend exists in this tree, so
// callers provide one (the tests supply a fake implementation).
type Capturer interface {
	Capture(monitor Monitor) (image.Image, error)
	Monitors() ([]Monitor, error)
}

// WindowContextProvider reports the current foreground window.
// Browser URL extraction is itself best-effort even in the system this
// was modeled on, so a provider returning an empty BrowserURL is valid.
type WindowContextProvider interface {
	ActiveWindow() (WindowContext, error)
}

// Config tunes the capture loop. See config.CaptureConfig for the
// on-disk shape this is built from.
type Config struct {
	Interval      time.Duration
	MonitorFilter []int // empty means "all monitors"
	ExcludedApps  []string
	DiffThreshold float64
	DiffMethod    diff.Method
	QueueCapacity int // size of the one bounded oldest-drop queue shared by all monitors
}

// Frame is one surviving capture, ready for the storage writer.
type Frame struct {
	Monitor   Monitor
	Image     image.Image
	Context   WindowContext
	Timestamp time.Time
}

// noopWindowContext is used when no platform provider is wired in.
type noopWindowContext struct{}

func (noopWindowContext) ActiveWindow() (WindowContext, error) { return WindowContext{}, nil }

// NoopWindowContextProvider returns a provider that always reports an
// empty window context, for platforms/tests with no window introspection.
func NoopWindowContextProvider() WindowContextProvider { return noopWindowContext{} }

// Loop owns one goroutine per monitor, each on its own ticker, feeding
// a single bounded, oldest-drop output channel. Not safe for
// concurrent Start calls.
type Loop struct {
	cfg       Config
	capturer  Capturer
	winCtx    WindowContextProvider
	out chan Frame
	wg  sync.WaitGroup
}

// NewLoop builds a capture loop. out is sized to cfg.QueueCapacity; if
// zero, a capacity of 100 is used (the channel itself becomes the
// bounded queue — see push below for the oldest-drop behavior).
func NewLoop(cfg Config, capturer Capturer, winCtx WindowContextProvider) *Loop {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 100
	}
	if winCtx == nil {
		winCtx = NoopWindowContextProvider()
	}
	return &Loop{
		cfg:      cfg,
		capturer: capturer,
		winCtx:   winCtx,
		out:      make(chan Frame, cfg.QueueCapacity),
	}
}

// Frames returns the channel consumers should range over.
func (l *Loop) Frames() <-chan Frame { return l.out }

// Start spawns one capture goroutine per monitor (filtered by
// cfg.MonitorFilter) and blocks until ctx is cancelled, at which point
// it waits for all monitor goroutines to exit and closes the output
// channel.
func (l *Loop) Start(ctx context.Context) error {
	monitors, err := l.capturer.Monitors()
	if err != nil {
		return err
	}
	monitors = l.filterMonitors(monitors)
	if len(monitors) == 0 {
		log.Warn().Msg("capture: no monitors to watch")
	}

	for _, m := range monitors {
		l.wg.Add(1)
		go l.runMonitor(ctx, m)
	}

	l.wg.Wait()
	close(l.out)
	return nil
}

func (l *Loop) filterMonitors(all []Monitor) []Monitor {
	if len(l.cfg.MonitorFilter) == 0 {
		return all
	}
	wanted := make(map[int]bool, len(l.cfg.MonitorFilter))
	for _, idx := range l.cfg.MonitorFilter {
		wanted[idx] = true
	}
	out := make([]Monitor, 0, len(all))
	for _, m := range all {
		if wanted[m.Index] {
			out = append(out, m)
		}
	}
	return out
}

// runMonitor is the per-monitor capture cadence: capture, diff, push,
// sleep for whatever remains of the interval. Grounded on the original
// capture loop's "interval minus elapsed" pacing, so a slow capture
// never compounds drift across ticks.
func (l *Loop) runMonitor(ctx context.Context, m Monitor) {
	defer l.wg.Done()

	d := diff.New(l.cfg.DiffThreshold, l.cfg.DiffMethod)
	interval := l.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		start := time.Now()
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := l.captureOnce(m, d); err != nil {
			log.Error().Err(err).Int("monitor", m.Index).Msg("capture: frame capture failed")
		}

		elapsed := time.Since(start)
		sleep := interval - elapsed
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (l *Loop) captureOnce(m Monitor, d *diff.Differ) error {
	img, err := l.capturer.Capture(m)
	if err != nil {
		return err
	}
	if !d.HasChanged(img) {
		return nil
	}

	winCtx, err := l.winCtx.ActiveWindow()
	if err != nil {
		log.Debug().Err(err).Msg("capture: active window lookup failed")
	}

	l.push(Frame{Monitor: m, Image: img, Context: winCtx, Timestamp: time.Now()})
	return nil
}

// push delivers f to the output channel, dropping the single oldest
// buffered frame and retrying once if the channel is full. Grounded on
// the original capture engine's bounded ArrayQueue: callers never
// block a capture tick waiting for a slow consumer.
func (l *Loop) push(f Frame) {
	select {
	case l.out <- f:
		return
	default:
	}

	select {
	case <-l.out:
		log.Warn().Int("monitor", f.Monitor.Index).Msg("capture: dropped oldest buffered frame, queue full")
	default:
	}

	select {
	case l.out <- f:
	default:
		log.Warn().Int("monitor", f.Monitor.Index).Msg("capture: dropped newest frame, queue still full")
	}
}
