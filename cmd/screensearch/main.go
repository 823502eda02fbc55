// Command screensearch is the process entrypoint: it loads
// configuration, starts the structured logger, and hands everything
// off to the supervisor, which owns the capture/OCR/storage pipeline
// and the query server for the rest of the process lifetime.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"screensearch/internal/capture"
	"screensearch/internal/config"
	"screensearch/internal/logging"
	"screensearch/internal/ocr"
	"screensearch/internal/supervisor"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("screensearch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	hostFlag := fs.String("host", "", "query server host (overrides config)")
	portFlag := fs.Int("port", 0, "query server port (overrides config)")
	logPretty := fs.Bool("pretty-log", false, "use a human-readable console logger instead of JSON")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := config.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "screensearch: failed to load config: %v\n", err)
		return 1
	}
	if *hostFlag != "" {
		cfg.Server.Host = *hostFlag
	}
	if *portFlag != 0 {
		cfg.Server.Port = *portFlag
	}

	if err := logging.Init(logging.Options{
		ToFile: cfg.Logging.ToFile,
		Pretty: *logPretty,
		Level:  cfg.Logging.Level,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "screensearch: failed to init logging: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capturer, winCtx, engine := platformBackends()

	log.Info().Str("version", version).Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Msg("screensearch starting")

	if err := supervisor.Run(ctx, cfg, supervisor.Backends{
		Capturer:      capturer,
		WindowContext: winCtx,
		OcrEngine:     engine,
	}, supervisor.Options{Version: version}); err != nil {
		log.Error().Err(err).Msg("screensearch exited with error")
		return 1
	}

	log.Info().Msg("screensearch stopped")
	return 0
}

// platformBackends returns the screen-capture and OCR backends for
// this build. Neither has a concrete implementation in this module:
// the capture surface (display enumeration, frame grabbing) and the
// OCR engine are platform-specific integrations that live outside
// this repository's scope, wired in only by a build that links a real
// backend behind these interfaces. Running without one still starts
// the query server and the rest of the pipeline; it just never
// receives frames to process.
func platformBackends() (capture.Capturer, capture.WindowContextProvider, ocr.Engine) {
	return unconfiguredCapturer{}, capture.NoopWindowContextProvider(), unconfiguredOcrEngine{}
}

type unconfiguredCapturer struct{}

func (unconfiguredCapturer) Capture(capture.Monitor) (image.Image, error) {
	return nil, errors.New("no capture backend configured for this build")
}

func (unconfiguredCapturer) Monitors() ([]capture.Monitor, error) {
	return nil, nil
}

type unconfiguredOcrEngine struct{}

func (unconfiguredOcrEngine) Recognize(context.Context, image.Image) ([]ocr.TextRegion, error) {
	return nil, errors.New("no OCR backend configured for this build")
}
